package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Non-empty after trimming whitespace
	_ = validate.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidationError provides structured error information for schema validation failures
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// ValidationResult contains the result of schema validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ErrorSummary returns a single string summarizing all validation errors
func (r ValidationResult) ErrorSummary() string {
	if r.Valid {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

func validateStruct(s any) ValidationResult {
	err := validate.Struct(s)
	if err == nil {
		return ValidationResult{Valid: true}
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationResult{Errors: []ValidationError{{Message: err.Error()}}}
	}

	errs := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, ValidationError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: formatValidationError(fe),
		})
	}
	return ValidationResult{Errors: errs}
}

func formatValidationError(err validator.FieldError) string {
	field := err.Namespace()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "nonempty":
		return fmt.Sprintf("%s cannot be empty or whitespace", field)
	case "min", "gte":
		if err.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		}
		if err.Kind().String() == "slice" {
			return fmt.Sprintf("%s must have at least %s items", field, err.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max", "lte":
		if err.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, err.Tag())
	}
}

// flexInt accepts 3, "3" and "#3".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return err
		}
		*f = flexInt(int(v))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	v, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil {
		return fmt.Errorf("expected numeric id, got %q", s)
	}
	*f = flexInt(v)
	return nil
}

// flexIntList accepts a list of numbers or numeric strings. Entries that are not
// whole task numbers ("2.1", "setup") are skipped and counted in Skipped.
type flexIntList struct {
	Values  []int
	Skipped []string
}

func (l *flexIntList) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		// A single scalar instead of a list.
		items = []json.RawMessage{b}
	}
	for _, it := range items {
		var n flexInt
		if err := json.Unmarshal(it, &n); err != nil || bytes.Contains(it, []byte(".")) {
			l.Skipped = append(l.Skipped, string(it))
			continue
		}
		l.Values = append(l.Values, int(n))
	}
	return nil
}

// flexText accepts a string, or any other JSON value rendered as compact text.
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexText(s)
		return nil
	}
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*t = flexText(buf.String())
	return nil
}

// decodeList decodes raw as a bare array, or as an object holding the array under
// one of keys.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	trimmedRaw := bytes.TrimSpace(raw)
	if len(trimmedRaw) > 0 && trimmedRaw[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmedRaw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmedRaw, &fields); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if inner, ok := fields[k]; ok {
			var items []T
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("expected an array or an object with one of %v", keys)
}
