package normalize

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/llm"
)

// Normalizer recovers and validates structured values from generation results.
type Normalizer struct {
	logger *slog.Logger
}

// New returns a Normalizer. A nil logger discards output.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{logger: logger}
}

// document returns the JSON carried by res, running the recovery ladder when the
// adapter handed back plain text.
func (n *Normalizer) document(op string, res llm.Result) (json.RawMessage, Stage, string, error) {
	if res.Kind == llm.KindObject && len(res.Object) > 0 {
		return res.Object, StageObject, string(res.Object), nil
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, "", "", apperr.Parse(op, nil, "", "empty model response")
	}

	cand, cleaned, err := Extract(res.Text)
	if err != nil {
		return nil, "", cleaned, apperr.Parse(op, err, cleaned, "response is not JSON")
	}
	n.logger.Debug("recovered JSON from model text", "op", op, "stage", cand.Stage)
	return cand.JSON, cand.Stage, cleaned, nil
}

// schemaError builds the parse error raised when a recovered document does not fit
// the expected shape.
func schemaError(op string, cleaned string, cause error, r ValidationResult) error {
	if cause != nil {
		return apperr.Parse(op, cause, cleaned, "response does not match the expected shape")
	}
	return apperr.Parse(op, nil, cleaned, "response failed validation: %s", r.ErrorSummary())
}
