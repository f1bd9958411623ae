// Package normalize turns free-form model output into validated pipeline values.
//
// Text goes through a fixed recovery ladder; the first stage that yields valid
// JSON wins and is recorded on the result. Structured (object) results from the
// Generation Adapter skip the ladder.
package normalize

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Stage names the ladder rung that produced the parsed JSON.
type Stage string

const (
	StageObject         Stage = "object"
	StageBrackets       Stage = "brackets"
	StageFence          Stage = "fence"
	StageLanguagePrefix Stage = "language-prefix"
	StageRaw            Stage = "raw"
	StageRepair         Stage = "repair"
)

// Candidate is a JSON document recovered from model text.
type Candidate struct {
	JSON  json.RawMessage
	Stage Stage
}

var (
	errNoJSON = errors.New("no parseable JSON in response")

	fenceRegex = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\\r?\\n?(.*?)```")

	// languagePrefixes are stray first lines models emit before a bare JSON body.
	languagePrefixes = map[string]bool{
		"json": true, "json:": true, "jsonc": true, "javascript": true, "js": true,
	}
)

type rung struct {
	stage   Stage
	extract func(string) (string, bool)
}

var ladder = []rung{
	{StageBrackets, extractBrackets},
	{StageFence, extractFence},
	{StageLanguagePrefix, stripLanguagePrefix},
	{StageRaw, trimmed},
}

// Extract runs the recovery ladder over raw model text. The returned cleaned string
// is the best-effort JSON region, kept for diagnostics when every stage fails.
func Extract(raw string) (Candidate, string, error) {
	var tried []string
	for _, r := range ladder {
		s, ok := r.extract(raw)
		if !ok {
			continue
		}
		if json.Valid([]byte(s)) {
			return Candidate{JSON: json.RawMessage(s), Stage: r.stage}, s, nil
		}
		tried = append(tried, s)
	}

	// Last resort: syntactic repair of what the earlier rungs isolated.
	for _, s := range tried {
		if repaired, ok := repair(s); ok {
			return Candidate{JSON: json.RawMessage(repaired), Stage: StageRepair}, s, nil
		}
	}

	cleaned := strings.TrimSpace(raw)
	if len(tried) > 0 {
		cleaned = tried[0]
	}
	return Candidate{}, cleaned, errNoJSON
}

// extractBrackets takes the substring from the first '{' or '[' to the last
// matching closer.
func extractBrackets(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return "", false
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func extractFence(s string) (string, bool) {
	m := fenceRegex.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	body := strings.TrimSpace(m[1])
	return body, body != ""
}

func stripLanguagePrefix(s string) (string, bool) {
	s = strings.TrimSpace(s)
	first, rest, found := strings.Cut(s, "\n")
	if !found || !languagePrefixes[strings.ToLower(strings.TrimSpace(first))] {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

func trimmed(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
