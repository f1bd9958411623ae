package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Stages(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantStage Stage
		wantJSON  string
	}{
		{
			name:      "prose around fenced array",
			raw:       "Here is the result:\n```json\n[{\"taskId\":1,\"complexityScore\":4}]\n```\nThanks",
			wantStage: StageBrackets,
			wantJSON:  `[{"taskId":1,"complexityScore":4}]`,
		},
		{
			name:      "braces in prose, json in fence",
			raw:       "Use {placeholders} like this:\n```json\n[1, 2]\n```",
			wantStage: StageFence,
			wantJSON:  `[1, 2]`,
		},
		{
			name:      "stray language line",
			raw:       "json\n\"just a string\"",
			wantStage: StageLanguagePrefix,
			wantJSON:  `"just a string"`,
		},
		{
			name:      "bare scalar",
			raw:       "  42 ",
			wantStage: StageRaw,
			wantJSON:  `42`,
		},
		{
			name:      "trailing commas and comments",
			raw:       "```json\n[{\"title\": \"a\",}, // note\n]\n```",
			wantStage: StageRepair,
			wantJSON:  `[{"title": "a"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, _, err := Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, cand.Stage)
			assert.JSONEq(t, tt.wantJSON, string(cand.JSON))
		})
	}
}

func TestExtract_NoJSON(t *testing.T) {
	_, cleaned, err := Extract("I could not produce a plan.")
	require.Error(t, err)
	assert.Equal(t, "I could not produce a plan.", cleaned)
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing comma between keys", "{\"a\": \"x\"\n\"b\": \"y\"}", `{"a": "x", "b": "y"}`},
		{"single quoted values", `{'a': 'x'}`, `{"a": "x"}`},
		{"adjacent objects", `[{"a": 1} {"a": 2}]`, `[{"a": 1}, {"a": 2}]`},
		{"raw newline in string", "{\"a\": \"line1\nline2\"}", `{"a": "line1\nline2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := repair(tt.input)
			require.True(t, ok, "repair failed for %q", tt.input)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestRepair_RejectsTruncated(t *testing.T) {
	for _, input := range []string{
		`[{"a": "x`,
		`[{"a": "x"}`,
		`{"a": [1, 2}`,
		`{"a": "x"}]`,
	} {
		_, ok := repair(input)
		assert.False(t, ok, "repair accepted %q", input)
	}
}
