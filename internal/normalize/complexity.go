package normalize

import (
	"strings"

	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/llm"
)

// GeneratedAnalysis is one complexity entry as the model returns it.
type GeneratedAnalysis struct {
	TaskID              flexInt `json:"taskId" validate:"gte=1"`
	TaskTitle           string  `json:"taskTitle"`
	ComplexityScore     flexInt `json:"complexityScore" validate:"gte=1,lte=10"`
	RecommendedSubtasks flexInt `json:"recommendedSubtasks" validate:"gte=0"`
	ExpansionPrompt     string  `json:"expansionPrompt"`
	Reasoning           string  `json:"reasoning"`
}

type analysisList struct {
	Entries []GeneratedAnalysis `validate:"dive"`
}

// Complexity parses an analysis response. Reconciling the entries with the
// analyzed batch is left to complexity.FillMissing.
func (n *Normalizer) Complexity(res llm.Result) ([]complexity.Entry, Stage, error) {
	const op = "normalizeComplexity"

	doc, stage, cleaned, err := n.document(op, res)
	if err != nil {
		return nil, stage, err
	}

	items, err := decodeList[GeneratedAnalysis](doc, "complexityAnalysis", "tasks", "analysis")
	if err != nil {
		return nil, stage, schemaError(op, cleaned, err, ValidationResult{})
	}
	if r := validateStruct(analysisList{Entries: items}); !r.Valid {
		return nil, stage, schemaError(op, cleaned, nil, r)
	}

	entries := make([]complexity.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, complexity.Entry{
			TaskID:              int(it.TaskID),
			TaskTitle:           strings.TrimSpace(it.TaskTitle),
			ComplexityScore:     int(it.ComplexityScore),
			RecommendedSubtasks: int(it.RecommendedSubtasks),
			ExpansionPrompt:     strings.TrimSpace(it.ExpansionPrompt),
			Reasoning:           strings.TrimSpace(it.Reasoning),
		})
	}
	return entries, stage, nil
}
