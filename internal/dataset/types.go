// internal/dataset/types.go
package dataset

// DebugSize is the number of examples kept by Debug.
const DebugSize = 10

// Record is one preference pair as stored on disk. A record carries either
// formatted texts (TextChosen/TextRejected) or raw completions (Chosen/Rejected)
// that still need a chat template.
type Record struct {
	Prompt       string `json:"prompt"`
	TextChosen   string `json:"text_chosen,omitempty"`
	TextRejected string `json:"text_rejected,omitempty"`
	Chosen       string `json:"chosen,omitempty"`
	Rejected     string `json:"rejected,omitempty"`
	Subset       string `json:"subset,omitempty"`
	Subsets      string `json:"subsets,omitempty"`
}

// Label returns the subset label, accepting either spelling of the field.
func (r Record) Label() string {
	if r.Subset != "" {
		return r.Subset
	}
	return r.Subsets
}

// Formatted reports whether the record already carries model-ready texts.
func (r Record) Formatted() bool {
	return r.TextChosen != "" && r.TextRejected != ""
}

// Example is a preference pair ready for scoring. Examples are never mutated after loading.
type Example struct {
	Prompt       string
	TextChosen   string
	TextRejected string
	Subset       string
}
