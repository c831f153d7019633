package model

const (
	AnswerStylePlain      = "plain"
	AnswerStyleStructured = "structured"
)

type Answer struct {
	Style      string            `json:"style"`
	Text       string            `json:"text,omitempty"`
	Structured *StructuredAnswer `json:"structured,omitempty"`
	Sources    []Candidate       `json:"sources,omitempty"`
	Grounded   bool              `json:"grounded"`
}

// StructuredAnswer always carries exactly these four sections, in this
// order. Sections missing from the raw model output are back-filled
// with deterministic placeholders.
type StructuredAnswer struct {
	Answer    string `json:"answer"`
	KeyPoints string `json:"key_points"`
	Evidence  string `json:"evidence"`
	FollowUp  string `json:"follow_up"`
}
