package service

import (
	"strings"

	"github.com/renliu0x/askdoc/internal/extract"
	"github.com/renliu0x/askdoc/internal/model"
)

const (
	placeholderAnswer    = "No direct answer could be produced from the indexed documents."
	placeholderKeyPoints = "- Insufficient evidence to extract key points."
	placeholderEvidence  = "- No supporting passages were cited."
	placeholderFollowUp  = "- Ask a more specific question about the uploaded documents."
)

// Section labels, longest forms first so "key points" wins over a
// bare "key". Matching is case-insensitive.
var sectionLabels = []struct {
	form      string
	canonical string
}{
	{"key points", "key_points"},
	{"main points", "key_points"},
	{"highlights", "key_points"},
	{"next steps", "follow_up"},
	{"follow-up", "follow_up"},
	{"follow up", "follow_up"},
	{"followup", "follow_up"},
	{"references", "evidence"},
	{"citations", "evidence"},
	{"evidence", "evidence"},
	{"sources", "evidence"},
	{"response", "answer"},
	{"answer", "answer"},
}

// NormalizePlain strips markdown from the raw model output, leaving
// verbatim text.
func NormalizePlain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ex, err := extract.ForType("markdown")
	if err != nil {
		return raw
	}
	text, err := ex.Extract([]byte(raw))
	if err != nil || strings.TrimSpace(text) == "" {
		return raw
	}
	return strings.TrimSpace(text)
}

// NormalizeStructured parses the raw model output into the four
// canonical sections. Heading lines and "Label: content" lines are
// recognized case-insensitively, with synonyms ("Sources" counts as
// Evidence, "Next steps" as Follow-up). Leading text before the first
// recognized section becomes the Answer body. Missing sections are
// back-filled with deterministic placeholders so the payload always
// has exactly four sections in fixed order.
func NormalizeStructured(raw string) *model.StructuredAnswer {
	sections := map[string][]string{}
	current := "answer"
	for _, line := range strings.Split(raw, "\n") {
		if label, inline, ok := matchSectionHeader(line); ok {
			current = label
			if inline != "" {
				sections[current] = append(sections[current], inline)
			}
			continue
		}
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" && len(sections[current]) == 0 {
			continue
		}
		sections[current] = append(sections[current], trimmed)
	}
	get := func(key, placeholder string) string {
		text := strings.TrimSpace(strings.Join(sections[key], "\n"))
		if text == "" {
			return placeholder
		}
		return text
	}
	return &model.StructuredAnswer{
		Answer:    get("answer", placeholderAnswer),
		KeyPoints: get("key_points", placeholderKeyPoints),
		Evidence:  get("evidence", placeholderEvidence),
		FollowUp:  get("follow_up", placeholderFollowUp),
	}
}

// matchSectionHeader recognizes "## Key Points", "**Evidence:** ...",
// "Sources:" and bare heading lines. A plain sentence that merely
// starts with a label word is not a header: without a heading marker
// the label must be followed by a colon.
func matchSectionHeader(line string) (label, inline string, ok bool) {
	text := strings.TrimSpace(line)
	marked := false
	for strings.HasPrefix(text, "#") {
		text = strings.TrimPrefix(text, "#")
		marked = true
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "**") {
		text = strings.TrimPrefix(text, "**")
		marked = true
	}
	lower := strings.ToLower(text)
	for _, candidate := range sectionLabels {
		if !strings.HasPrefix(lower, candidate.form) {
			continue
		}
		rest := strings.TrimSpace(text[len(candidate.form):])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "**"))
		switch {
		case rest == "":
			if !marked {
				return "", "", false
			}
			return candidate.canonical, "", true
		case strings.HasPrefix(rest, ":"):
			inline = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			inline = strings.TrimSpace(strings.TrimSuffix(inline, "**"))
			inline = strings.TrimSpace(strings.TrimPrefix(inline, "**"))
			return candidate.canonical, inline, true
		default:
			return "", "", false
		}
	}
	return "", "", false
}
