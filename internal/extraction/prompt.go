package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"ScholarshipImporter/internal/domain"
)

// listField is the array-valued property of the JSON contract.
const listField = "scholarships"

// FormatHint primes the model with the field vocabulary of a known source
// format. A nil Pattern matches every subject.
type FormatHint struct {
	Name    string
	Pattern *regexp.Regexp
	Text    string
}

// NewFormatHint compiles pattern; an empty pattern matches every subject.
func NewFormatHint(name, pattern, text string) (FormatHint, error) {
	hint := FormatHint{Name: name, Text: text}
	if pattern == "" {
		return hint, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return FormatHint{}, fmt.Errorf("hint %s: %w", name, err)
	}
	hint.Pattern = re
	return hint, nil
}

// Matches reports whether the hint applies to the subject line.
func (h FormatHint) Matches(subject string) bool {
	return h.Pattern == nil || h.Pattern.MatchString(subject)
}

// GenericHint is used when no other hint matches.
var GenericHint = FormatHint{
	Name: "generic",
	Text: "The message may list one or more scholarships as prose, bullet lists or tables. " +
		"Field labels vary between senders; map each value to the closest key.",
}

// DefaultHints returns the built-in ordered hint list ending with GenericHint.
func DefaultHints() []FormatHint {
	return []FormatHint{
		{
			Name:    "newsletter",
			Pattern: regexp.MustCompile(`(?i)\b(scholarship (alert|digest|roundup|newsletter|opportunities)|weekly scholarships?)\b`),
			Text: "This is a recurring scholarship newsletter. Each listing starts with the scholarship name " +
				"followed by labeled lines such as \"Sponsor:\", \"Amount:\", \"Closing Date:\" or \"Deadline:\", " +
				"\"Eligibility:\", \"How to Apply:\", \"Type:\", \"Location:\" and a link.",
		},
		GenericHint,
	}
}

// SelectHint returns the first hint matching subject, or GenericHint.
func SelectHint(hints []FormatHint, subject string) FormatHint {
	for _, h := range hints {
		if h.Matches(subject) {
			return h
		}
	}
	return GenericHint
}

const systemPrompt = `You extract scholarship listings from emails and web pages into JSON.
Rules:
1. Output strict JSON only: no prose, no explanations, no Markdown code fences.
2. Return one object per distinct scholarship listing inside the "scholarships" array.
3. Use exactly these snake_case keys: title, sponsor, amount, closing_date, deadline, description, link, how_to_apply, eligibility, type, location, application_window.
4. If the source shows both a "closing date" and a "deadline", put the closing date in closing_date and leave deadline empty.
5. Never invent values. A field that is not present in the source is an empty string.
6. Skip listings that have no title.`

const shapeDescription = `{"scholarships":[{"title":"","sponsor":"","amount":"","closing_date":"","deadline":"","description":"","link":"","how_to_apply":"","eligibility":"","type":"","location":"","application_window":""}]}`

func buildUserPrompt(subject string, hint FormatHint, body string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Subject: %s\n\n", strings.TrimSpace(subject)))
	sb.WriteString("Format hint: ")
	sb.WriteString(hint.Text)
	sb.WriteString("\n\nContent:\n\"\"\"\n")
	sb.WriteString(body)
	sb.WriteString("\n\"\"\"\n\nReturn JSON in exactly this shape:\n")
	sb.WriteString(shapeDescription)
	return sb.String()
}

func responseSchema() map[string]any {
	fields := append([]string{}, domain.RecordFields...)
	fields = append(fields, "deadline")

	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = map[string]any{"type": "string"}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			listField: map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": props,
					"required":   []string{"title"},
				},
			},
		},
		"required": []string{listField},
	}
}
