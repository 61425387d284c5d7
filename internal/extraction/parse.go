package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/linkcanon"
)

const snippetLimit = 200

var (
	codeFence = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?[ \t]*```$")
	keySep    = regexp.MustCompile(`[\s-]+`)
)

// stripCodeFence removes an optional Markdown fence around the model output.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// parseResponse decodes the model output into permissive raw objects.
// Trailing commas and single quotes are tolerated through the JSON5 parser.
func parseResponse(raw string) ([]map[string]any, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, &domain.ParseError{Reason: "empty response"}
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		if err5 := json5.Unmarshal([]byte(text), &doc); err5 != nil {
			return nil, &domain.ParseError{Reason: "invalid JSON", Snippet: snippet(text), Err: err}
		}
	}

	var items []any
	switch v := doc.(type) {
	case map[string]any:
		list, ok := v[listField].([]any)
		if !ok {
			return nil, &domain.ParseError{Reason: fmt.Sprintf("missing %q array", listField), Snippet: snippet(text)}
		}
		items = list
	case []any:
		items = v
	default:
		return nil, &domain.ParseError{Reason: "unexpected top-level value", Snippet: snippet(text)}
	}

	objects := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// normalizeRecord coerces a raw object into an ExtractedRecord. It never
// fails: unknown keys are ignored and missing ones stay empty.
func normalizeRecord(raw map[string]any) domain.ExtractedRecord {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		key := keySep.ReplaceAllString(strings.ToLower(strings.TrimSpace(k)), "_")
		if _, seen := fields[key]; seen && coerce(v) == "" {
			continue
		}
		fields[key] = coerce(v)
	}

	rec := domain.ExtractedRecord{
		Title:             fields["title"],
		Sponsor:           fields["sponsor"],
		Amount:            fields["amount"],
		ClosingDate:       fields["closing_date"],
		Deadline:          fields["deadline"],
		Description:       fields["description"],
		Link:              fields["link"],
		HowToApply:        fields["how_to_apply"],
		Eligibility:       fields["eligibility"],
		Type:              fields["type"],
		Location:          fields["location"],
		ApplicationWindow: fields["application_window"],
	}
	rec.ApplyClosingDatePrecedence()
	rec.Link = linkcanon.CleanURL(rec.Link)
	return rec
}

func coerce(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			if s := coerce(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}

func snippet(text string) string {
	if len(text) <= snippetLimit {
		return text
	}
	return text[:snippetLimit]
}
