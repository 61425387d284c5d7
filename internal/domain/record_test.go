package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyClosingDatePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		closing string
		due     string
		want    string
	}{
		{name: "closing wins", closing: "2024-01-01", due: "2024-02-01", want: "2024-01-01"},
		{name: "deadline fills gap", due: "2024-02-01", want: "2024-02-01"},
		{name: "closing only", closing: "2024-01-01", want: "2024-01-01"},
		{name: "neither", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ExtractedRecord{Title: "Award", ClosingDate: tt.closing, Deadline: tt.due}
			r.ApplyClosingDatePrecedence()
			assert.Equal(t, tt.want, r.ClosingDate)
			assert.Empty(t, r.Deadline)
		})
	}
}

func TestRowFollowsOutputHeader(t *testing.T) {
	r := ExtractedRecord{
		Title:             "t",
		Sponsor:           "s",
		Amount:            "a",
		ClosingDate:       "c",
		Deadline:          "ignored",
		Description:       "d",
		Link:              "l",
		HowToApply:        "h",
		Eligibility:       "e",
		Type:              "ty",
		Location:          "lo",
		ApplicationWindow: "w",
	}

	row := r.Row()
	require.Len(t, row, len(OutputHeader))
	require.Len(t, RecordFields, len(OutputHeader))
	assert.Equal(t, []string{"t", "s", "a", "c", "d", "l", "h", "e", "ty", "lo", "w"}, row)
	assert.NotContains(t, row, "ignored")
}

func TestDedupeKey(t *testing.T) {
	key := NewDedupeKey("msg-1", "Award | Part 2")
	assert.Equal(t, DedupeKey("msg-1|Award | Part 2"), key)
	assert.Equal(t, "msg-1", key.SourceID())
	assert.Equal(t, "orphan", DedupeKey("orphan").SourceID())
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("status 503")

	perr := &ProviderError{Provider: "openai", StatusCode: 503, Err: cause}
	assert.ErrorIs(t, perr, cause)
	assert.Contains(t, perr.Error(), "openai")

	cerr := &ConfigurationError{Setting: "OPENAI_API_KEY", Err: ErrMissingCredential}
	assert.ErrorIs(t, cerr, ErrMissingCredential)
	assert.Contains(t, cerr.Error(), "OPENAI_API_KEY")
}
