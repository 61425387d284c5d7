package domain

import (
	"strings"
	"time"
)

// DedupeSeparator joins the source identifier and title inside a DedupeKey.
const DedupeSeparator = "|"

// ExtractionUnit is one source document submitted for structured extraction.
type ExtractionUnit struct {
	SourceID   string
	Subject    string
	RawText    string
	ReceivedAt time.Time
	Origin     string
}

// ExtractedRecord is a single scholarship listing produced by the extraction engine.
// Deadline only exists to apply the closing-date precedence rule and is always
// empty once the record has been normalized.
type ExtractedRecord struct {
	Title             string `json:"title"`
	Sponsor           string `json:"sponsor"`
	Amount            string `json:"amount"`
	ClosingDate       string `json:"closing_date"`
	Deadline          string `json:"deadline,omitempty"`
	Description       string `json:"description"`
	Link              string `json:"link"`
	HowToApply        string `json:"how_to_apply"`
	Eligibility       string `json:"eligibility"`
	Type              string `json:"type"`
	Location          string `json:"location"`
	ApplicationWindow string `json:"application_window"`
}

// OutputHeader is the exact header row of the output table.
var OutputHeader = []string{
	"Title",
	"Sponsor",
	"Amount",
	"Closing Date",
	"Description",
	"Link",
	"How to Apply",
	"Eligibility",
	"Type",
	"Location",
	"Application Window",
}

// RecordFields lists the snake_case keys of the JSON contract in output order.
var RecordFields = []string{
	"title",
	"sponsor",
	"amount",
	"closing_date",
	"description",
	"link",
	"how_to_apply",
	"eligibility",
	"type",
	"location",
	"application_window",
}

// Row renders the record in OutputHeader column order.
func (r ExtractedRecord) Row() []string {
	return []string{
		r.Title,
		r.Sponsor,
		r.Amount,
		r.ClosingDate,
		r.Description,
		r.Link,
		r.HowToApply,
		r.Eligibility,
		r.Type,
		r.Location,
		r.ApplicationWindow,
	}
}

// ApplyClosingDatePrecedence enforces that closing_date wins over deadline.
// A lone deadline is merged into closing_date; deadline is always cleared.
func (r *ExtractedRecord) ApplyClosingDatePrecedence() {
	if r.ClosingDate == "" && r.Deadline != "" {
		r.ClosingDate = r.Deadline
	}
	r.Deadline = ""
}

// DedupeKey identifies a record inside the persistent dedupe set.
type DedupeKey string

// NewDedupeKey joins the source identifier and the record title.
func NewDedupeKey(sourceID, title string) DedupeKey {
	return DedupeKey(sourceID + DedupeSeparator + title)
}

// SourceID returns the part of the key before the first separator.
func (k DedupeKey) SourceID() string {
	id, _, _ := strings.Cut(string(k), DedupeSeparator)
	return id
}

// UnitStatus is the outcome recorded in the processed-unit ledger.
type UnitStatus string

const (
	UnitImported UnitStatus = "imported"
	UnitEmpty    UnitStatus = "empty"
	UnitFailed   UnitStatus = "failed"
)

// ProcessedUnit is one ledger row describing how a unit was handled.
type ProcessedUnit struct {
	SourceID    string
	Status      UnitStatus
	ProcessedAt time.Time
	Notes       string
}

// ImportSummary reports the outcome of one import run.
type ImportSummary struct {
	Imported   int
	Units      int
	Failed     int
	Duplicates int
	Discarded  int
}

// LinkStatus is the result of validating a single output row link.
type LinkStatus struct {
	Row    int
	URL    string
	Status string
}
