package crawl

import "github.com/apiharvest/apiharvest/internal/extract"

// Outcome classifies a fetched page for the stop policy.
type Outcome int

const (
	// OutcomeEmpty is a page with no mappable items.
	OutcomeEmpty Outcome = iota
	// OutcomeData is a page that produced at least one record.
	OutcomeData
	// OutcomeMappingFailure is a non-empty page on which every record
	// missed every mapped field, a sign the response shape changed.
	OutcomeMappingFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeData:
		return "data"
	case OutcomeMappingFailure:
		return "mapping_failure"
	default:
		return "unknown"
	}
}

// Page is one fetched, mapped page.
type Page struct {
	Number  int
	Items   []any // raw list items, kept for detail templating
	Records []extract.Row
	Outcome Outcome
}
