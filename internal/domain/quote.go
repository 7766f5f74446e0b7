package domain

import (
	"strings"
	"time"
)

type QuoteState int

const (
	QuoteStateDraft                  QuoteState = 0
	QuoteStateRetrievedUI            QuoteState = 10
	QuoteStateSearchResultsRequested QuoteState = 11
	QuoteStateSubmitted              QuoteState = 20
	QuoteStateApproved               QuoteState = 40
	QuoteStateRejected               QuoteState = 41
	QuoteStateCancelled              QuoteState = 60
	QuoteStateExpired                QuoteState = 61
	QuoteStateArchived               QuoteState = 90
)

var quoteStateNames = map[QuoteState]string{
	QuoteStateDraft:                  "Draft",
	QuoteStateRetrievedUI:            "RetrievedUI",
	QuoteStateSearchResultsRequested: "SearchResultsRequested",
	QuoteStateSubmitted:              "Submitted",
	QuoteStateApproved:               "Approved",
	QuoteStateRejected:               "Rejected",
	QuoteStateCancelled:              "Cancelled",
	QuoteStateExpired:                "Expired",
	QuoteStateArchived:               "Archived",
}

func (s QuoteState) String() string {
	if name, ok := quoteStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

func (s QuoteState) Valid() bool {
	_, ok := quoteStateNames[s]
	return ok
}

// ParseQuoteState accepts a state name, case-insensitive.
func ParseQuoteState(name string) (QuoteState, bool) {
	for state, n := range quoteStateNames {
		if strings.EqualFold(n, name) {
			return state, true
		}
	}
	return 0, false
}

// ExpirableStates are the states the staleness sweep moves into Expired.
var ExpirableStates = []QuoteState{
	QuoteStateDraft,
	QuoteStateRetrievedUI,
	QuoteStateSearchResultsRequested,
	QuoteStateSubmitted,
	QuoteStateApproved,
	QuoteStateRejected,
}

type QuoteType string

const (
	QuoteTypeFlight        QuoteType = "flight"
	QuoteTypeAccommodation QuoteType = "accommodation"
	QuoteTypeTaxi          QuoteType = "taxi"
)

type PolicyKind string

const (
	PolicyKindOrganizationDefault PolicyKind = "OrganizationDefault"
	PolicyKindUserDefined         PolicyKind = "UserDefined"
	PolicyKindEphemeral           PolicyKind = "Ephemeral"
)

type PolicyRef struct {
	ID   string
	Kind PolicyKind
}

type TripType string

const (
	TripTypeOneWay    TripType = "OneWay"
	TripTypeRoundTrip TripType = "RoundTrip"
)

// ApprovalLevels is a graduated approval ladder; levels may be skipped.
const ApprovalLevels = 6

type FlightQuery struct {
	TripType            TripType
	OriginIataCode      string
	DestinationIataCode string
	DepartureDate       string
	ReturnDate          string
	DepartEarliestTime  string
	DepartLatestTime    string
	ReturnEarliestTime  string
	ReturnLatestTime    string
	CabinClass          CabinClass
	MaxCabinClass       CabinClass
	SelectedAirlines    []string
	Alliances           []string
}

type TravelQuote struct {
	ID                 string
	Type               QuoteType
	State              QuoteState
	OrganizationID     string
	CreatedBy          string
	AssignedServicerID string
	Policy             PolicyRef
	Currency           string
	Approvals          [ApprovalLevels]bool
	Note               string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Flight             FlightQuery
	TravelerIDs        []string
}

// LowestPendingApproval returns the lowest approval level not yet granted,
// or -1 when every level is set.
func (q *TravelQuote) LowestPendingApproval() int {
	for i, ok := range q.Approvals {
		if !ok {
			return i
		}
	}
	return -1
}

// SearchReady reports whether the quote carries enough flight fields to search.
func (q *TravelQuote) SearchReady() bool {
	f := q.Flight
	if f.OriginIataCode == "" || f.DestinationIataCode == "" {
		return false
	}
	if f.TripType == TripTypeRoundTrip && f.ReturnDate == "" {
		return false
	}
	return true
}

// Validate checks field syntax; it is called before every write.
func (q *TravelQuote) Validate() error {
	verr := &ValidationError{}
	if q.OrganizationID == "" {
		verr.Add("organizationId", "required")
	}
	if !q.State.Valid() {
		verr.Add("state", "unknown state")
	}
	validateFlightQuery(verr, q.Flight)
	return verr.OrNil()
}

func validateFlightQuery(verr *ValidationError, f FlightQuery) {
	if !ValidAirportCode(f.OriginIataCode) {
		verr.Add("originIataCode", "must be 3 uppercase letters")
	}
	if !ValidAirportCode(f.DestinationIataCode) {
		verr.Add("destinationIataCode", "must be 3 uppercase letters")
	}
	if !ValidISODate(f.DepartureDate) {
		verr.Add("departureDate", "must be YYYY-MM-DD")
	}
	if !ValidISODate(f.ReturnDate) {
		verr.Add("returnDate", "must be YYYY-MM-DD")
	}
	windows := []struct{ field, value string }{
		{"departEarliestTime", f.DepartEarliestTime},
		{"departLatestTime", f.DepartLatestTime},
		{"returnEarliestTime", f.ReturnEarliestTime},
		{"returnLatestTime", f.ReturnLatestTime},
	}
	for _, w := range windows {
		if !ValidTimeOfDay(w.value) {
			verr.Add(w.field, "must be HH:MM")
		}
	}
	if f.CabinClass != "" && !f.CabinClass.Valid() {
		verr.Add("cabinClass", "unknown cabin class")
	}
	if f.MaxCabinClass != "" && !f.MaxCabinClass.Valid() {
		verr.Add("maxCabinClass", "unknown cabin class")
	}
	for _, code := range f.SelectedAirlines {
		if !ValidAirlineCode(code) {
			verr.Add("selectedAirlines", "invalid airline code "+code)
		}
	}
}
