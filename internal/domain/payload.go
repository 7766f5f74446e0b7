package domain

import "strings"

// FlightSearchPayload is the persisted job payload and the UI result patch.
// Every field except ID is optional; nil means "leave unchanged".
type FlightSearchPayload struct {
	ID                  string    `json:"id"`
	Type                *string   `json:"type,omitempty"`
	TravelQuoteID       *string   `json:"travelQuoteId,omitempty"`
	TripType            *string   `json:"tripType,omitempty"`
	OriginIataCode      *string   `json:"originIataCode,omitempty"`
	DestinationIataCode *string   `json:"destinationIataCode,omitempty"`
	DepartureDate       *string   `json:"departureDate,omitempty"`
	ReturnDate          *string   `json:"returnDate,omitempty"`
	DepartEarliestTime  *string   `json:"departEarliestTime,omitempty"`
	DepartLatestTime    *string   `json:"departLatestTime,omitempty"`
	ReturnEarliestTime  *string   `json:"returnEarliestTime,omitempty"`
	ReturnLatestTime    *string   `json:"returnLatestTime,omitempty"`
	CabinClass          *string   `json:"cabinClass,omitempty"`
	MaxCabinClass       *string   `json:"maxCabinClass,omitempty"`
	SelectedAirlines    *[]string `json:"selectedAirlines,omitempty"`
	Alliances           *[]string `json:"alliances,omitempty"`
	RequestSearch       bool      `json:"requestSearch,omitempty"`
}

// QuoteID is the quote a payload targets. ID wins over travelQuoteId when both are set.
func (p FlightSearchPayload) QuoteID() string {
	if p.ID == "" && p.TravelQuoteID != nil {
		return strings.TrimSpace(*p.TravelQuoteID)
	}
	return p.ID
}

// Apply validates the patch against q and applies it. Nothing is mutated when validation fails.
func (p FlightSearchPayload) Apply(q *TravelQuote) error {
	next := q.Flight
	next.SelectedAirlines = append([]string(nil), q.Flight.SelectedAirlines...)
	next.Alliances = append([]string(nil), q.Flight.Alliances...)
	verr := &ValidationError{}

	if p.TripType != nil {
		switch TripType(*p.TripType) {
		case TripTypeOneWay, TripTypeRoundTrip:
			next.TripType = TripType(*p.TripType)
		default:
			verr.Add("tripType", "must be OneWay or RoundTrip")
		}
	}
	setCode(&next.OriginIataCode, p.OriginIataCode)
	setCode(&next.DestinationIataCode, p.DestinationIataCode)
	setString(&next.DepartureDate, p.DepartureDate)
	setString(&next.ReturnDate, p.ReturnDate)
	setString(&next.DepartEarliestTime, p.DepartEarliestTime)
	setString(&next.DepartLatestTime, p.DepartLatestTime)
	setString(&next.ReturnEarliestTime, p.ReturnEarliestTime)
	setString(&next.ReturnLatestTime, p.ReturnLatestTime)
	if p.CabinClass != nil {
		next.CabinClass = parseCabinField(verr, "cabinClass", *p.CabinClass)
	}
	if p.MaxCabinClass != nil {
		next.MaxCabinClass = parseCabinField(verr, "maxCabinClass", *p.MaxCabinClass)
	}
	if p.SelectedAirlines != nil {
		next.SelectedAirlines = NormalizeCodes(*p.SelectedAirlines)
	}
	if p.Alliances != nil {
		next.Alliances = next.Alliances[:0]
		for _, a := range *p.Alliances {
			next.Alliances = append(next.Alliances, NormalizeAlliance(a))
		}
	}

	validateFlightQuery(verr, next)
	if err := verr.OrNil(); err != nil {
		return err
	}

	if p.Type != nil && *p.Type != "" {
		q.Type = QuoteType(*p.Type)
	}
	q.Flight = next
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setCode(dst *string, v *string) {
	if v != nil {
		*dst = strings.ToUpper(strings.TrimSpace(*v))
	}
}

func parseCabinField(verr *ValidationError, field, value string) CabinClass {
	if value == "" {
		return ""
	}
	c, ok := ParseCabinClass(value)
	if !ok {
		verr.Add(field, "unknown cabin class "+value)
		return ""
	}
	return c
}
