package offers

import (
	"slices"
	"strconv"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
)

// BuildSearchCriteria translates a quote and its resolved policy into the provider request
// for one direction. Round trips need two calls: returnLeg=false then returnLeg=true.
func BuildSearchCriteria(quote *domain.TravelQuote, options *domain.FlightSearchOptions, excluded []string, returnLeg bool) (domain.SearchCriteria, error) {
	return buildSearchCriteria(quote, options, excluded, returnLeg, time.Now())
}

func buildSearchCriteria(quote *domain.TravelQuote, options *domain.FlightSearchOptions, excluded []string, returnLeg bool, now time.Time) (domain.SearchCriteria, error) {
	opts := domain.FlightSearchOptions{}
	if options != nil {
		opts = *options
	}
	f := quote.Flight
	verr := &domain.ValidationError{}

	if f.OriginIataCode == "" {
		verr.Add("originIataCode", "required")
	} else if len(opts.EnabledOrigins) > 0 && !containsCode(opts.EnabledOrigins, f.OriginIataCode) {
		verr.Add("originIataCode", "origin "+f.OriginIataCode+" is not enabled by policy")
	}
	if f.DestinationIataCode == "" {
		verr.Add("destinationIataCode", "required")
	} else if len(opts.EnabledDestinations) > 0 && !containsCode(opts.EnabledDestinations, f.DestinationIataCode) {
		verr.Add("destinationIataCode", "destination "+f.DestinationIataCode+" is not enabled by policy")
	}
	if returnLeg && f.TripType != domain.TripTypeRoundTrip {
		verr.Add("tripType", "return leg requested for a one-way quote")
	}

	c := domain.SearchCriteria{
		QuoteID:          quote.ID,
		Direction:        domain.DirectionOutbound,
		Origin:           f.OriginIataCode,
		Destination:      f.DestinationIataCode,
		Date:             firstNonEmpty(f.DepartureDate, opts.SeedDepartureDate),
		CabinCeiling:     cabinCeiling(f, opts),
		ExcludedCarriers: domain.NormalizeCodes(excluded),
		Window:           window(f.DepartEarliestTime, f.DepartLatestTime, opts.FixedDepartWindow),
		Pax:              pax(quote, opts),
		NonStop:          opts.NonStopOnly,
		Currency:         quote.Currency,
	}
	dateField := "departureDate"
	if returnLeg {
		c.Direction = domain.DirectionReturn
		c.Origin, c.Destination = c.Destination, c.Origin
		c.Date = firstNonEmpty(f.ReturnDate, opts.SeedReturnDate)
		c.Window = window(f.ReturnEarliestTime, f.ReturnLatestTime, opts.FixedReturnWindow)
		dateField = "returnDate"
	}

	if c.Date == "" {
		verr.Add(dateField, "required")
	} else if day, err := time.Parse(domain.ISODateLayout, c.Date); err != nil {
		verr.Add(dateField, "must be YYYY-MM-DD")
	} else if opts.DaysInAdvanceRequired > 0 {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if int(day.Sub(today).Hours()/24) < opts.DaysInAdvanceRequired {
			verr.Add(dateField, "policy requires booking at least "+strconv.Itoa(opts.DaysInAdvanceRequired)+" days in advance")
		}
	}

	selected := domain.NormalizeCodes(f.SelectedAirlines)
	if len(selected) == 0 {
		selected = domain.NormalizeCodes(opts.AvailableAirlines)
	}
	for _, code := range selected {
		if !slices.Contains(c.ExcludedCarriers, code) {
			c.IncludedCarriers = append(c.IncludedCarriers, code)
		}
	}

	if err := verr.OrNil(); err != nil {
		return domain.SearchCriteria{}, err
	}
	return c, nil
}

// PolicyFor is the filter context matching criteria built from the same inputs.
func PolicyFor(quote *domain.TravelQuote, options *domain.FlightSearchOptions, criteria domain.SearchCriteria) domain.PolicyContext {
	opts := domain.FlightSearchOptions{}
	if options != nil {
		opts = *options
	}
	alliances := quote.Flight.Alliances
	if len(alliances) == 0 {
		alliances = opts.AllowedAlliances
	}
	normalized := make([]string, 0, len(alliances))
	for _, a := range alliances {
		normalized = append(normalized, domain.NormalizeAlliance(a))
	}
	return domain.PolicyContext{
		ExcludedAirlines:  criteria.ExcludedCarriers,
		MaxCabin:          criteria.CabinCeiling,
		Window:            criteria.Window,
		NonStopOnly:       opts.NonStopOnly,
		AllowedAlliances:  normalized,
		PreferredAirlines: domain.NormalizeCodes(opts.PreferredAirlines),
	}
}

// cabinCeiling is the lowest of the quote's and the policy's max cabin. With neither
// set the requested cabin acts as the ceiling.
func cabinCeiling(f domain.FlightQuery, opts domain.FlightSearchOptions) domain.CabinClass {
	var ceiling domain.CabinClass
	for _, c := range []domain.CabinClass{f.MaxCabinClass, opts.MaxCabin} {
		if !c.Valid() {
			continue
		}
		if ceiling == "" || c.Rank() < ceiling.Rank() {
			ceiling = c
		}
	}
	if ceiling == "" && f.CabinClass.Valid() {
		ceiling = f.CabinClass
	}
	return ceiling
}

func window(earliest, latest string, fixed domain.TimeWindow) domain.TimeWindow {
	w := domain.TimeWindow{Earliest: earliest, Latest: latest}
	if w.Empty() {
		return fixed
	}
	return w
}

func pax(quote *domain.TravelQuote, opts domain.FlightSearchOptions) domain.PaxCounts {
	if opts.Pax.Total() > 0 {
		return opts.Pax
	}
	return domain.PaxCounts{Adults: max(1, len(quote.TravelerIDs))}
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if domain.SameCarrier(c, code) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
