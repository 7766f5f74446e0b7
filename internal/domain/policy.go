package domain

import "time"

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionReturn   Direction = "return"
)

type PaxCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (p PaxCounts) Total() int {
	return p.Adults + p.Children + p.Infants
}

// TimeWindow is an inclusive time-of-day range in "HH:MM". Empty bounds are open.
type TimeWindow struct {
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

func (w TimeWindow) Empty() bool {
	return w.Earliest == "" && w.Latest == ""
}

// Contains compares the wall-clock time of t against the window.
func (w TimeWindow) Contains(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	if w.Earliest != "" {
		if e, ok := minutesOfDay(w.Earliest); ok && minutes < e {
			return false
		}
	}
	if w.Latest != "" {
		if l, ok := minutesOfDay(w.Latest); ok && minutes > l {
			return false
		}
	}
	return true
}

func minutesOfDay(s string) (int, bool) {
	t, err := time.Parse(TimeOfDayLayout, s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// FlightSearchOptions is what the policy resolver knows about a quote's search constraints.
type FlightSearchOptions struct {
	EnabledOrigins        []string
	EnabledDestinations   []string
	AvailableAirlines     []string
	PreferredAirlines     []string
	MaxCabin              CabinClass
	DaysInAdvanceRequired int
	FixedDepartWindow     TimeWindow
	FixedReturnWindow     TimeWindow
	SeedDepartureDate     string
	SeedReturnDate        string
	Pax                   PaxCounts
	NonStopOnly           bool
	AllowedAlliances      []string
}

// PolicyContext is the resolved, per-direction policy the offer filter applies.
type PolicyContext struct {
	ExcludedAirlines  []string
	MaxCabin          CabinClass
	Window            TimeWindow
	NonStopOnly       bool
	AllowedAlliances  []string
	PreferredAirlines []string
}

// SearchCriteria is the canonical request shape sent to the provider client.
type SearchCriteria struct {
	QuoteID          string     `json:"quoteId"`
	Direction        Direction  `json:"direction"`
	Origin           string     `json:"origin"`
	Destination      string     `json:"destination"`
	Date             string     `json:"date"`
	CabinCeiling     CabinClass `json:"cabinCeiling,omitempty"`
	IncludedCarriers []string   `json:"includedCarriers,omitempty"`
	ExcludedCarriers []string   `json:"excludedCarriers,omitempty"`
	Window           TimeWindow `json:"window"`
	Pax              PaxCounts  `json:"pax"`
	NonStop          bool       `json:"nonStop"`
	Currency         string     `json:"currency,omitempty"`
}
