package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type CabinClass string

const (
	CabinEconomy        CabinClass = "ECONOMY"
	CabinPremiumEconomy CabinClass = "PREMIUM_ECONOMY"
	CabinBusiness       CabinClass = "BUSINESS"
	CabinFirst          CabinClass = "FIRST"
)

var cabinRank = map[CabinClass]int{
	CabinEconomy:        1,
	CabinPremiumEconomy: 2,
	CabinBusiness:       3,
	CabinFirst:          4,
}

// Rank orders cabins Economy < Premium Economy < Business < First; unknown cabins rank 0.
func (c CabinClass) Rank() int {
	return cabinRank[c]
}

func (c CabinClass) Valid() bool {
	return c.Rank() > 0
}

// ParseCabinClass accepts provider and UI spellings ("Business", "premium economy", "PREMIUM_ECONOMY").
func ParseCabinClass(s string) (CabinClass, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	c := CabinClass(norm)
	return c, c.Valid()
}

type AmenityType string

const (
	AmenityBaggage         AmenityType = "BAGGAGE"
	AmenityBrandedFare     AmenityType = "BRANDED_FARES"
	AmenityMeal            AmenityType = "MEAL"
	AmenityTravelService   AmenityType = "TRAVEL_SERVICES"
	AmenityPreReservedSeat AmenityType = "PRE_RESERVED_SEAT"
)

type Amenity struct {
	Type         AmenityType `json:"type"`
	Description  string      `json:"description"`
	IsChargeable bool        `json:"isChargeable"`
}

type Carrier struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

func (c Carrier) Equal(other Carrier) bool {
	return SameCarrier(c.Code, other.Code)
}

type Layover struct {
	Airport string `json:"airport"`
	Minutes int    `json:"minutes"`
}

type BaggageAllowance struct {
	CheckedQuantity int    `json:"checkedQuantity"`
	CheckedWeight   int    `json:"checkedWeight,omitempty"`
	WeightUnit      string `json:"weightUnit,omitempty"`
	CabinQuantity   int    `json:"cabinQuantity"`
}

type FlightLeg struct {
	Carrier              Carrier          `json:"carrier"`
	FlightNumber         string           `json:"flightNumber"`
	Origin               string           `json:"origin"`
	OriginTerminal       string           `json:"originTerminal,omitempty"`
	Destination          string           `json:"destination"`
	DestinationTerminal  string           `json:"destinationTerminal,omitempty"`
	DepartAt             time.Time        `json:"departAt"`
	ArriveAt             time.Time        `json:"arriveAt"`
	Equipment            string           `json:"equipment,omitempty"`
	SeatLayout           string           `json:"seatLayout,omitempty"`
	CabinClass           CabinClass       `json:"cabinClass"`
	Amenities            []Amenity        `json:"amenities"`
	Layover              *Layover         `json:"layover,omitempty"`
	OperatingCarrierCode string           `json:"operatingCarrierCode,omitempty"`
	Baggage              BaggageAllowance `json:"baggage"`
	DurationMinutes      int              `json:"durationMinutes"`
}

// IsCodeShare reports a leg marketed by one carrier and operated by another.
func (l FlightLeg) IsCodeShare() bool {
	return l.OperatingCarrierCode != "" && !SameCarrier(l.OperatingCarrierCode, l.Carrier.Code)
}

type FlightViewOption struct {
	ID                   string          `json:"id"`
	ProviderOfferID      string          `json:"providerOfferId"`
	QuoteID              string          `json:"quoteId"`
	Origin               string          `json:"origin"`
	Destination          string          `json:"destination"`
	DepartAt             time.Time       `json:"departAt"`
	ArriveAt             time.Time       `json:"arriveAt"`
	Price                string          `json:"price"`
	PriceCents           int64           `json:"priceCents"`
	Currency             string          `json:"currency"`
	CurrencySymbol       string          `json:"currencySymbol"`
	Cabins               []string        `json:"cabins"`
	Stops                int             `json:"stops"`
	TotalDurationMinutes int             `json:"totalDurationMinutes"`
	Amenities            []Amenity       `json:"amenities"`
	Legs                 []FlightLeg     `json:"legs"`
	BaggagePolicy        string          `json:"baggagePolicy"`
	ChangePolicy         string          `json:"changePolicy"`
	RefundPolicy         string          `json:"refundPolicy"`
	SeatPolicy           string          `json:"seatPolicy"`
	IsOpen               bool            `json:"isOpen"`
	Preferred            bool            `json:"preferred"`
	RawPayload           json.RawMessage `json:"rawPayload,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// HighestCabin is the most premium cabin flown on any leg.
func (o *FlightViewOption) HighestCabin() CabinClass {
	var best CabinClass
	for _, l := range o.Legs {
		if l.CabinClass.Rank() > best.Rank() {
			best = l.CabinClass
		}
	}
	return best
}

// DerivedStops recomputes the stop count from the legs.
func (o *FlightViewOption) DerivedStops() int {
	if len(o.Legs) == 0 {
		return 0
	}
	return len(o.Legs) - 1
}

// DerivedDurationMinutes sums leg durations and the layovers between them.
func (o *FlightViewOption) DerivedDurationMinutes() int {
	total := 0
	for _, l := range o.Legs {
		total += l.DurationMinutes
		if l.Layover != nil {
			total += l.Layover.Minutes
		}
	}
	return total
}

// CarrierCodes lists marketing and operating carriers flown, upper-cased.
func (o *FlightViewOption) CarrierCodes() []string {
	codes := make([]string, 0, len(o.Legs)*2)
	for _, l := range o.Legs {
		codes = append(codes, l.Carrier.Code)
		if l.OperatingCarrierCode != "" {
			codes = append(codes, l.OperatingCarrierCode)
		}
	}
	return NormalizeCodes(codes)
}
