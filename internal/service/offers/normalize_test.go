package offers

import (
	"os"
	"testing"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/logging"
	"github.com/Domenick1991/travelquotes/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadBatch(t *testing.T) *provider.RawOfferBatch {
	t.Helper()
	body, err := os.ReadFile("testdata/syd_sin_offers.json")
	require.NoError(t, err)
	batch, err := provider.ParseOfferBatch(body)
	require.NoError(t, err)
	return batch
}

func normalizeFixture(t *testing.T) []domain.FlightViewOption {
	t.Helper()
	n := NewNormalizer(NewAmenityMatcher(false), logging.Nop())
	options := n.Normalize("Q1", loadBatch(t))
	require.Len(t, options, 4)
	return options
}

func TestNormalize_NonStopOffer(t *testing.T) {
	opt := normalizeFixture(t)[0]

	assert.NotEmpty(t, opt.ID)
	assert.Equal(t, "1", opt.ProviderOfferID)
	assert.Equal(t, "Q1", opt.QuoteID)
	assert.Equal(t, "SYD", opt.Origin)
	assert.Equal(t, "SIN", opt.Destination)
	assert.Equal(t, time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC), opt.DepartAt)
	assert.Equal(t, "1234.56", opt.Price)
	assert.Equal(t, int64(123456), opt.PriceCents)
	assert.Equal(t, "AUD", opt.Currency)
	assert.Equal(t, "A$", opt.CurrencySymbol)
	assert.Equal(t, []string{"ECONOMY"}, opt.Cabins)
	assert.Equal(t, 0, opt.Stops)
	assert.Equal(t, 490, opt.TotalDurationMinutes)
	assert.False(t, opt.IsOpen)
	assert.NotEmpty(t, opt.RawPayload)

	require.Len(t, opt.Legs, 1)
	leg := opt.Legs[0]
	assert.Equal(t, domain.Carrier{Code: "QF", Name: "QANTAS AIRWAYS"}, leg.Carrier)
	assert.Equal(t, "QF1", leg.FlightNumber)
	assert.Equal(t, "1", leg.OriginTerminal)
	assert.Equal(t, "AIRBUS A380-800", leg.Equipment)
	assert.Equal(t, "3-4-3", leg.SeatLayout)
	assert.Equal(t, domain.CabinEconomy, leg.CabinClass)
	assert.Nil(t, leg.Layover)
	assert.False(t, leg.IsCodeShare())
	assert.Equal(t, domain.BaggageAllowance{CheckedQuantity: 1, CheckedWeight: 23, WeightUnit: "KG", CabinQuantity: 1}, leg.Baggage)

	// the ENTERTAINMENT tag has no table entry and is dropped
	assert.Equal(t, []domain.Amenity{
		{Type: domain.AmenityBaggage, Description: "CHECKED BAG 1PC 23KG"},
		{Type: domain.AmenityMeal, Description: "HOT MEAL"},
	}, opt.Amenities)

	assert.Equal(t, "1 piece 23kg included", opt.BaggagePolicy)
	assert.Equal(t, "Changes permitted for a fee", opt.ChangePolicy)
	assert.Equal(t, "Non-refundable", opt.RefundPolicy)
	assert.Equal(t, "", opt.SeatPolicy)
}

func TestNormalize_ConnectingCodeShare(t *testing.T) {
	opt := normalizeFixture(t)[2]

	assert.Equal(t, "SYD", opt.Origin)
	assert.Equal(t, "SIN", opt.Destination)
	assert.Equal(t, 1, opt.Stops)
	assert.Equal(t, opt.DerivedStops(), opt.Stops)
	assert.Equal(t, 95+90+475, opt.TotalDurationMinutes)
	assert.Equal(t, []string{"ECONOMY", "BUSINESS"}, opt.Cabins)
	assert.Equal(t, domain.CabinBusiness, opt.HighestCabin())
	assert.True(t, opt.IsOpen)
	assert.Equal(t, []string{"SQ", "QF"}, opt.CarrierCodes())

	require.Len(t, opt.Legs, 2)
	first, second := opt.Legs[0], opt.Legs[1]
	assert.Equal(t, "SQ", first.Carrier.Code)
	assert.Equal(t, "QF", first.OperatingCarrierCode)
	assert.True(t, first.IsCodeShare())
	assert.False(t, second.IsCodeShare())
	require.NotNil(t, first.Layover)
	assert.Equal(t, domain.Layover{Airport: "MEL", Minutes: 90}, *first.Layover)
	assert.Nil(t, second.Layover)

	assert.Equal(t, []domain.Amenity{
		{Type: domain.AmenityMeal, Description: "SNACK"},
		{Type: domain.AmenityPreReservedSeat, Description: "PRE RESERVED SEAT ASSIGNMENT"},
	}, opt.Amenities)
	assert.Equal(t, "", opt.BaggagePolicy)
	assert.Equal(t, "", opt.ChangePolicy)
}

func TestNormalize_PreservesProviderOrder(t *testing.T) {
	options := normalizeFixture(t)

	ids := make([]string, 0, len(options))
	for _, o := range options {
		ids = append(ids, o.ProviderOfferID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestNormalize_SortsOffsetQualifiedLegs(t *testing.T) {
	batch := &provider.RawOfferBatch{Offers: []provider.RawOffer{{
		ID:    "x",
		Price: provider.RawPrice{Currency: "usd", GrandTotal: "19.999"},
		Itineraries: []provider.RawItinerary{{Segments: []provider.RawSegment{
			{ID: "b", CarrierCode: "AA", Number: "2", Departure: provider.RawEndpoint{IataCode: "ORD", At: "2026-12-01T13:00:00-06:00"}, Arrival: provider.RawEndpoint{IataCode: "LAX", At: "2026-12-01T15:00:00-08:00"}},
			{ID: "a", CarrierCode: "AA", Number: "1", Departure: provider.RawEndpoint{IataCode: "JFK", At: "2026-12-01T08:00:00-05:00"}, Arrival: provider.RawEndpoint{IataCode: "ORD", At: "2026-12-01T10:00:00-06:00"}},
		}}},
	}}}

	options := NewNormalizer(ExactTagMatcher{}, logging.Nop()).Normalize("Q1", batch)

	require.Len(t, options, 1)
	opt := options[0]
	assert.Equal(t, "JFK", opt.Origin)
	assert.Equal(t, "LAX", opt.Destination)
	require.NotNil(t, opt.Legs[0].Layover)
	assert.Equal(t, domain.Layover{Airport: "ORD", Minutes: 180}, *opt.Legs[0].Layover)
	assert.Equal(t, 180+180+240, opt.TotalDurationMinutes)
	assert.Equal(t, "$", opt.CurrencySymbol)
	assert.Equal(t, int64(2000), opt.PriceCents)
	assert.Empty(t, opt.Cabins)
}

func TestNormalize_DateLineConnectionKeepsProviderOrder(t *testing.T) {
	// Crossing the date line, the AKL departure reads later than the HNL one on the same local date.
	batch := &provider.RawOfferBatch{Offers: []provider.RawOffer{{
		ID:    "akl-sfo",
		Price: provider.RawPrice{Currency: "NZD", GrandTotal: "2100.00"},
		Itineraries: []provider.RawItinerary{{Segments: []provider.RawSegment{
			{ID: "1", CarrierCode: "HA", Number: "446", Duration: "PT11H",
				Departure: provider.RawEndpoint{IataCode: "AKL", At: "2026-12-01T22:00:00"},
				Arrival:   provider.RawEndpoint{IataCode: "HNL", At: "2026-12-01T09:00:00"}},
			{ID: "2", CarrierCode: "HA", Number: "12", Duration: "PT5H",
				Departure: provider.RawEndpoint{IataCode: "HNL", At: "2026-12-01T11:00:00"},
				Arrival:   provider.RawEndpoint{IataCode: "SFO", At: "2026-12-01T19:00:00"}},
		}}},
	}}}

	options := NewNormalizer(ExactTagMatcher{}, logging.Nop()).Normalize("Q1", batch)

	require.Len(t, options, 1)
	opt := options[0]
	assert.Equal(t, "AKL", opt.Origin)
	assert.Equal(t, "SFO", opt.Destination)
	assert.Equal(t, time.Date(2026, 12, 1, 22, 0, 0, 0, time.UTC), opt.DepartAt)
	require.Len(t, opt.Legs, 2)
	assert.Equal(t, "AKL", opt.Legs[0].Origin)
	assert.Equal(t, "HNL", opt.Legs[1].Origin)
	require.NotNil(t, opt.Legs[0].Layover)
	assert.Equal(t, domain.Layover{Airport: "HNL", Minutes: 120}, *opt.Legs[0].Layover)
	assert.Equal(t, 660+120+300, opt.TotalDurationMinutes)
	assert.Equal(t, opt.DerivedDurationMinutes(), opt.TotalDurationMinutes)
}

func TestNormalize_LocalTimesWithoutDurationLeaveLegDurationUnset(t *testing.T) {
	batch := &provider.RawOfferBatch{Offers: []provider.RawOffer{{
		ID:    "x",
		Price: provider.RawPrice{Currency: "NZD", Total: "10"},
		Itineraries: []provider.RawItinerary{{Segments: []provider.RawSegment{
			{ID: "1", CarrierCode: "HA", Number: "446",
				Departure: provider.RawEndpoint{IataCode: "AKL", At: "2026-12-01T22:00:00"},
				Arrival:   provider.RawEndpoint{IataCode: "HNL", At: "2026-12-01T09:00:00"}},
		}}},
	}}}

	options := NewNormalizer(ExactTagMatcher{}, logging.Nop()).Normalize("Q1", batch)

	require.Len(t, options, 1)
	assert.Equal(t, 0, options[0].Legs[0].DurationMinutes)
}

func TestNormalize_SkipsMalformedOffers(t *testing.T) {
	good := provider.RawOffer{
		ID:    "ok",
		Price: provider.RawPrice{Currency: "EUR", Total: "99.90"},
		Itineraries: []provider.RawItinerary{{Segments: []provider.RawSegment{
			{CarrierCode: "LH", Number: "400", Departure: provider.RawEndpoint{IataCode: "FRA", At: "2026-12-01T10:00:00Z"}, Arrival: provider.RawEndpoint{IataCode: "JFK", At: "2026-12-01T18:45:00Z"}, Duration: "PT8H45M"},
		}}},
	}
	noSegments := provider.RawOffer{ID: "empty", Price: provider.RawPrice{GrandTotal: "1.00"}}
	badPrice := good
	badPrice.ID = "price"
	badPrice.Price = provider.RawPrice{GrandTotal: "n/a"}
	badTime := good
	badTime.ID = "time"
	badTime.Itineraries = []provider.RawItinerary{{Segments: []provider.RawSegment{{CarrierCode: "LH", Departure: provider.RawEndpoint{At: "tomorrow"}}}}}

	batch := &provider.RawOfferBatch{Offers: []provider.RawOffer{noSegments, badPrice, good, badTime}}
	options := NewNormalizer(ExactTagMatcher{}, logging.Nop()).Normalize("Q1", batch)

	require.Len(t, options, 1)
	assert.Equal(t, "ok", options[0].ProviderOfferID)
	assert.Equal(t, "€", options[0].CurrencySymbol)
	assert.Equal(t, int64(9990), options[0].PriceCents)
	assert.Equal(t, 525, options[0].TotalDurationMinutes)
}

func TestNormalize_NilBatch(t *testing.T) {
	assert.Empty(t, NewNormalizer(ExactTagMatcher{}, logging.Nop()).Normalize("Q1", nil))
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"PT8H10M", 490, true},
		{"PT45M", 45, true},
		{"PT2H", 120, true},
		{"P1DT2H30M", 1590, true},
		{"PT1H30M59S", 90, true},
		{"", 0, false},
		{"8H10M", 0, false},
		{"PT", 0, false},
		{"PTH", 0, false},
		{"PT8X", 0, false},
		{"PT10", 0, false},
		{"P2H", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseISODuration(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmenityMatchers(t *testing.T) {
	tagged := provider.RawAmenity{Description: "ANYTHING", AmenityType: "branded fares"}
	freeText := provider.RawAmenity{Description: "Complimentary lounge access"}
	unknown := provider.RawAmenity{Description: "NEWSPAPER", AmenityType: "ENTERTAINMENT"}

	exact := NewAmenityMatcher(false)
	got, ok := exact.Match(tagged)
	assert.True(t, ok)
	assert.Equal(t, domain.AmenityBrandedFare, got)
	_, ok = exact.Match(freeText)
	assert.False(t, ok)

	chain := NewAmenityMatcher(true)
	got, ok = chain.Match(freeText)
	assert.True(t, ok)
	assert.Equal(t, domain.AmenityTravelService, got)
	_, ok = chain.Match(unknown)
	assert.False(t, ok)

	// the exact table wins over a conflicting description
	got, _ = chain.Match(provider.RawAmenity{Description: "extra bag", AmenityType: "MEAL"})
	assert.Equal(t, domain.AmenityMeal, got)
}

func TestRegexMatcher(t *testing.T) {
	m := NewRegexMatcher()
	tests := map[string]domain.AmenityType{
		"1ST CHECKED BAG":              domain.AmenityBaggage,
		"Hot meal":                     domain.AmenityMeal,
		"PRE RESERVED SEAT ASSIGNMENT": domain.AmenityPreReservedSeat,
		"Fare family upgrade":          domain.AmenityBrandedFare,
		"Onboard wifi":                 domain.AmenityTravelService,
	}
	for desc, want := range tests {
		got, ok := m.Match(provider.RawAmenity{Description: desc})
		assert.True(t, ok, desc)
		assert.Equal(t, want, got, desc)
	}
	_, ok := m.Match(provider.RawAmenity{Description: "Newspaper"})
	assert.False(t, ok)
}
