package offers

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/provider"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Provider timestamps are airport-local wall clock without an offset.
const providerTimeLayout = "2006-01-02T15:04:05"

var currencySymbols = map[string]string{
	"AUD": "A$",
	"CAD": "C$",
	"CHF": "CHF",
	"CNY": "¥",
	"EUR": "€",
	"GBP": "£",
	"HKD": "HK$",
	"INR": "₹",
	"JPY": "¥",
	"NZD": "NZ$",
	"SGD": "S$",
	"USD": "$",
}

// CurrencySymbol returns the display symbol, or the code itself when unknown.
func CurrencySymbol(code string) string {
	code = strings.ToUpper(code)
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	return code
}

type Normalizer struct {
	matcher AmenityMatcher
	log     *zerolog.Logger
	now     func() time.Time
}

func NewNormalizer(matcher AmenityMatcher, log *zerolog.Logger) *Normalizer {
	return &Normalizer{matcher: matcher, log: log, now: time.Now}
}

// Normalize converts a provider batch into view options in provider order.
// Offers that cannot be mapped are logged and skipped.
func (n *Normalizer) Normalize(quoteID string, batch *provider.RawOfferBatch) []domain.FlightViewOption {
	if batch == nil {
		return nil
	}
	options := make([]domain.FlightViewOption, 0, len(batch.Offers))
	for _, offer := range batch.Offers {
		opt, err := n.normalizeOffer(quoteID, offer, batch.Dictionaries)
		if err != nil {
			n.log.Warn().Err(err).Str("quote_id", quoteID).Str("offer_id", offer.ID).Msg("skipping malformed offer")
			continue
		}
		options = append(options, opt)
	}
	return options
}

func (n *Normalizer) normalizeOffer(quoteID string, offer provider.RawOffer, dict provider.Dictionaries) (domain.FlightViewOption, error) {
	if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
		return domain.FlightViewOption{}, errors.New("offer has no segments")
	}
	segments := offer.Itineraries[0].Segments

	var details []provider.RawSegmentFare
	if len(offer.TravelerPricings) > 0 {
		details = offer.TravelerPricings[0].FareDetailsBySegment
	}
	fareBySegment := make(map[string]provider.RawSegmentFare, len(details))
	for _, d := range details {
		fareBySegment[d.SegmentID] = d
	}

	legs := make([]domain.FlightLeg, 0, len(segments))
	fares := make([]provider.RawSegmentFare, 0, len(segments))
	zoned := true
	for i, seg := range segments {
		fare, ok := fareBySegment[seg.ID]
		if !ok && i < len(details) {
			fare = details[i]
		}
		leg, legZoned, err := n.leg(seg, fare, dict)
		if err != nil {
			return domain.FlightViewOption{}, fmt.Errorf("segment %d: %w", i, err)
		}
		zoned = zoned && legZoned
		legs = append(legs, leg)
		fares = append(fares, fare)
	}
	// Provider segments are chronological. Local wall-clock times from different
	// airports are not comparable, so only offset-qualified times may reorder them.
	if zoned {
		sort.SliceStable(legs, func(i, j int) bool { return legs[i].DepartAt.Before(legs[j].DepartAt) })
	}
	for i := 0; i < len(legs)-1; i++ {
		legs[i].Layover = &domain.Layover{
			Airport: legs[i].Destination,
			Minutes: int(legs[i+1].DepartAt.Sub(legs[i].ArriveAt).Minutes()),
		}
	}

	priceText := offer.Price.GrandTotal
	if priceText == "" {
		priceText = offer.Price.Total
	}
	price, err := strconv.ParseFloat(priceText, 64)
	if err != nil {
		return domain.FlightViewOption{}, fmt.Errorf("price %q: %w", priceText, err)
	}
	currency := strings.ToUpper(offer.Price.Currency)

	opt := domain.FlightViewOption{
		ID:              uuid.NewString(),
		ProviderOfferID: offer.ID,
		QuoteID:         quoteID,
		Origin:          legs[0].Origin,
		Destination:     legs[len(legs)-1].Destination,
		DepartAt:        legs[0].DepartAt,
		ArriveAt:        legs[len(legs)-1].ArriveAt,
		Price:           priceText,
		PriceCents:      int64(math.Round(price * 100)),
		Currency:        currency,
		CurrencySymbol:  CurrencySymbol(currency),
		Legs:            legs,
		IsOpen:          offer.OpenTicket,
		RawPayload:      offer.Raw,
		CreatedAt:       n.now().UTC(),
	}
	opt.Stops = opt.DerivedStops()
	opt.TotalDurationMinutes = opt.DerivedDurationMinutes()

	seenCabin := map[domain.CabinClass]bool{}
	seenAmenity := map[domain.Amenity]bool{}
	for _, l := range legs {
		if l.CabinClass != "" && !seenCabin[l.CabinClass] {
			seenCabin[l.CabinClass] = true
			opt.Cabins = append(opt.Cabins, string(l.CabinClass))
		}
		for _, a := range l.Amenities {
			if !seenAmenity[a] {
				seenAmenity[a] = true
				opt.Amenities = append(opt.Amenities, a)
			}
		}
	}

	policy := func(pick func(provider.RawPolicies) string) string {
		for _, f := range fares {
			if v := pick(f.Policies); v != "" {
				return v
			}
		}
		return pick(offer.Policies)
	}
	opt.BaggagePolicy = policy(func(p provider.RawPolicies) string { return p.Baggage })
	opt.ChangePolicy = policy(func(p provider.RawPolicies) string { return p.Change })
	opt.RefundPolicy = policy(func(p provider.RawPolicies) string { return p.Refund })
	opt.SeatPolicy = policy(func(p provider.RawPolicies) string { return p.Seat })

	return opt, nil
}

// leg maps one segment. zoned reports whether both endpoint times carried a UTC offset.
func (n *Normalizer) leg(seg provider.RawSegment, fare provider.RawSegmentFare, dict provider.Dictionaries) (leg domain.FlightLeg, zoned bool, err error) {
	departAt, departZoned, err := parseProviderTime(seg.Departure.At)
	if err != nil {
		return domain.FlightLeg{}, false, fmt.Errorf("departure time: %w", err)
	}
	arriveAt, arriveZoned, err := parseProviderTime(seg.Arrival.At)
	if err != nil {
		return domain.FlightLeg{}, false, fmt.Errorf("arrival time: %w", err)
	}
	if seg.CarrierCode == "" {
		return domain.FlightLeg{}, false, errors.New("missing carrier code")
	}
	zoned = departZoned && arriveZoned

	code := strings.ToUpper(seg.CarrierCode)
	leg = domain.FlightLeg{
		Carrier:             domain.Carrier{Code: code, Name: dict.Carriers[code]},
		FlightNumber:        code + seg.Number,
		Origin:              seg.Departure.IataCode,
		OriginTerminal:      seg.Departure.Terminal,
		Destination:         seg.Arrival.IataCode,
		DestinationTerminal: seg.Arrival.Terminal,
		DepartAt:            departAt,
		ArriveAt:            arriveAt,
		Equipment:           seg.Aircraft.Code,
		SeatLayout:          seg.SeatLayout,
		Amenities:           []domain.Amenity{},
	}
	if name, ok := dict.Aircraft[seg.Aircraft.Code]; ok {
		leg.Equipment = name
	}
	if seg.Operating != nil {
		leg.OperatingCarrierCode = strings.ToUpper(seg.Operating.CarrierCode)
	}
	if c, ok := domain.ParseCabinClass(fare.Cabin); ok {
		leg.CabinClass = c
	}
	if bags := fare.IncludedCheckedBags; bags != nil {
		leg.Baggage.CheckedQuantity = bags.Quantity
		leg.Baggage.CheckedWeight = bags.Weight
		leg.Baggage.WeightUnit = bags.WeightUnit
	}
	if bags := fare.IncludedCabinBags; bags != nil {
		leg.Baggage.CabinQuantity = bags.Quantity
	}
	for _, tag := range fare.Amenities {
		if t, ok := n.matcher.Match(tag); ok {
			leg.Amenities = append(leg.Amenities, domain.Amenity{Type: t, Description: tag.Description, IsChargeable: tag.IsChargeable})
		}
	}

	if minutes, ok := parseISODuration(seg.Duration); ok {
		leg.DurationMinutes = minutes
	} else if zoned {
		leg.DurationMinutes = int(arriveAt.Sub(departAt).Minutes())
	}
	return leg, zoned, nil
}

// parseProviderTime accepts airport-local wall clock ("2006-01-02T15:04:05") or RFC3339.
// zoned is true only for the latter.
func parseProviderTime(s string) (t time.Time, zoned bool, err error) {
	if local, perr := time.Parse(providerTimeLayout, s); perr == nil {
		return local, false, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t, err == nil, err
}

// parseISODuration reads the day/hour/minute subset of ISO-8601 durations ("PT8H10M", "P1DT2H")
// and returns whole minutes.
func parseISODuration(s string) (int, bool) {
	if len(s) < 3 || s[0] != 'P' {
		return 0, false
	}
	total := 0
	inTime := false
	num := 0
	digits := 0
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num = num*10 + int(c-'0')
			digits++
			continue
		case c == 'T':
			if inTime || digits > 0 {
				return 0, false
			}
			inTime = true
			continue
		}
		if digits == 0 {
			return 0, false
		}
		switch {
		case c == 'D' && !inTime:
			total += num * 24 * 60
		case c == 'H' && inTime:
			total += num * 60
		case c == 'M' && inTime:
			total += num
		case c == 'S' && inTime:
			total += num / 60
		default:
			return 0, false
		}
		num, digits = 0, 0
	}
	if digits > 0 {
		return 0, false
	}
	return total, true
}
