package offers

import (
	"regexp"
	"strings"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/provider"
)

// AmenityMatcher maps a provider amenity tag to the canonical amenity type.
// ok=false means the tag is dropped.
type AmenityMatcher interface {
	Match(tag provider.RawAmenity) (domain.AmenityType, bool)
}

var amenityTags = map[string]domain.AmenityType{
	"BAGGAGE":            domain.AmenityBaggage,
	"CHECKED_BAG":        domain.AmenityBaggage,
	"CHECKED_BAGS":       domain.AmenityBaggage,
	"BRANDED_FARES":      domain.AmenityBrandedFare,
	"BRANDED_FARE":       domain.AmenityBrandedFare,
	"MEAL":               domain.AmenityMeal,
	"MEALS":              domain.AmenityMeal,
	"TRAVEL_SERVICES":    domain.AmenityTravelService,
	"TRAVEL_SERVICE":     domain.AmenityTravelService,
	"PRE_RESERVED_SEAT":  domain.AmenityPreReservedSeat,
	"PRE_RESERVED_SEATS": domain.AmenityPreReservedSeat,
}

// ExactTagMatcher looks the structured amenityType up in a fixed table.
type ExactTagMatcher struct{}

func (ExactTagMatcher) Match(tag provider.RawAmenity) (domain.AmenityType, bool) {
	key := strings.ToUpper(strings.TrimSpace(tag.AmenityType))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	t, ok := amenityTags[key]
	return t, ok
}

type amenityPattern struct {
	re   *regexp.Regexp
	kind domain.AmenityType
}

// RegexMatcher classifies by the free-text description. Patterns are tried in order.
type RegexMatcher struct {
	patterns []amenityPattern
}

func NewRegexMatcher() *RegexMatcher {
	return &RegexMatcher{patterns: []amenityPattern{
		{regexp.MustCompile(`(?i)\b(pre[- ]?reserved seat|seat (selection|reservation|assignment)|(extra )?legroom)`), domain.AmenityPreReservedSeat},
		{regexp.MustCompile(`(?i)\b(meals?|snacks?|beverages?|food|drinks?)\b`), domain.AmenityMeal},
		{regexp.MustCompile(`(?i)\b(bags?|baggage|luggage)\b`), domain.AmenityBaggage},
		{regexp.MustCompile(`(?i)\b(branded fare|fare family)\b`), domain.AmenityBrandedFare},
		{regexp.MustCompile(`(?i)\b(priority|lounge|upgrade|wi-?fi|fast track)\b`), domain.AmenityTravelService},
	}}
}

func (m *RegexMatcher) Match(tag provider.RawAmenity) (domain.AmenityType, bool) {
	for _, p := range m.patterns {
		if p.re.MatchString(tag.Description) {
			return p.kind, true
		}
	}
	return "", false
}

// ChainMatcher returns the first match among its strategies.
type ChainMatcher []AmenityMatcher

func (c ChainMatcher) Match(tag provider.RawAmenity) (domain.AmenityType, bool) {
	for _, m := range c {
		if t, ok := m.Match(tag); ok {
			return t, true
		}
	}
	return "", false
}

// NewAmenityMatcher builds the exact table, optionally followed by the regex fallback.
func NewAmenityMatcher(regexFallback bool) AmenityMatcher {
	if !regexFallback {
		return ExactTagMatcher{}
	}
	return ChainMatcher{ExactTagMatcher{}, NewRegexMatcher()}
}
