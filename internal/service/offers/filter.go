package offers

import (
	"slices"

	"github.com/Domenick1991/travelquotes/internal/domain"
)

// Filter reasons, also used as metric labels.
const (
	ReasonExcludedAirline = "excluded_airline"
	ReasonCabinAboveMax   = "cabin_above_max"
	ReasonOutsideWindow   = "outside_window"
	ReasonNotNonStop      = "not_nonstop"
	ReasonAlliance        = "alliance"
)

// FilterReason returns why opt violates policy, or "" when it passes.
func FilterReason(opt *domain.FlightViewOption, policy domain.PolicyContext) string {
	codes := opt.CarrierCodes()
	for _, code := range codes {
		if slices.ContainsFunc(policy.ExcludedAirlines, func(ex string) bool { return domain.SameCarrier(ex, code) }) {
			return ReasonExcludedAirline
		}
	}
	if policy.MaxCabin.Valid() && opt.HighestCabin().Rank() > policy.MaxCabin.Rank() {
		return ReasonCabinAboveMax
	}
	if !policy.Window.Empty() && !policy.Window.Contains(opt.DepartAt) {
		return ReasonOutsideWindow
	}
	if policy.NonStopOnly && opt.DerivedStops() > 0 {
		return ReasonNotNonStop
	}
	if len(policy.AllowedAlliances) > 0 {
		for _, l := range opt.Legs {
			if !slices.Contains(policy.AllowedAlliances, domain.AllianceOf(l.Carrier.Code)) {
				return ReasonAlliance
			}
		}
	}
	return ""
}

// ApplyPolicyFilters returns the options that pass policy, in input order.
// The input slice is not modified.
func ApplyPolicyFilters(options []domain.FlightViewOption, policy domain.PolicyContext) []domain.FlightViewOption {
	out := make([]domain.FlightViewOption, 0, len(options))
	for i := range options {
		if FilterReason(&options[i], policy) == "" {
			out = append(out, options[i])
		}
	}
	return out
}

// markPreferred flags options whose every marketing carrier is preferred by policy.
func markPreferred(options []domain.FlightViewOption, preferred []string) {
	if len(preferred) == 0 {
		return
	}
	for i := range options {
		all := len(options[i].Legs) > 0
		for _, l := range options[i].Legs {
			if !slices.Contains(preferred, l.Carrier.Code) {
				all = false
				break
			}
		}
		options[i].Preferred = all
	}
}
