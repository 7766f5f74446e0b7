package domain

import "strings"

const (
	AllianceOneworld     = "ONEWORLD"
	AllianceStarAlliance = "STAR_ALLIANCE"
	AllianceSkyTeam      = "SKYTEAM"
)

var allianceMembers = map[string][]string{
	AllianceOneworld:     {"AA", "AS", "AY", "BA", "CX", "FJ", "IB", "JL", "MH", "QF", "QR", "RJ", "UL", "WY", "AT"},
	AllianceStarAlliance: {"A3", "AC", "AI", "AV", "BR", "CA", "CM", "ET", "EW", "LH", "LO", "LX", "MS", "NH", "NZ", "OS", "OU", "OZ", "SA", "SK", "SN", "SQ", "TG", "TK", "TP", "UA", "ZH"},
	AllianceSkyTeam:      {"AF", "AM", "AR", "AZ", "CI", "DL", "GA", "KE", "KL", "KQ", "ME", "MF", "MU", "RO", "SV", "VN", "VS", "UX", "XA"},
}

var airlineAlliance = func() map[string]string {
	m := make(map[string]string)
	for alliance, members := range allianceMembers {
		for _, code := range members {
			m[code] = alliance
		}
	}
	return m
}()

// NormalizeAlliance maps UI spellings ("Star Alliance", "oneworld") to the canonical key.
func NormalizeAlliance(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	if n == "ONE_WORLD" {
		return AllianceOneworld
	}
	if n == "SKY_TEAM" {
		return AllianceSkyTeam
	}
	return n
}

// AllianceOf returns the alliance of an airline code, or "" for unaligned carriers.
func AllianceOf(code string) string {
	return airlineAlliance[strings.ToUpper(strings.TrimSpace(code))]
}
