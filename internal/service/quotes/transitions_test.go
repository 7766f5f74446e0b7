package quotes

import (
	"testing"

	"github.com/Domenick1991/travelquotes/internal/domain"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from  domain.QuoteState
		to    domain.QuoteState
		valid bool
	}{
		{domain.QuoteStateDraft, domain.QuoteStateRetrievedUI, true},
		{domain.QuoteStateRetrievedUI, domain.QuoteStateSearchResultsRequested, true},
		{domain.QuoteStateSearchResultsRequested, domain.QuoteStateRetrievedUI, true},
		{domain.QuoteStateSearchResultsRequested, domain.QuoteStateSubmitted, true},
		{domain.QuoteStateDraft, domain.QuoteStateSubmitted, false},
		{domain.QuoteStateSubmitted, domain.QuoteStateApproved, true},
		{domain.QuoteStateSubmitted, domain.QuoteStateRejected, true},
		{domain.QuoteStateDraft, domain.QuoteStateApproved, false},
		{domain.QuoteStateApproved, domain.QuoteStateCancelled, true},
		{domain.QuoteStateApproved, domain.QuoteStateExpired, true},
		{domain.QuoteStateRejected, domain.QuoteStateExpired, true},
		{domain.QuoteStateRejected, domain.QuoteStateCancelled, true},
		{domain.QuoteStateRejected, domain.QuoteStateApproved, false},
		{domain.QuoteStateExpired, domain.QuoteStateRejected, false},
		{domain.QuoteStateExpired, domain.QuoteStateArchived, true},
		{domain.QuoteStateArchived, domain.QuoteStateDraft, false},
		{domain.QuoteStateArchived, domain.QuoteStateRetrievedUI, false},
		{domain.QuoteStateCancelled, domain.QuoteStateApproved, false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidTransition(%s, %s)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
