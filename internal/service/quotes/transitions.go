package quotes

import "github.com/Domenick1991/travelquotes/internal/domain"

// transitionMap lists, per target state, the states a quote may move from
// when strict transitions are enabled.
var transitionMap = map[domain.QuoteState][]domain.QuoteState{
	domain.QuoteStateRetrievedUI: {
		domain.QuoteStateDraft,
		domain.QuoteStateRetrievedUI,
		domain.QuoteStateSearchResultsRequested,
	},
	domain.QuoteStateSearchResultsRequested: {
		domain.QuoteStateDraft,
		domain.QuoteStateRetrievedUI,
		domain.QuoteStateSearchResultsRequested,
	},
	domain.QuoteStateSubmitted: {
		domain.QuoteStateRetrievedUI,
		domain.QuoteStateSearchResultsRequested,
	},
	domain.QuoteStateApproved: {domain.QuoteStateSubmitted},
	domain.QuoteStateRejected: {domain.QuoteStateSubmitted, domain.QuoteStateApproved},
	domain.QuoteStateCancelled: {
		domain.QuoteStateDraft,
		domain.QuoteStateRetrievedUI,
		domain.QuoteStateSearchResultsRequested,
		domain.QuoteStateSubmitted,
		domain.QuoteStateApproved,
		domain.QuoteStateRejected,
	},
	domain.QuoteStateExpired: domain.ExpirableStates,
	domain.QuoteStateArchived: {
		domain.QuoteStateApproved,
		domain.QuoteStateRejected,
		domain.QuoteStateCancelled,
		domain.QuoteStateExpired,
	},
}

// ValidTransition reports whether a quote in state from may move to state to.
// Nothing moves back into Draft.
func ValidTransition(from, to domain.QuoteState) bool {
	for _, state := range transitionMap[to] {
		if state == from {
			return true
		}
	}
	return false
}

func allowedFrom(to domain.QuoteState) []domain.QuoteState {
	return transitionMap[to]
}
