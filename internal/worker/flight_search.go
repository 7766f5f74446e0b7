package worker

import (
	"context"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/service/offers"
	"github.com/Domenick1991/travelquotes/internal/service/queue"
	"github.com/Domenick1991/travelquotes/internal/service/quotes"
	"github.com/rs/zerolog"
)

// Searcher runs the offer pipeline for every direction of a quote.
type Searcher interface {
	SearchQuote(ctx context.Context, quote *domain.TravelQuote) ([]offers.SearchResult, error)
}

type FlightSearchHandler struct {
	quotes   quotes.QuoteUseCase
	searcher Searcher
	log      *zerolog.Logger
}

func NewFlightSearchHandler(q quotes.QuoteUseCase, searcher Searcher, log *zerolog.Logger) *FlightSearchHandler {
	hlog := log.With().Str("component", "FlightSearchHandler").Logger()
	return &FlightSearchHandler{quotes: q, searcher: searcher, log: &hlog}
}

// Handle applies the job's UI patch to its quote and, when the patch asks for it,
// runs the flight search. A quote still in Draft moves to RetrievedUI; a completed
// search moves RetrievedUI to SearchResultsRequested.
func (h *FlightSearchHandler) Handle(ctx context.Context, job *domain.QueuedJob) error {
	payload, err := queue.DeserializePayload[domain.FlightSearchPayload](job)
	if err != nil {
		return err
	}
	if err := h.quotes.IngestFlightUIResultPatch(ctx, payload); err != nil {
		return err
	}

	q, found, err := h.quotes.Get(ctx, payload.QuoteID())
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if q.State == domain.QuoteStateDraft {
		if _, err := h.quotes.UpdateState(ctx, q.ID, domain.QuoteStateRetrievedUI); err != nil {
			return err
		}
		q.State = domain.QuoteStateRetrievedUI
	}
	if !payload.RequestSearch {
		return nil
	}

	results, err := h.searcher.SearchQuote(ctx, q)
	if err != nil {
		return err
	}
	if q.State == domain.QuoteStateRetrievedUI {
		if _, err := h.quotes.UpdateState(ctx, q.ID, domain.QuoteStateSearchResultsRequested); err != nil {
			return err
		}
	}

	for _, res := range results {
		h.log.Info().
			Str("job_id", job.ID).
			Str("quote_id", q.ID).
			Str("direction", string(res.Direction)).
			Int("options", len(res.Options)).
			Bool("more_results", res.MoreResultsAvailable).
			Msg("flight search stored")
	}
	return nil
}

// EnqueueSearchRequest turns a search-request message into a FlightSearch job.
func EnqueueSearchRequest(q queue.JobQueue, log *zerolog.Logger) func(context.Context, domain.FlightSearchPayload) error {
	return func(ctx context.Context, payload domain.FlightSearchPayload) error {
		if payload.QuoteID() == "" {
			log.Warn().Msg("search request without quote id, skipping")
			return nil
		}
		job, err := q.Enqueue(ctx, payload, queue.EnqueueOptions{
			JobType:       domain.JobTypeFlightSearch,
			CorrelationID: payload.QuoteID(),
		})
		if err != nil {
			return err
		}
		log.Info().Str("job_id", job.ID).Str("quote_id", payload.QuoteID()).Msg("search request enqueued")
		return nil
	}
}
