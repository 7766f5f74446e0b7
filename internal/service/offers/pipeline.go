package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/metrics"
	"github.com/Domenick1991/travelquotes/internal/policy"
	"github.com/Domenick1991/travelquotes/internal/provider"
	"github.com/rs/zerolog"
)

// ResultStore keeps the last search results per quote for the UI.
type ResultStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type SearchResult struct {
	QuoteID              string                    `json:"quoteId"`
	Direction            domain.Direction          `json:"direction"`
	Criteria             domain.SearchCriteria     `json:"criteria"`
	Options              []domain.FlightViewOption `json:"options"`
	MoreResultsAvailable bool                      `json:"moreResultsAvailable"`
	Received             int                       `json:"received"`
	Filtered             int                       `json:"filtered"`
	SearchedAt           time.Time                 `json:"searchedAt"`
}

// SearchError is a provider failure for one search direction.
type SearchError struct {
	Direction domain.Direction
	Err       error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s flight search: %v", e.Direction, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func (e *SearchError) Is(target error) bool {
	return target == domain.ErrProviderFailure
}

type Pipeline struct {
	policies     policy.Resolver
	client       provider.SearchClient
	normalizer   *Normalizer
	store        ResultStore
	storeTTL     time.Duration
	providerName string
	now          func() time.Time
	log          *zerolog.Logger
}

type PipelineOption func(*Pipeline)

func WithResultStore(store ResultStore, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.store = store
		p.storeTTL = ttl
	}
}

func WithProviderName(name string) PipelineOption {
	return func(p *Pipeline) { p.providerName = name }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(policies policy.Resolver, client provider.SearchClient, normalizer *Normalizer, log *zerolog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		policies:     policies,
		client:       client,
		normalizer:   normalizer,
		providerName: "default",
		now:          time.Now,
		log:          log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Search runs one provider search for one direction of the quote and returns the
// policy-filtered options. It performs no retries.
func resolveError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", domain.ErrSearchCancelled, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Pipeline) Search(ctx context.Context, quote *domain.TravelQuote, returnLeg bool) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchCancelled, err)
	}
	if !quote.SearchReady() {
		return nil, domain.ErrSearchNotReady
	}

	excluded, err := p.policies.ResolveExcludedAirlines(ctx, quote.Policy.ID, quote.Policy.Kind)
	if err != nil {
		return nil, resolveError(ctx, "resolve excluded airlines", err)
	}
	options, err := p.policies.ResolveFlightSearchOptions(ctx, quote.ID)
	if err != nil {
		return nil, resolveError(ctx, "resolve flight search options", err)
	}
	criteria, err := buildSearchCriteria(quote, options, excluded, returnLeg, p.now())
	if err != nil {
		return nil, err
	}
	pc := PolicyFor(quote, options, criteria)
	direction := string(criteria.Direction)

	start := time.Now()
	batch, err := p.client.Search(ctx, criteria)
	metrics.ObserveProviderSearch(p.providerName, direction, time.Since(start).Seconds(), err == nil)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", domain.ErrSearchCancelled, err)
		}
		return nil, &SearchError{Direction: criteria.Direction, Err: err}
	}

	received := p.normalizer.Normalize(quote.ID, batch)
	metrics.AddOffersReceived(direction, len(received))
	kept := ApplyPolicyFilters(received, pc)
	if len(kept) < len(received) {
		for i := range received {
			if reason := FilterReason(&received[i], pc); reason != "" {
				metrics.IncOfferFiltered(reason)
			}
		}
	}
	markPreferred(kept, pc.PreferredAirlines)

	p.log.Info().
		Str("quote_id", quote.ID).
		Str("direction", direction).
		Int("received", len(received)).
		Int("kept", len(kept)).
		Msg("flight search completed")

	return &SearchResult{
		QuoteID:              quote.ID,
		Direction:            criteria.Direction,
		Criteria:             criteria,
		Options:              kept,
		MoreResultsAvailable: batch.MoreResultsAvailable(),
		Received:             len(received),
		Filtered:             len(received) - len(kept),
		SearchedAt:           p.now().UTC(),
	}, nil
}

// SearchQuote searches outbound and, for round trips, the return leg, then caches
// the results for CachedResults.
func (p *Pipeline) SearchQuote(ctx context.Context, quote *domain.TravelQuote) ([]SearchResult, error) {
	outbound, err := p.Search(ctx, quote, false)
	if err != nil {
		return nil, err
	}
	results := []SearchResult{*outbound}
	if quote.Flight.TripType == domain.TripTypeRoundTrip {
		ret, err := p.Search(ctx, quote, true)
		if err != nil {
			return nil, err
		}
		results = append(results, *ret)
	}

	if p.store != nil {
		data, err := json.Marshal(results)
		if err == nil {
			err = p.store.SetBytes(ctx, resultsKey(quote.ID), data, p.storeTTL)
		}
		if err != nil {
			p.log.Warn().Err(err).Str("quote_id", quote.ID).Msg("failed to cache search results")
		}
	}
	return results, nil
}

// CachedResults returns the last SearchQuote results for a quote, if still cached.
func (p *Pipeline) CachedResults(ctx context.Context, quoteID string) ([]SearchResult, bool, error) {
	if p.store == nil {
		return nil, false, nil
	}
	data, ok, err := p.store.GetBytes(ctx, resultsKey(quoteID))
	if err != nil || !ok {
		metrics.IncCacheRequest("offer_results", "miss")
		return nil, false, err
	}
	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	metrics.IncCacheRequest("offer_results", "hit")
	return results, true, nil
}

func resultsKey(quoteID string) string {
	return "offers:results:" + quoteID
}
