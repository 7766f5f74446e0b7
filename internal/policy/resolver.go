package policy

import (
	"context"
	"sync"

	"github.com/Domenick1991/travelquotes/internal/domain"
)

// Resolver supplies the travel policy constraints for a quote.
// A nil options result means the quote is unconstrained.
type Resolver interface {
	ResolveExcludedAirlines(ctx context.Context, policyID string, kind domain.PolicyKind) ([]string, error)
	ResolveFlightSearchOptions(ctx context.Context, quoteID string) (*domain.FlightSearchOptions, error)
}

// StaticResolver serves policies from memory. It backs the memory storage driver and tests.
type StaticResolver struct {
	mu       sync.RWMutex
	excluded map[domain.PolicyRef][]string
	options  map[string]domain.FlightSearchOptions
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		excluded: make(map[domain.PolicyRef][]string),
		options:  make(map[string]domain.FlightSearchOptions),
	}
}

func (r *StaticResolver) SetExcludedAirlines(ref domain.PolicyRef, codes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.excluded[ref] = domain.NormalizeCodes(codes)
}

func (r *StaticResolver) SetFlightSearchOptions(quoteID string, opts domain.FlightSearchOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[quoteID] = opts
}

func (r *StaticResolver) ResolveExcludedAirlines(_ context.Context, policyID string, kind domain.PolicyKind) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := r.excluded[domain.PolicyRef{ID: policyID, Kind: kind}]
	return append([]string(nil), codes...), nil
}

func (r *StaticResolver) ResolveFlightSearchOptions(_ context.Context, quoteID string) (*domain.FlightSearchOptions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opts, ok := r.options[quoteID]
	if !ok {
		return nil, nil
	}
	return &opts, nil
}

var _ Resolver = (*StaticResolver)(nil)
