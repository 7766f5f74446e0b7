package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/metrics"
	"github.com/rs/zerolog"
)

// Store is the byte cache the decorator reads through.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cachedResolver struct {
	inner Resolver
	store Store
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewCachedResolver caches resolver answers in store for ttl. Cache errors fall
// through to inner and are only logged.
func NewCachedResolver(inner Resolver, store Store, ttl time.Duration, log *zerolog.Logger) Resolver {
	return &cachedResolver{inner: inner, store: store, ttl: ttl, log: log}
}

func (d *cachedResolver) ResolveExcludedAirlines(ctx context.Context, policyID string, kind domain.PolicyKind) ([]string, error) {
	key := fmt.Sprintf("policy:excluded:%s:%s", kind, policyID)
	var codes []string
	if d.lookup(ctx, "policy_excluded", key, &codes) {
		return codes, nil
	}

	codes, err := d.inner.ResolveExcludedAirlines(ctx, policyID, kind)
	if err != nil {
		return nil, err
	}
	d.save(ctx, key, codes)
	return codes, nil
}

func (d *cachedResolver) ResolveFlightSearchOptions(ctx context.Context, quoteID string) (*domain.FlightSearchOptions, error) {
	key := "policy:options:" + quoteID
	var opts *domain.FlightSearchOptions
	if d.lookup(ctx, "policy_options", key, &opts) {
		return opts, nil
	}

	opts, err := d.inner.ResolveFlightSearchOptions(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	d.save(ctx, key, opts)
	return opts, nil
}

func (d *cachedResolver) lookup(ctx context.Context, name, key string, dst any) bool {
	data, ok, err := d.store.GetBytes(ctx, key)
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("policy cache read failed")
	}
	if err == nil && ok && json.Unmarshal(data, dst) == nil {
		metrics.IncCacheRequest(name, "hit")
		return true
	}
	metrics.IncCacheRequest(name, "miss")
	return false
}

func (d *cachedResolver) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = d.store.SetBytes(ctx, key, data, d.ttl)
	}
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("policy cache write failed")
	}
}
