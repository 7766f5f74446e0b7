package policy

import (
	"context"
	"errors"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGResolver struct {
	db *pgxpool.Pool
}

func NewPGResolver(db *pgxpool.Pool) *PGResolver {
	return &PGResolver{db: db}
}

func (r *PGResolver) ResolveExcludedAirlines(ctx context.Context, policyID string, kind domain.PolicyKind) ([]string, error) {
	if policyID == "" {
		return nil, nil
	}
	const q = `SELECT airline_code FROM policy_excluded_airlines
		WHERE policy_id = $1 AND policy_kind = $2
		ORDER BY airline_code`
	rows, err := r.db.Query(ctx, q, policyID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.NormalizeCodes(codes), nil
}

// ResolveFlightSearchOptions loads the quote's own policy, falling back to the
// organization default when the quote carries no policy reference.
func (r *PGResolver) ResolveFlightSearchOptions(ctx context.Context, quoteID string) (*domain.FlightSearchOptions, error) {
	const q = `SELECT p.enabled_origins, p.enabled_destinations, p.available_airlines, p.preferred_airlines,
		p.max_cabin, p.days_in_advance, p.depart_earliest_time, p.depart_latest_time,
		p.return_earliest_time, p.return_latest_time, p.seed_departure_date, p.seed_return_date,
		p.adults, p.children, p.infants, p.non_stop_only, p.allowed_alliances
		FROM travel_quotes tq
		JOIN travel_policies p ON (p.id = tq.policy_id AND p.kind = tq.policy_kind)
			OR (tq.policy_id = '' AND p.organization_id = tq.organization_id AND p.kind = 'OrganizationDefault')
		WHERE tq.id = $1
		ORDER BY (p.id = tq.policy_id) DESC
		LIMIT 1`

	var (
		o        domain.FlightSearchOptions
		maxCabin string
	)
	err := r.db.QueryRow(ctx, q, quoteID).Scan(
		&o.EnabledOrigins, &o.EnabledDestinations, &o.AvailableAirlines, &o.PreferredAirlines,
		&maxCabin, &o.DaysInAdvanceRequired, &o.FixedDepartWindow.Earliest, &o.FixedDepartWindow.Latest,
		&o.FixedReturnWindow.Earliest, &o.FixedReturnWindow.Latest, &o.SeedDepartureDate, &o.SeedReturnDate,
		&o.Pax.Adults, &o.Pax.Children, &o.Pax.Infants, &o.NonStopOnly, &o.AllowedAlliances,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if c, ok := domain.ParseCabinClass(maxCabin); ok {
		o.MaxCabin = c
	}
	return &o, nil
}

var _ Resolver = (*PGResolver)(nil)
