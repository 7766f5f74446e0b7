package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QuoteRepository interface {
	Create(ctx context.Context, quote *domain.TravelQuote) error
	GetByID(ctx context.Context, id string) (*domain.TravelQuote, error)
	Replace(ctx context.Context, quote *domain.TravelQuote) error
	// UpdateState returns false when the quote is missing or, if from is non-empty, not in one of from.
	UpdateState(ctx context.Context, id string, from []domain.QuoteState, to domain.QuoteState, clearApprovals bool) (bool, error)
	UpdateCreatedBy(ctx context.Context, id, userID string) (bool, error)
	SetApproval(ctx context.Context, id string, level int) (bool, error)
	UpdateFlightQuery(ctx context.Context, id string, quoteType domain.QuoteType, flight domain.FlightQuery) (bool, error)
	// ExpireStale moves quotes in states not updated since updatedBefore to Expired and returns their ids.
	ExpireStale(ctx context.Context, updatedBefore time.Time, states []domain.QuoteState) ([]string, error)
}

type PGQuoteRepository struct {
	db *pgxpool.Pool
}

func NewQuoteRepository(db *pgxpool.Pool) QuoteRepository {
	return &PGQuoteRepository{db: db}
}

const quoteColumns = `id, quote_type, state, organization_id, created_by, assigned_servicer_id, policy_id, policy_kind, currency,
	approval_level0, approval_level1, approval_level2, approval_level3, approval_level4, approval_level5,
	note, created_at, updated_at, trip_type, origin_iata_code, destination_iata_code, departure_date, return_date,
	depart_earliest_time, depart_latest_time, return_earliest_time, return_latest_time, cabin_class, max_cabin_class,
	selected_airlines, alliances, traveler_ids`

func scanQuote(row pgx.Row) (*domain.TravelQuote, error) {
	var q domain.TravelQuote
	f := &q.Flight
	if err := row.Scan(&q.ID, &q.Type, &q.State, &q.OrganizationID, &q.CreatedBy, &q.AssignedServicerID, &q.Policy.ID, &q.Policy.Kind, &q.Currency,
		&q.Approvals[0], &q.Approvals[1], &q.Approvals[2], &q.Approvals[3], &q.Approvals[4], &q.Approvals[5],
		&q.Note, &q.CreatedAt, &q.UpdatedAt, &f.TripType, &f.OriginIataCode, &f.DestinationIataCode, &f.DepartureDate, &f.ReturnDate,
		&f.DepartEarliestTime, &f.DepartLatestTime, &f.ReturnEarliestTime, &f.ReturnLatestTime, &f.CabinClass, &f.MaxCabinClass,
		&f.SelectedAirlines, &f.Alliances, &q.TravelerIDs); err != nil {
		return nil, err
	}
	return &q, nil
}

func quoteArgs(q *domain.TravelQuote) []any {
	f := q.Flight
	return []any{
		q.ID, q.Type, q.State, q.OrganizationID, q.CreatedBy, q.AssignedServicerID, q.Policy.ID, q.Policy.Kind, q.Currency,
		q.Approvals[0], q.Approvals[1], q.Approvals[2], q.Approvals[3], q.Approvals[4], q.Approvals[5],
		q.Note, q.CreatedAt, q.UpdatedAt, f.TripType, f.OriginIataCode, f.DestinationIataCode, f.DepartureDate, f.ReturnDate,
		f.DepartEarliestTime, f.DepartLatestTime, f.ReturnEarliestTime, f.ReturnLatestTime, f.CabinClass, f.MaxCabinClass,
		nonNil(f.SelectedAirlines), nonNil(f.Alliances), nonNil(q.TravelerIDs),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *PGQuoteRepository) Create(ctx context.Context, quote *domain.TravelQuote) error {
	_, err := r.db.Exec(ctx, `INSERT INTO travel_quotes (`+quoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`, quoteArgs(quote)...)
	return err
}

func (r *PGQuoteRepository) GetByID(ctx context.Context, id string) (*domain.TravelQuote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM travel_quotes WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return q, err
}

func (r *PGQuoteRepository) Replace(ctx context.Context, quote *domain.TravelQuote) error {
	cmd, err := r.db.Exec(ctx, `UPDATE travel_quotes SET
			quote_type=$2, state=$3, organization_id=$4, created_by=$5, assigned_servicer_id=$6, policy_id=$7, policy_kind=$8, currency=$9,
			approval_level0=$10, approval_level1=$11, approval_level2=$12, approval_level3=$13, approval_level4=$14, approval_level5=$15,
			note=$16, created_at=$17, updated_at=$18, trip_type=$19, origin_iata_code=$20, destination_iata_code=$21,
			departure_date=$22, return_date=$23, depart_earliest_time=$24, depart_latest_time=$25, return_earliest_time=$26,
			return_latest_time=$27, cabin_class=$28, max_cabin_class=$29, selected_airlines=$30, alliances=$31, traveler_ids=$32
		WHERE id=$1`, quoteArgs(quote)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGQuoteRepository) UpdateState(ctx context.Context, id string, from []domain.QuoteState, to domain.QuoteState, clearApprovals bool) (bool, error) {
	fromInts := make([]int32, 0, len(from))
	for _, s := range from {
		fromInts = append(fromInts, int32(s))
	}
	cmd, err := r.db.Exec(ctx, `UPDATE travel_quotes SET
			state=$1,
			approval_level0 = approval_level0 AND NOT $2,
			approval_level1 = approval_level1 AND NOT $2,
			approval_level2 = approval_level2 AND NOT $2,
			approval_level3 = approval_level3 AND NOT $2,
			approval_level4 = approval_level4 AND NOT $2,
			approval_level5 = approval_level5 AND NOT $2,
			updated_at=now()
		WHERE id=$3 AND (cardinality($4::int[]) = 0 OR state = ANY($4::int[]))`, to, clearApprovals, id, fromInts)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGQuoteRepository) UpdateCreatedBy(ctx context.Context, id, userID string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE travel_quotes SET created_by=$1, updated_at=now() WHERE id=$2`, userID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGQuoteRepository) SetApproval(ctx context.Context, id string, level int) (bool, error) {
	if level < 0 || level >= domain.ApprovalLevels {
		return false, domain.ErrInvalidApprovalStep
	}
	// level is range-checked above, so the column name is one of six constants.
	column := []string{"approval_level0", "approval_level1", "approval_level2", "approval_level3", "approval_level4", "approval_level5"}[level]
	cmd, err := r.db.Exec(ctx, `UPDATE travel_quotes SET `+column+`=true, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGQuoteRepository) UpdateFlightQuery(ctx context.Context, id string, quoteType domain.QuoteType, f domain.FlightQuery) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE travel_quotes SET
			quote_type=$2, trip_type=$3, origin_iata_code=$4, destination_iata_code=$5, departure_date=$6, return_date=$7,
			depart_earliest_time=$8, depart_latest_time=$9, return_earliest_time=$10, return_latest_time=$11,
			cabin_class=$12, max_cabin_class=$13, selected_airlines=$14, alliances=$15, updated_at=now()
		WHERE id=$1`,
		id, quoteType, f.TripType, f.OriginIataCode, f.DestinationIataCode, f.DepartureDate, f.ReturnDate,
		f.DepartEarliestTime, f.DepartLatestTime, f.ReturnEarliestTime, f.ReturnLatestTime,
		f.CabinClass, f.MaxCabinClass, nonNil(f.SelectedAirlines), nonNil(f.Alliances))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGQuoteRepository) ExpireStale(ctx context.Context, updatedBefore time.Time, states []domain.QuoteState) ([]string, error) {
	stateInts := make([]int32, 0, len(states))
	for _, s := range states {
		stateInts = append(stateInts, int32(s))
	}
	rows, err := r.db.Query(ctx, `UPDATE travel_quotes SET state=$1, updated_at=now()
		WHERE state = ANY($2::int[]) AND updated_at < $3
		RETURNING id`, domain.QuoteStateExpired, stateInts, updatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ QuoteRepository = (*PGQuoteRepository)(nil)
