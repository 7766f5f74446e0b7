package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/kafka"
	"github.com/Domenick1991/travelquotes/internal/metrics"
	"github.com/Domenick1991/travelquotes/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultStaleAfter is how long a quote may sit without updates before the sweep expires it.
const DefaultStaleAfter = 72 * time.Hour

type QuoteUseCase interface {
	Create(ctx context.Context, quote *domain.TravelQuote) (*domain.TravelQuote, error)
	CreateFromDto(ctx context.Context, input CreateQuoteInput) (CreateResult, error)
	Get(ctx context.Context, id string) (*domain.TravelQuote, bool, error)
	Replace(ctx context.Context, quote *domain.TravelQuote) (bool, error)
	UpdateState(ctx context.Context, id string, state domain.QuoteState) (bool, error)
	ReassignCreatedBy(ctx context.Context, id, userID string) (bool, error)
	IngestFlightUIResultPatch(ctx context.Context, patch domain.FlightSearchPayload) error
	RecordApproval(ctx context.Context, id string, level int) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	ExpireOldQuotes(ctx context.Context) (int, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

// notificationRetries bounds delivery attempts for user-facing notifications.
const notificationRetries = 3

type CreateQuoteInput struct {
	OrganizationID     string           `json:"organizationId"`
	CreatedBy          string           `json:"createdBy"`
	AssignedServicerID string           `json:"assignedServicerId"`
	TravelerIDs        []string         `json:"travelerIds"`
	Type               domain.QuoteType `json:"type,omitempty"`
	PolicyID           string           `json:"policyId,omitempty"`
	PolicyKind         string           `json:"policyKind,omitempty"`
	Currency           string           `json:"currency,omitempty"`
	Note               string           `json:"note,omitempty"`
}

// CreateResult reports DTO creation without using errors for validation outcomes.
type CreateResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

type QuoteService struct {
	quotes             repository.QuoteRepository
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	staleAfter         time.Duration
	strict             bool
	now                func() time.Time
	log                *zerolog.Logger
}

type QuoteServiceOption func(*QuoteService)

func WithEvents(producer Producer, topic string) QuoteServiceOption {
	return func(s *QuoteService) {
		s.producer = producer
		s.eventsTopic = topic
	}
}

func WithNotificationsTopic(topic string) QuoteServiceOption {
	return func(s *QuoteService) {
		s.notificationsTopic = topic
	}
}

func WithStaleAfter(d time.Duration) QuoteServiceOption {
	return func(s *QuoteService) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithStrictTransitions makes UpdateState reject moves not listed in the transition table.
func WithStrictTransitions() QuoteServiceOption {
	return func(s *QuoteService) {
		s.strict = true
	}
}

func WithClock(now func() time.Time) QuoteServiceOption {
	return func(s *QuoteService) {
		s.now = now
	}
}

func NewQuoteService(quotes repository.QuoteRepository, log *zerolog.Logger, opts ...QuoteServiceOption) *QuoteService {
	qlog := log.With().Str("component", "QuoteLifecycle").Logger()
	service := &QuoteService{
		quotes:     quotes,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		log:        &qlog,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Create stores quote as a new Draft. A missing ID is generated.
func (s *QuoteService) Create(ctx context.Context, quote *domain.TravelQuote) (*domain.TravelQuote, error) {
	if quote == nil {
		return nil, errors.New("quote is required")
	}
	q := *quote
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Type == "" {
		q.Type = domain.QuoteTypeFlight
	}
	q.State = domain.QuoteStateDraft
	q.Approvals = [domain.ApprovalLevels]bool{}
	now := s.now()
	q.CreatedAt = now
	q.UpdatedAt = now
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if err := s.quotes.Create(ctx, &q); err != nil {
		return nil, fmt.Errorf("failed to store quote: %w", err)
	}
	s.publish(ctx, kafka.EventQuoteCreated, &q, "")
	return &q, nil
}

// CreateFromDto validates the minimal creation input and creates a Draft quote.
// Validation failures are reported through CreateResult; the error is reserved for storage failures.
func (s *QuoteService) CreateFromDto(ctx context.Context, input CreateQuoteInput) (CreateResult, error) {
	if msg := validateCreateInput(input); msg != "" {
		return CreateResult{OK: false, Error: msg}, nil
	}

	quote := &domain.TravelQuote{
		Type:               input.Type,
		OrganizationID:     strings.TrimSpace(input.OrganizationID),
		CreatedBy:          strings.TrimSpace(input.CreatedBy),
		AssignedServicerID: strings.TrimSpace(input.AssignedServicerID),
		Policy:             domain.PolicyRef{ID: input.PolicyID, Kind: domain.PolicyKind(input.PolicyKind)},
		Currency:           strings.ToUpper(input.Currency),
		Note:               input.Note,
		TravelerIDs:        append([]string(nil), input.TravelerIDs...),
	}
	if quote.Policy.Kind == "" {
		quote.Policy.Kind = domain.PolicyKindOrganizationDefault
	}

	created, err := s.Create(ctx, quote)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return CreateResult{OK: false, Error: verr.Error()}, nil
		}
		return CreateResult{}, err
	}
	return CreateResult{OK: true, ID: created.ID}, nil
}

func validateCreateInput(input CreateQuoteInput) string {
	var missing []string
	if strings.TrimSpace(input.OrganizationID) == "" {
		missing = append(missing, "organizationId")
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		missing = append(missing, "createdBy")
	}
	if strings.TrimSpace(input.AssignedServicerID) == "" {
		missing = append(missing, "assignedServicerId")
	}
	if len(input.TravelerIDs) == 0 {
		missing = append(missing, "travelerIds")
	}
	for i, id := range input.TravelerIDs {
		if strings.TrimSpace(id) == "" {
			missing = append(missing, fmt.Sprintf("travelerIds[%d]", i))
		}
	}
	switch input.Type {
	case "", domain.QuoteTypeFlight, domain.QuoteTypeAccommodation, domain.QuoteTypeTaxi:
	default:
		return "unknown type " + string(input.Type)
	}
	switch domain.PolicyKind(input.PolicyKind) {
	case "", domain.PolicyKindOrganizationDefault, domain.PolicyKindUserDefined, domain.PolicyKindEphemeral:
	default:
		return "unknown policyKind " + input.PolicyKind
	}
	if len(missing) > 0 {
		return "missing required fields: " + strings.Join(missing, ", ")
	}
	return ""
}

// Get returns (nil, false, nil) for an unknown id.
func (s *QuoteService) Get(ctx context.Context, id string) (*domain.TravelQuote, bool, error) {
	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return q, true, nil
}

// Replace overwrites the stored quote after validation. CreatedAt is preserved.
func (s *QuoteService) Replace(ctx context.Context, quote *domain.TravelQuote) (bool, error) {
	if quote == nil {
		return false, errors.New("quote is required")
	}
	if err := quote.Validate(); err != nil {
		return false, err
	}
	current, found, err := s.Get(ctx, quote.ID)
	if err != nil || !found {
		return false, err
	}

	q := *quote
	q.CreatedAt = current.CreatedAt
	q.UpdatedAt = s.now()
	if err := s.quotes.Replace(ctx, &q); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if q.State != current.State {
		s.publish(ctx, kafka.EventQuoteStateChanged, &q, current.State.String())
	}
	return true, nil
}

// UpdateState sets the quote state. It returns false when the quote does not exist.
// With strict transitions enabled a move outside the transition table
// returns domain.ErrIllegalTransition.
func (s *QuoteService) UpdateState(ctx context.Context, id string, state domain.QuoteState) (bool, error) {
	if !state.Valid() {
		return false, fmt.Errorf("%w: unknown state %d", domain.ErrIllegalTransition, int(state))
	}
	current, found, err := s.Get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	var from []domain.QuoteState
	if s.strict {
		if !ValidTransition(current.State, state) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, current.State, state)
		}
		from = allowedFrom(state)
	}

	clearApprovals := state == domain.QuoteStateRejected || state == domain.QuoteStateCancelled
	ok, err := s.quotes.UpdateState(ctx, id, from, state, clearApprovals)
	if err != nil {
		return false, err
	}
	if !ok {
		if s.strict {
			// lost a race with another writer
			return false, fmt.Errorf("%w: quote %s changed concurrently", domain.ErrIllegalTransition, id)
		}
		return false, nil
	}

	previous := current.State
	current.State = state
	s.publish(ctx, kafka.EventQuoteStateChanged, current, previous.String())
	return true, nil
}

func (s *QuoteService) ReassignCreatedBy(ctx context.Context, id, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, &domain.ValidationError{Fields: []domain.FieldError{{Field: "createdBy", Reason: "required"}}}
	}
	return s.quotes.UpdateCreatedBy(ctx, id, userID)
}

// IngestFlightUIResultPatch applies the non-nil fields of patch to the quote it names.
// A missing quote is logged and ignored so a batch is not failed by one vanished quote.
// Invalid fields return a *domain.ValidationError and nothing is written.
func (s *QuoteService) IngestFlightUIResultPatch(ctx context.Context, patch domain.FlightSearchPayload) error {
	id := patch.QuoteID()
	if id == "" {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "id", Reason: "required"}}}
	}

	q, found, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		s.log.Warn().Str("quote_id", id).Msg("quote not found for flight UI patch, skipping")
		return nil
	}

	if err := patch.Apply(q); err != nil {
		return err
	}
	ok, err := s.quotes.UpdateFlightQuery(ctx, id, q.Type, q.Flight)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn().Str("quote_id", id).Msg("quote vanished while applying flight UI patch")
	}
	return nil
}

// RecordApproval sets one approval level. Levels are independent and never cleared here.
func (s *QuoteService) RecordApproval(ctx context.Context, id string, level int) (bool, error) {
	if level < 0 || level >= domain.ApprovalLevels {
		return false, domain.ErrInvalidApprovalStep
	}
	return s.quotes.SetApproval(ctx, id, level)
}

// Reject moves the quote to Rejected and clears every approval flag.
func (s *QuoteService) Reject(ctx context.Context, id string) (bool, error) {
	return s.UpdateState(ctx, id, domain.QuoteStateRejected)
}

// Cancel moves the quote to Cancelled and clears every approval flag.
func (s *QuoteService) Cancel(ctx context.Context, id string) (bool, error) {
	return s.UpdateState(ctx, id, domain.QuoteStateCancelled)
}

// ExpireOldQuotes expires quotes in an expirable state that have not been updated
// within the staleness threshold. A second run right after the first expires nothing.
func (s *QuoteService) ExpireOldQuotes(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	ids, err := s.quotes.ExpireStale(ctx, cutoff, domain.ExpirableStates)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.publish(ctx, kafka.EventQuoteExpired, &domain.TravelQuote{ID: id, State: domain.QuoteStateExpired, UpdatedAt: s.now()}, "")
	}
	if len(ids) > 0 {
		metrics.AddQuotesExpired(len(ids))
		s.log.Info().Int("count", len(ids)).Time("cutoff", cutoff).Msg("expired stale quotes")
	}
	return len(ids), nil
}

func (s *QuoteService) publish(ctx context.Context, eventType string, q *domain.TravelQuote, previous string) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.QuoteEvent{
		Type:           eventType,
		QuoteID:        q.ID,
		OrganizationID: q.OrganizationID,
		CreatedBy:      q.CreatedBy,
		State:          q.State.String(),
		PreviousState:  previous,
		OccurredAt:     s.now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, q.ID, event); err != nil {
		s.log.Warn().Err(err).Str("quote_id", q.ID).Str("event", eventType).Msg("failed to publish quote event")
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.PublishWithRetry(ctx, s.notificationsTopic, q.ID, event, notificationRetries); err != nil {
			s.log.Warn().Err(err).Str("quote_id", q.ID).Msg("failed to publish quote notification")
		}
	}
}

var _ QuoteUseCase = (*QuoteService)(nil)
