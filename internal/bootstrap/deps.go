package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/travelquotes/config"
	"github.com/Domenick1991/travelquotes/internal/cache"
	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/kafka"
	"github.com/Domenick1991/travelquotes/internal/logging"
	"github.com/Domenick1991/travelquotes/internal/policy"
	"github.com/Domenick1991/travelquotes/internal/provider"
	"github.com/Domenick1991/travelquotes/internal/repository"
	"github.com/Domenick1991/travelquotes/internal/repository/memory"
	"github.com/Domenick1991/travelquotes/internal/service/offers"
	"github.com/Domenick1991/travelquotes/internal/service/queue"
	"github.com/Domenick1991/travelquotes/internal/service/quotes"
	"github.com/Domenick1991/travelquotes/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Services is the wired application graph shared by the api and worker binaries.
type Services struct {
	Queue    *queue.QueueService
	Quotes   *quotes.QuoteService
	Pipeline *offers.Pipeline
	Runner   *worker.Runner
	Producer *kafka.Producer
	Redis    *cache.RedisCache

	closers []func()
}

// NewServices opens storage, redis and kafka as configured and builds the services on top.
// Redis and kafka are optional: an empty address or broker list leaves them out.
func NewServices(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*Services, error) {
	s := &Services{}

	jobs, quoteRepo, resolver, err := s.openStorage(ctx, cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	var tokens provider.TokenCache = provider.NewMemoryTokenCache()
	if cfg.Redis.Addr != "" {
		s.Redis = cache.NewRedisCache(cfg.Redis)
		s.closers = append(s.closers, func() { _ = s.Redis.Close() })
		if err := s.Redis.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		tokens = s.Redis
		resolver = policy.NewCachedResolver(resolver, s.Redis, cfg.Offers.PolicyCacheTTL, logging.Component(log, "PolicyCache"))
	}

	client, err := provider.NewHTTPClient(cfg.Provider, log, provider.WithTokenCache(tokens))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("provider client: %w", err)
	}

	pipelineOpts := []offers.PipelineOption{offers.WithProviderName(cfg.Provider.Name)}
	if s.Redis != nil {
		pipelineOpts = append(pipelineOpts, offers.WithResultStore(s.Redis, cfg.Offers.ResultsCacheTTL))
	}
	normalizer := offers.NewNormalizer(offers.NewAmenityMatcher(cfg.Offers.AmenityRegexFallback), logging.Component(log, "Normalizer"))
	s.Pipeline = offers.NewPipeline(resolver, client, normalizer, logging.Component(log, "OfferPipeline"), pipelineOpts...)

	quoteOpts := []quotes.QuoteServiceOption{quotes.WithStaleAfter(cfg.Quotes.StaleAfter)}
	if cfg.Quotes.StrictTransitions {
		quoteOpts = append(quoteOpts, quotes.WithStrictTransitions())
	}
	if len(cfg.Kafka.Brokers) > 0 {
		s.Producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		s.closers = append(s.closers, func() { _ = s.Producer.Close() })
		if err := s.Producer.CheckConnection(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("kafka connection: %w", err)
		}
		quoteOpts = append(quoteOpts,
			quotes.WithEvents(s.Producer, cfg.Kafka.QuoteEventsTopic),
			quotes.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}
	s.Quotes = quotes.NewQuoteService(quoteRepo, log, quoteOpts...)
	s.Queue = queue.NewQueueService(jobs, log)

	runnerOpts := []worker.RunnerOption{
		worker.WithConcurrency(cfg.Worker.Concurrency),
		worker.WithRetry(cfg.Worker.MaxAttempts, cfg.Worker.RetryBackoff),
		worker.WithStaleAfter(cfg.Worker.StaleJobAfter),
	}
	if s.Redis != nil {
		runnerOpts = append(runnerOpts, worker.WithLocker(s.Redis, cfg.Worker.ClaimLockTTL))
	}
	s.Runner = worker.NewRunner(s.Queue, log, runnerOpts...)
	handler := worker.NewFlightSearchHandler(s.Quotes, s.Pipeline, log)
	s.Runner.Register(domain.JobTypeFlightSearch, handler.Handle)

	return s, nil
}

func (s *Services) openStorage(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (repository.JobRepository, repository.QuoteRepository, policy.Resolver, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return memory.NewJobRepository(), memory.NewQuoteRepository(), policy.NewStaticResolver(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	if cfg.Storage.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repository.NewJobRepository(pool), repository.NewQuoteRepository(pool), policy.NewPGResolver(pool), nil
}

// Close releases connections in reverse order of opening.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
