package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/travelquotes/config"
	"github.com/Domenick1991/travelquotes/internal/bootstrap"
	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/email"
	"github.com/Domenick1991/travelquotes/internal/kafka"
	"github.com/Domenick1991/travelquotes/internal/logging"
	"github.com/Domenick1991/travelquotes/internal/metrics"
	"github.com/Domenick1991/travelquotes/internal/worker"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()

	svc, err := bootstrap.NewServices(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init services")
	}
	defer svc.Close()

	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Kafka.SearchRequestsTopic != "" {
			requests := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.SearchRequestsTopic)
			defer requests.Close()
			enqueue := worker.EnqueueSearchRequest(svc.Queue, log)
			go func() {
				if err := requests.Consume(ctx, kafka.JSONHandler(log, enqueue)); err != nil {
					log.Error().Err(err).Msg("search request consumer stopped")
				}
			}()
		}
		if cfg.Kafka.NotificationsTopic != "" {
			notifications := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
			defer notifications.Close()
			sender := email.NewSender(log)
			go func() {
				if err := notifications.Consume(ctx, kafka.JSONHandler(log, sender.Send)); err != nil {
					log.Error().Err(err).Msg("notification consumer stopped")
				}
			}()
		}
	}

	pollTicker := time.NewTicker(cfg.Worker.PollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer sweepTicker.Stop()

	log.Info().Dur("poll_interval", cfg.Worker.PollInterval).Int("batch_size", cfg.Worker.BatchSize).Msg("worker started")

	for {
		select {
		case <-pollTicker.C:
			summary, err := svc.Runner.RunBatch(ctx, domain.JobTypeFlightSearch, cfg.Worker.BatchSize)
			if err != nil {
				log.Error().Err(err).Msg("run batch")
				continue
			}
			if summary.Claimed > 0 {
				log.Info().Interface("summary", summary).Msg("batch finished")
			}
		case <-sweepTicker.C:
			if _, err := svc.Runner.SweepStale(ctx, cfg.Worker.BatchSize); err != nil {
				log.Error().Err(err).Msg("sweep stale jobs")
			}
			err := svc.Runner.Exclusive(ctx, "quotes:expire", func(ctx context.Context) error {
				n, err := svc.Quotes.ExpireOldQuotes(ctx)
				if n > 0 {
					log.Info().Int("expired", n).Msg("expired stale quotes")
				}
				return err
			})
			if err != nil {
				log.Error().Err(err).Msg("expire quotes")
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		}
	}
}
