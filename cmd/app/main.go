package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/travelquotes/api"
	"github.com/Domenick1991/travelquotes/config"
	"github.com/Domenick1991/travelquotes/internal/bootstrap"
	"github.com/Domenick1991/travelquotes/internal/logging"
	"github.com/Domenick1991/travelquotes/internal/metrics"
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

	jobs := api.NewJobHandler(svc.Queue, svc.Runner)
	quotes := api.NewQuoteHandler(svc.Quotes, svc.Pipeline)

	if err := bootstrap.Run(ctx, cfg, log, jobs, quotes); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("server stopped")
}
