package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/travelquotes/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

const swaggerSpec = "travelquotes.swagger.json"

// Routes is implemented by the api handlers.
type Routes interface {
	Register(router *gin.RouterGroup)
}

// Run starts the HTTP server (api, metrics, health and swagger) and blocks until
// ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, log *zerolog.Logger, jobs, quotes Routes) error {
	srv := newServer(cfg, log, jobs, quotes)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.HTTP.Address).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServer(cfg *config.Config, log *zerolog.Logger, jobs, quotes Routes) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewRouter(cfg, log, jobs, quotes),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg *config.Config, log *zerolog.Logger, jobs, quotes Routes) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	v1 := router.Group("/api/v1")
	jobs.Register(v1.Group("/jobs"))
	quotes.Register(v1.Group("/quotes"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/"+swaggerSpec))))
	}
	return router
}

func requestLogger(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
