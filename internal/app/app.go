package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"media-transcription-proxy/internal/api/rest"
	"media-transcription-proxy/internal/config"
	"media-transcription-proxy/internal/events"
	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/observability/metrics"
	"media-transcription-proxy/internal/service/provider"
	"media-transcription-proxy/internal/service/provider/google"
	"media-transcription-proxy/internal/service/provider/lemonfox"
	"media-transcription-proxy/internal/service/provider/mock"
	"media-transcription-proxy/internal/service/provider/openai"
	"media-transcription-proxy/internal/service/store"
	"media-transcription-proxy/internal/service/transcribe"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Store     store.Store
	Provider  provider.Provider
	Publisher *events.Publisher
	Handler   *rest.Handler

	sweeper *store.Sweeper
	redis   *goredis.Client
}

// New constructs the Application from cfg: logging, metrics, the result
// store, the provider backend, the event publisher and the HTTP handlers.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{Cfg: cfg}
	a.setupLogger()

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(a.Registry)

	if err := a.setupStore(ctx); err != nil {
		return nil, err
	}

	p, err := newProvider(ctx, cfg)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.Provider = p

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicAccepted:  cfg.Kafka.TopicAccepted,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		Principal:      cfg.Kafka.Principal,
	}, a.Metrics)

	svc := transcribe.New(p, transcribe.Config{
		MaxBytes:     cfg.Upload.MaxBytes,
		URLMaxBytes:  cfg.Upload.URLMaxBytes,
		AllowedTypes: cfg.Upload.AllowedTypes,
		CallbackURL:  cfg.CallbackURL(),
	}, a.Publisher, a.Metrics)

	if cfg.Callback.Secret == "" {
		a.Logger.Warn().Msg("No callback secret configured, all callbacks will be rejected")
	}
	a.Handler = rest.NewHandler(svc, a.Store, a.Publisher, rest.Options{
		CallbackSecret: cfg.Callback.Secret,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Metrics:        a.Metrics,
	})

	a.Logger.Info().
		Str("provider", p.Name()).
		Str("store", cfg.Store.Backend).
		Bool("kafka", cfg.Kafka.Enabled).
		Str("callbackUrl", cfg.CallbackURL()).
		Msg("Transcription proxy application created")
	return a, nil
}

func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
		Service:    "transcription-proxy",
	})
	a.Logger = logging.WithComponent("application")
	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

func (a *Application) setupStore(ctx context.Context) error {
	policy := store.DefaultPolicy()
	if a.Cfg.Store.MaxAge > 0 {
		policy.MaxAge = a.Cfg.Store.MaxAge
	}
	if a.Cfg.Store.RetentionAfterRetrieval > 0 {
		policy.RetentionAfterRetrieval = a.Cfg.Store.RetentionAfterRetrieval
	}

	switch a.Cfg.Store.Backend {
	case "", "memory":
		a.Store = store.NewMemory(policy)
	case "redis":
		rdb, err := store.DialRedis(ctx, store.RedisConfig{
			Addr:      a.Cfg.Store.RedisAddr,
			Password:  a.Cfg.Store.RedisPassword,
			DB:        a.Cfg.Store.RedisDB,
			KeyPrefix: a.Cfg.Store.RedisKeyPrefix,
		})
		if err != nil {
			return fmt.Errorf("result store: %w", err)
		}
		a.redis = rdb
		a.Store = store.NewRedis(rdb, a.Cfg.Store.RedisKeyPrefix, policy)
	default:
		return fmt.Errorf("unknown store backend %q", a.Cfg.Store.Backend)
	}

	a.sweeper = store.NewSweeper(a.Store, a.Cfg.Store.SweepInterval, a.Metrics)
	return nil
}

func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	pc := cfg.Provider
	switch pc.Name {
	case lemonfox.Name:
		return lemonfox.New(lemonfox.Config{
			URL:     pc.APIURL,
			APIKey:  pc.APIKey,
			Timeout: pc.Timeout,
		}), nil
	case openai.Name:
		base := ""
		if pc.APIURL != config.DefaultProviderURL {
			base = openai.BaseURL(pc.APIURL)
		}
		return openai.New(openai.Config{
			BaseURL: base,
			APIKey:  pc.APIKey,
			Model:   pc.Model,
		}), nil
	case google.Name:
		gc := google.Config{APIKey: pc.APIKey}
		if pc.APIURL != config.DefaultProviderURL {
			gc.Endpoint = pc.APIURL
		}
		if pc.Model != config.DefaultProviderModel {
			gc.Model = pc.Model
		}
		g, err := google.New(ctx, gc)
		if err != nil {
			return nil, err
		}
		return g, nil
	case mock.Name:
		callback := cfg.CallbackURL()
		if callback == "" {
			callback = "http://localhost:" + cfg.Service.HTTPPort + config.CallbackPath
		}
		return mock.New(mock.Config{
			Async:       pc.MockAsync,
			Delay:       pc.MockDelay,
			CallbackURL: callback,
			Secret:      cfg.Callback.Secret,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", pc.Name)
	}
}

// Ready reports whether the result store is reachable.
func (a *Application) Ready(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx).Err()
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	if err := a.sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Transcription proxy starting")
	return nil
}

// Shutdown stops background work and releases connections.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("Transcription proxy shutting down")

	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	var errs []error
	if c, ok := a.Provider.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	errs = append(errs, a.closeStore())
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn().Err(err).Msg("Errors during shutdown")
	}
}

func (a *Application) closeStore() error {
	if a.redis == nil {
		return nil
	}
	err := a.redis.Close()
	a.redis = nil
	return err
}
