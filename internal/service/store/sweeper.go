package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/observability/metrics"
)

// DefaultSweepInterval is how often expired results are removed.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs Store.Sweep on a fixed schedule.
type Sweeper struct {
	store     Store
	interval  time.Duration
	scheduler *cron.Cron
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewSweeper creates a sweeper for s. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(s Store, interval time.Duration, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Sweeper{
		store:     s,
		interval:  interval,
		scheduler: cron.New(),
		metrics:   m,
		log:       logging.WithComponent("store-sweeper"),
	}
}

// Start schedules the sweep. It does not block.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.scheduler.AddFunc(spec, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.scheduler.Start()
	s.log.Info().Dur("interval", s.interval).Msg("Result store sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.scheduler.Stop().Done()
	s.log.Info().Msg("Result store sweeper stopped")
}

// RunOnce performs a single sweep and records its metrics.
func (s *Sweeper) RunOnce(ctx context.Context) SweepStats {
	start := time.Now()

	stats, err := s.store.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Result store sweep failed")
		return stats
	}

	remaining, err := s.store.Len(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count result store entries")
	}
	s.metrics.RecordSweep(stats.Aged, stats.Retrieved, remaining, time.Since(start).Seconds())

	if stats.Total() > 0 {
		s.log.Debug().
			Int("aged", stats.Aged).
			Int("retrieved", stats.Retrieved).
			Int("remaining", remaining).
			Msg("Expired results removed")
	}
	return stats
}
