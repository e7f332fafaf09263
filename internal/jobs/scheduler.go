package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"estatehub/api/internal/config"
	"estatehub/api/internal/service"
)

// Scheduler runs the stale-temp retention sweep on a cron schedule. The
// sweep itself is an ordinary service call; an empty schedule disables it.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *service.ReconcileService
	cfg        *config.AppConfig
	log        zerolog.Logger
}

func NewScheduler(reconciler *service.ReconcileService, cfg *config.AppConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		cfg:        cfg,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if s.cfg.Sweep.Schedule == "" {
		s.log.Info().Msg("stale upload sweep disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Sweep.Schedule, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits briefly for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("sweep still running at shutdown")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	removed, err := s.reconciler.SweepStale(ctx, s.cfg.Upload.TempRetention, s.cfg.Sweep.BatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("stale upload sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("stale uploads swept")
	}
}
