package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/infra/metrics"
	"jsonprompt-saas/internal/usecase"
)

// Sweep runs the periodic maintenance pass on a cron schedule: persist
// pending credit resets for idle users and purge artifacts past retention.
type Sweep struct {
	cron      *cron.Cron
	spec      string
	batchSize int
	maintUC   usecase.MaintenanceUseCase
	log       *zerolog.Logger
}

func NewSweep(spec string, batchSize int, maintUC usecase.MaintenanceUseCase, logger *zerolog.Logger) *Sweep {
	compLog := logger.With().Str("component", "Sweep").Logger()
	if spec == "" {
		spec = "0 * * * *"
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Sweep{
		cron:      cron.New(),
		spec:      spec,
		batchSize: batchSize,
		maintUC:   maintUC,
		log:       &compLog,
	}
}

// Start registers the job and launches the scheduler. The passed context
// bounds each individual run, not the scheduler itself.
func (s *Sweep) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		s.runOnce(runCtx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("maintenance sweep scheduled")
	return nil
}

func (s *Sweep) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweep) runOnce(ctx context.Context) {
	now := time.Now().UTC()

	daily, monthly, err := s.maintUC.ApplyDueResets(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("reset sweep failed")
	} else if daily+monthly > 0 {
		metrics.AddCreditResets("daily", daily)
		metrics.AddCreditResets("monthly", monthly)
		s.log.Info().Int("daily", daily).Int("monthly", monthly).Msg("credit resets persisted")
	}

	purged, err := s.maintUC.PurgeExpiredPrompts(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("prompt purge failed")
	} else if purged > 0 {
		s.log.Info().Int64("count", purged).Msg("expired prompts purged")
	}
}
