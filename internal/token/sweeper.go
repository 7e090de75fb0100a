package token

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"workspace-search/internal/common/logging"
)

// sweepHorizon is how far ahead the sweep looks: credentials expiring
// within it get refreshed before a search has to pay for the refresh.
const sweepHorizon = 10 * time.Minute

// Sweeper periodically walks stored credentials and refreshes the ones
// about to expire.
type Sweeper struct {
	manager *Manager
	cron    *cron.Cron
	logger  logging.Logger
}

// NewSweeper schedules a refresh sweep on the given cron expression. An
// empty schedule disables the sweep entirely.
func NewSweeper(manager *Manager, schedule string, logger logging.Logger) (*Sweeper, error) {
	s := &Sweeper{
		manager: manager,
		cron:    cron.New(),
		logger:  logger,
	}

	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins running scheduled sweeps.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep refreshes every stored credential that expires within the horizon.
// Failures are logged and skipped; the next sweep or the next search retry
// will pick them up.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	providers, err := s.manager.store.Providers(ctx)
	if err != nil {
		s.logger.Error("refresh sweep failed to list providers", err)
		return
	}

	for _, provider := range providers {
		if err := s.manager.RefreshIfExpiring(ctx, provider, sweepHorizon); err != nil {
			s.logger.Warn("proactive refresh failed",
				logging.String("provider", provider),
				logging.String("error", err.Error()),
			)
		}
	}
}
