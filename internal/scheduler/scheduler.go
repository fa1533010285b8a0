// Package scheduler fires the poll service once a minute; the service decides
// whether the poll is due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hard-gainer/status-bot/internal/model"
	"github.com/hard-gainer/status-bot/internal/service"
	"github.com/robfig/cron/v3"
)

// EveryMinute is the cron spec the scheduler runs on
const EveryMinute = "* * * * *"

// Ticker is called on every scheduler tick
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (*model.Poll, error)
}

// Scheduler drives the nightly poll
type Scheduler struct {
	ticker Ticker
	cron   *cron.Cron
	loc    *time.Location

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler evaluating times in loc
func New(ticker Ticker, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		ticker: ticker,
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
	}
}

// Start registers the job and starts the cron loop. Polls started by the
// scheduler are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(EveryMinute, func() { s.tick(time.Now().In(s.loc)) }); err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule poll job: %w", err)
	}

	s.cron.Start()
	slog.Info("Scheduler started", "location", s.loc.String())
	return nil
}

// Stop cancels running polls and waits for jobs to return, or for ctx
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}

	select {
	case <-s.cron.Stop().Done():
		slog.Info("Scheduler stopped")
	case <-ctx.Done():
		slog.Warn("Scheduler stop timed out", "error", ctx.Err())
	}
}

func (s *Scheduler) tick(now time.Time) {
	poll, err := s.ticker.Tick(s.ctx, now)
	switch {
	case errors.Is(err, service.ErrPollingDisabled), errors.Is(err, service.ErrNoMembers):
		slog.Debug("Scheduled poll skipped", "reason", err)
	case err != nil:
		slog.Error("Scheduled poll failed", "error", err)
	case poll != nil:
		slog.Info("Scheduled poll finished",
			"poll_id", poll.ID,
			"responded", len(poll.Responded()),
			"no_response", len(poll.Missing()))
	}
}
