package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hard-gainer/status-bot/internal/model"
	"github.com/hard-gainer/status-bot/internal/service"
)

type fakeTicker struct {
	mu    sync.Mutex
	times []time.Time
	ctxs  []context.Context
	err   error
}

func (f *fakeTicker) Tick(ctx context.Context, now time.Time) (*model.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, now)
	f.ctxs = append(f.ctxs, ctx)
	if f.err != nil {
		return nil, f.err
	}
	return model.NewPoll("p", model.TriggerScheduled, []string{"1"}, now, time.Minute), nil
}

func TestStartRegistersJobAndStopCancels(t *testing.T) {
	ticker := &fakeTicker{}
	loc := time.FixedZone("test", 3600)
	s := New(ticker, loc)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("expected one cron entry, got %d", n)
	}

	next := s.cron.Entries()[0].Next
	if next.Second() != 0 || next.Location().String() != "test" {
		t.Fatalf("unexpected next run %s", next)
	}

	s.tick(time.Date(2024, 5, 1, 20, 59, 0, 0, loc))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	ticker.mu.Lock()
	defer ticker.mu.Unlock()
	if len(ticker.ctxs) == 0 {
		t.Fatal("expected tick to reach the ticker")
	}
	if ticker.ctxs[0].Err() == nil {
		t.Fatal("expected poll context cancelled after Stop")
	}
}

func TestTickToleratesSkips(t *testing.T) {
	for _, err := range []error{service.ErrPollingDisabled, service.ErrNoMembers, errors.New("boom")} {
		ticker := &fakeTicker{err: err}
		s := New(ticker, nil)
		s.ctx = context.Background()

		s.tick(time.Now())

		if len(ticker.times) != 1 {
			t.Fatalf("expected one tick for %v", err)
		}
	}
}
