package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	redisstore "kioskpos/backend/services/kiosk-api/internal/redis"
	"kioskpos/backend/services/kiosk-api/internal/repository"
)

// Sweeper deletes placed-but-unpaid orders whose kiosk session is gone.
type Sweeper struct {
	orders    OrderStore
	sessions  SessionStore
	maxAge    time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// NewSweeper builds sweeper.
func NewSweeper(orders OrderStore, sessions SessionStore, maxAge time.Duration, clock clockwork.Clock, logger *zap.Logger) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		orders:   orders,
		sessions: sessions,
		maxAge:   maxAge,
		clock:    clock,
		logger:   logger,
	}
}

// SweepOnce runs one pass and returns how many orders were deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.maxAge)
	stale, err := s.orders.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, order := range stale {
		session, err := s.sessions.Get(ctx, order.TerminalID)
		if err != nil && !errors.Is(err, redisstore.ErrNotFound) {
			return deleted, err
		}
		if session != nil && session.ID == order.SessionID {
			continue
		}

		err = s.orders.DeletePending(ctx, order.ID)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, repository.ErrStatusConflict):
		default:
			return deleted, err
		}
	}

	if deleted > 0 {
		s.logger.Info("swept abandoned orders", zap.Int("count", deleted))
	}
	return deleted, nil
}

// Start schedules SweepOnce every interval until Stop.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("order sweep failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}

	scheduler.Start()
	s.scheduler = scheduler
	return nil
}

// Stop shuts the scheduler down.
func (s *Sweeper) Stop() {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Warn("sweeper shutdown failed", zap.Error(err))
	}
}
