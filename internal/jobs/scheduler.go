package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"videohub/api/internal/ids"
)

const (
	sweepLockKey = "jobs:session-sweep:lock"
	sweepLockTTL = time.Minute
	sweepTimeout = 30 * time.Second
)

type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the expired-session sweep. With a redis client only one replica sweeps
// per tick; without one every replica sweeps.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	locks    *redis.Client
	spec     string
	log      zerolog.Logger
}

func NewScheduler(sessions SessionPurger, locks *redis.Client, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sessions: sessions,
		locks:    locks,
		spec:     spec,
		log:      log,
	}
}

// Start is a no-op when the schedule is empty.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.runSweep); err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", s.spec, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running sweep until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.SweepExpiredSessions(ctx); err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
	}
}

// SweepExpiredSessions deletes expired sessions and reports how many went. It returns
// 0, nil without sweeping when another replica holds the lock.
func (s *Scheduler) SweepExpiredSessions(ctx context.Context) (int64, error) {
	if s.locks != nil {
		acquired, err := s.locks.SetNX(ctx, sweepLockKey, ids.New(), sweepLockTTL).Result()
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			s.log.Debug().Msg("session sweep skipped, lock held")
			return 0, nil
		}
	}

	purged, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		s.log.Info().Int64("purged", purged).Msg("expired sessions removed")
	}
	return purged, nil
}
