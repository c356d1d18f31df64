package enroll

import (
	"context"
	"time"
)

// Sweeper periodically deletes expired provision links. Redemption is
// already safe without it; the sweeper only keeps the table from growing
// without bound.
type Sweeper struct {
	enroller *Enroller
	interval time.Duration
	logger   Logger
	now      func() time.Time
}

type SweeperOption func(*Sweeper)

func WithSweeperLogger(logger Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper builds a sweeper from the configured interval.
func NewSweeper(enroller *Enroller, cfg Config, opts ...SweeperOption) *Sweeper {
	sweeper := &Sweeper{
		enroller: enroller,
		interval: cfg.GetSweepInterval(),
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sweeper)
		}
	}

	return sweeper
}

// Run blocks, sweeping on the configured interval until ctx is cancelled.
// Sweep failures are logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	swept, err := s.enroller.SweepExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("provision link sweep failed: %s", err)
		return
	}
	if swept > 0 {
		s.logger.Info("swept %d expired provision links", swept)
	}
}
