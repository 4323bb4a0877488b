// Package reaper runs the periodic eviction of idle portals.
package reaper

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"
)

// Sweeper evicts idle resources and reports how many were removed.
type Sweeper interface {
	EvictIdle(ctx context.Context) (int, error)
}

// Runner calls a Sweeper on a fixed interval until its context is cancelled.
type Runner struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Sweeper  Sweeper       // Required
	Interval time.Duration // Required: time between sweeps
	Logger   *slog.Logger  // Optional
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}
	return &Runner{
		sweeper:  opts.Sweeper,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "portal_reaper"),
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Sweeper == nil {
		return errors.New("sweeper is required")
	}
	if opts.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run sweeps at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown (context.Canceled), the context error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting portal reaper", "interval", r.interval)

	// Jitter keeps instances started together from sweeping in lockstep.
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "portal reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	n, err := r.sweeper.EvictIdle(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		r.logger.ErrorContext(ctx, "portal sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "evicted idle portals", "count", n)
	}
}

// waitWithJitter delays up to 10% of the interval.
func (r *Runner) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
