package repository

import (
	"context"
	"sync/atomic"
	"time"

	"didauday/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLocker prefers the shared redis lock and degrades to the
// in-process lock when redis is unreachable. Degraded mode loses
// cross-node exclusion but keeps single-node correctness; the overlap
// re-check inside the booking transaction still backstops it.
type FailoverLocker struct {
	primary   domain.ReservationLocker
	fallback  domain.ReservationLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	downSince atomic.Int64
}

const failoverRecoveryInterval = time.Minute

func NewFailoverLocker(primary, fallback domain.ReservationLocker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Acquire(ctx, key, ttl)
		if err == nil {
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Acquire(ctx, key, ttl)
}

func (f *FailoverLocker) Release(ctx context.Context, key string) error {
	if f.usePrimary() {
		err := f.primary.Release(ctx, key)
		if err == nil {
			return nil
		}
		f.markDown(err)
	}
	return f.fallback.Release(ctx, key)
}

func (f *FailoverLocker) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	// Retry the primary after the recovery interval
	if time.Since(time.Unix(f.downSince.Load(), 0)) > failoverRecoveryInterval {
		f.isDown.Store(false)
		return true
	}
	return false
}

func (f *FailoverLocker) markDown(err error) {
	f.logger.Error().Err(err).Msg("primary reservation locker failed, falling back to memory")
	f.isDown.Store(true)
	f.downSince.Store(time.Now().Unix())
}
