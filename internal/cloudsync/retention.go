package cloudsync

import (
	"context"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/database"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/storage"
)

const (
	sweepLock    = "retention-sweep"
	sweepLockTTL = 10 * time.Minute
)

// PolicySource lists users with an auto-delete policy
type PolicySource interface {
	ListRetentionPolicies(ctx context.Context) ([]database.RetentionPolicy, error)
}

// Locker serializes sweeps across workers
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// Sweeper deletes synced recordings older than their owner's policy
type Sweeper struct {
	policies PolicySource
	store    ObjectStore
	locker   Locker
	logger   *logging.Logger
	now      func() time.Time
}

// NewSweeper creates a retention sweeper. locker may be nil for a single
// worker.
func NewSweeper(policies PolicySource, store ObjectStore, locker Locker, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{policies: policies, store: store, locker: locker, logger: logger, now: time.Now}
}

// Sweep runs one retention pass and returns the number of deleted objects.
// A pass already running on another worker is skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, sweepLock, sweepLockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			s.logger.Debug("Retention sweep already running elsewhere")
			return 0, nil
		}
		defer s.locker.ReleaseLock(context.WithoutCancel(ctx), sweepLock)
	}

	policies, err := s.policies.ListRetentionPolicies(ctx)
	if err != nil {
		return 0, fmt.Errorf("list retention policies: %w", err)
	}

	deleted := 0
	now := s.now()
	for _, policy := range policies {
		if policy.Days <= 0 {
			continue
		}
		cutoff := now.Add(-time.Duration(policy.Days) * 24 * time.Hour)

		objects, err := s.store.List(ctx, storage.UserPrefix(policy.UserID))
		if err != nil {
			s.logger.WithUserID(policy.UserID).WithError(err).Error("Failed to list synced recordings")
			continue
		}

		for _, obj := range objects {
			if !obj.LastModified.Before(cutoff) {
				continue
			}
			if err := s.store.Delete(ctx, obj.Key); err != nil {
				s.logger.WithUserID(policy.UserID).WithError(err).WithField("key", obj.Key).Error("Failed to delete expired recording")
				continue
			}
			deleted++
		}
	}

	metrics.RecordRetentionDeletions(deleted)
	s.logger.WithField("deleted", deleted).Info("Retention sweep finished")
	return deleted, nil
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives
// the deletion count of each successful pass.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, onSweep func(deleted int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Sweep(ctx)
			if err != nil {
				s.logger.WithError(err).Error("Retention sweep failed")
				continue
			}
			if onSweep != nil {
				onSweep(deleted)
			}
		}
	}
}
