package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/metrics"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
)

type SweeperConfig struct {
	// Interval between passes when nobody calls Notify.
	Interval time.Duration
	// BatchSize caps the rows handled per pass; 0 means no cap.
	BatchSize int
	// MaxAttempts skips rows that already failed this many times. Those are
	// left to the Reconciler.
	MaxAttempts int
	// RetryInitial and RetryMaxElapsed bound the per-object delete retry.
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration
}

// SweepResult counts what one pass did.
type SweepResult struct {
	Deleted int
	Failed  int
}

// Sweeper deletes the objects of orphaned assets and then their rows.
// It runs as a suture service.
type Sweeper struct {
	cfg    SweeperConfig
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	store  storage.ObjectStore
	notify <-chan struct{}
	log    logging.Logger
	now    func() time.Time
	name   string
}

type SweeperOption func(*Sweeper)

// WithSweeperClock replaces time.Now for pass cutoffs.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(cfg SweeperConfig, tx dbx.Transactor, repos repomanager.RepositoryManager, store storage.ObjectStore, notify <-chan struct{}, log logging.Logger, opts ...SweeperOption) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 200 * time.Millisecond
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 10 * time.Second
	}
	s := &Sweeper{
		cfg:    cfg,
		tx:     tx,
		repos:  repos,
		store:  store,
		notify: notify,
		log:    log.With("module", "sweeper"),
		now:    time.Now,
		name:   "media-sweeper",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	s.log.Info(ctx, "sweeper starting", "interval", s.cfg.Interval.String())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
		case <-s.notify:
		}
		res, err := s.Drain(ctx)
		if err != nil && ctx.Err() == nil {
			s.log.Warn(ctx, "sweep pass failed", "error", err)
			continue
		}
		if res.Deleted > 0 || res.Failed > 0 {
			s.log.Info(ctx, "sweep pass done", "deleted", res.Deleted, "failed", res.Failed)
		}
	}
}

func (s *Sweeper) String() string {
	return s.name
}

// Drain processes the orphaned rows that existed when the pass began.
// Rows failing during the pass are not retried until the next one, even when
// the database clock lags behind ours.
func (s *Sweeper) Drain(ctx context.Context) (SweepResult, error) {
	return s.drain(ctx, s.cfg.MaxAttempts, s.now(), s.cfg.BatchSize)
}

func (s *Sweeper) drain(ctx context.Context, maxAttempts int, before time.Time, limit int) (SweepResult, error) {
	var res SweepResult
	var eligible int
	err := s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		eligible, err = s.repos.Media(tx).CountOrphaned(ctx, maxAttempts, before)
		return err
	})
	if err != nil {
		return res, err
	}
	if limit <= 0 || eligible < limit {
		limit = eligible
	}
	for res.Deleted+res.Failed < limit {
		deleted, err := s.sweepOne(ctx, maxAttempts, before)
		if errors.Is(err, common.ErrNotFound) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if deleted {
			res.Deleted++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

// sweepOne claims one orphaned row and removes its object. The row lock is
// held while the object is deleted so concurrent sweepers skip it.
func (s *Sweeper) sweepOne(ctx context.Context, maxAttempts int, before time.Time) (bool, error) {
	var deleted bool
	err := s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Media(tx)
		a, err := repo.ClaimOrphaned(ctx, maxAttempts, before)
		if err != nil {
			return err
		}

		if err := s.deleteObject(ctx, a.StorageKey); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn(ctx, "delete object failed", "asset", a.ID, "key", a.StorageKey, "attempt", a.Attempts+1, "error", err)
			metrics.RecordSweep(false)
			return repo.RecordFailure(ctx, a.ID, err.Error())
		}

		if err := repo.Delete(ctx, a.ID); err != nil {
			return err
		}
		deleted = true
		metrics.RecordSweep(true)
		metrics.RecordMediaTransition(string(models.MediaOrphaned), "deleted")
		s.log.Debug(ctx, "orphan removed", "asset", a.ID, "key", a.StorageKey)
		return nil
	})
	return deleted, err
}

// deleteObject retries transient store failures with exponential backoff.
// Anything else fails at once.
func (s *Sweeper) deleteObject(ctx context.Context, key string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitial
	b.MaxElapsedTime = s.cfg.RetryMaxElapsed

	op := func() error {
		err := s.store.Delete(ctx, key)
		if err != nil && !errors.Is(err, common.ErrStorageUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
