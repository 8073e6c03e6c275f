package media

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/metrics"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
)

type ReconcilerConfig struct {
	Interval time.Duration
	// GracePeriod protects rows and objects that may belong to an upload in
	// flight. It must not be shorter than the upload credential TTL.
	GracePeriod time.Duration
	// BatchSize is the page size for stale pending rows.
	BatchSize int
}

// ReconcileResult counts what one pass removed.
type ReconcileResult struct {
	StalePending int
	Orphaned     int
	OrphanFailed int
	Unreferenced int
}

// Reconciler repairs drift between the media table and the bucket: expired
// pending uploads, orphans the sweeper gave up on, and objects no committed
// row references.
type Reconciler struct {
	cfg     ReconcilerConfig
	tx      dbx.Transactor
	repos   repomanager.RepositoryManager
	store   storage.ObjectStore
	sweeper *Sweeper
	log     logging.Logger
	now     func() time.Time
	name    string
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(cfg ReconcilerConfig, tx dbx.Transactor, repos repomanager.RepositoryManager, store storage.ObjectStore, sweeper *Sweeper, log logging.Logger, opts ...ReconcilerOption) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	r := &Reconciler{
		cfg:     cfg,
		tx:      tx,
		repos:   repos,
		store:   store,
		sweeper: sweeper,
		log:     log.With("module", "reconciler"),
		now:     time.Now,
		name:    "media-reconciler",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Serve implements suture.Service. The first pass runs one interval after
// start.
func (r *Reconciler) Serve(ctx context.Context) error {
	r.log.Info(ctx, "reconciler starting", "interval", r.cfg.Interval.String(), "grace", r.cfg.GracePeriod.String())

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info(ctx, "reconciler shutting down")
			return ctx.Err()
		case <-ticker.C:
			res, err := r.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.Warn(ctx, "reconcile pass failed", "error", err)
				continue
			}
			r.log.Info(ctx, "reconcile pass done",
				"stale_pending", res.StalePending,
				"orphaned", res.Orphaned,
				"orphan_failed", res.OrphanFailed,
				"unreferenced", res.Unreferenced)
		}
	}
}

func (r *Reconciler) String() string {
	return r.name
}

// RunOnce performs one full pass.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileResult, error) {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	var res ReconcileResult
	passStart := r.now()
	cutoff := passStart.Add(-r.cfg.GracePeriod)

	n, err := r.expirePending(ctx, cutoff)
	res.StalePending = n
	metrics.RecordReconcileRemoval("stale_pending", n)
	if err != nil {
		return res, err
	}

	sweep, err := r.sweeper.drain(ctx, 0, passStart, 0)
	res.Orphaned, res.OrphanFailed = sweep.Deleted, sweep.Failed
	metrics.RecordReconcileRemoval("orphaned", sweep.Deleted)
	if err != nil {
		return res, err
	}

	n, err = r.removeUnreferenced(ctx, cutoff)
	res.Unreferenced = n
	metrics.RecordReconcileRemoval("unreferenced_object", n)
	return res, err
}

// expirePending drops pending rows created before cutoff. The row goes
// first so a late CompleteUpload can no longer commit it.
func (r *Reconciler) expirePending(ctx context.Context, cutoff time.Time) (int, error) {
	var removed int
	for {
		var stale []*models.MediaAsset
		err := r.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			stale, err = r.repos.Media(tx).ListStalePending(ctx, cutoff, r.cfg.BatchSize)
			return err
		})
		if err != nil {
			return removed, err
		}

		for _, a := range stale {
			err := r.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
				return r.repos.Media(tx).DeletePending(ctx, a.ID)
			})
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			if err != nil {
				return removed, err
			}
			removed++
			metrics.RecordMediaTransition(string(models.MediaPending), "deleted")
			if err := r.store.Delete(ctx, a.StorageKey); err != nil {
				r.log.Warn(ctx, "delete expired upload", "key", a.StorageKey, "error", err)
			}
		}

		if len(stale) < r.cfg.BatchSize {
			return removed, nil
		}
	}
}

// removeUnreferenced deletes objects older than cutoff that no committed
// row points at.
func (r *Reconciler) removeUnreferenced(ctx context.Context, cutoff time.Time) (int, error) {
	var candidates []string
	err := r.store.List(ctx, KeyPrefix, func(info storage.ObjectInfo) error {
		if info.LastModified.Before(cutoff) {
			candidates = append(candidates, info.Key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var removed int
	for _, key := range candidates {
		var asset *models.MediaAsset
		err := r.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			asset, err = r.repos.Media(tx).GetByKey(ctx, key)
			return err
		})
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return removed, err
		case asset.Status == models.MediaCommitted:
			continue
		}

		if err := r.store.Delete(ctx, key); err != nil {
			r.log.Warn(ctx, "delete unreferenced object", "key", key, "error", err)
			continue
		}
		removed++
		r.log.Debug(ctx, "unreferenced object removed", "key", key)
	}
	return removed, nil
}
