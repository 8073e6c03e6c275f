package media

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/dmitrijs2005/gophmaps/internal/dbx"
	"github.com/dmitrijs2005/gophmaps/internal/logging"
	"github.com/dmitrijs2005/gophmaps/internal/server/authz"
	"github.com/dmitrijs2005/gophmaps/internal/server/models"
	"github.com/dmitrijs2005/gophmaps/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophmaps/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grace = 30 * time.Minute

type fixture struct {
	clock   time.Time
	db      *memory.Store
	repos   *memory.Manager
	objects *storage.MemoryStore
	mgr     *Manager
	sweeper *Sweeper
	rec     *Reconciler

	owner, viewer, stranger string
	mapID, markerID         string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }

	f.db = memory.NewStore(memory.WithClock(now))
	f.repos = memory.NewManager(f.db)
	f.objects = storage.NewMemoryStore("http://objects.test", storage.WithMemoryClock(now))
	engine, err := authz.NewEngine(f.repos)
	require.NoError(t, err)

	log := logging.Nop()
	f.mgr = NewManager(Config{UploadTTL: 15 * time.Minute, DownloadTTL: time.Minute, MaxUploadSize: 1 << 20},
		f.db, f.repos, f.objects, engine, log)
	f.sweeper = NewSweeper(SweeperConfig{MaxAttempts: 1, RetryInitial: time.Millisecond, RetryMaxElapsed: 50 * time.Millisecond},
		f.db, f.repos, f.objects, f.mgr.Notifications(), log, WithSweeperClock(now))
	f.rec = NewReconciler(ReconcilerConfig{GracePeriod: grace, BatchSize: 2},
		f.db, f.repos, f.objects, f.sweeper, log, WithReconcilerClock(now))

	f.tx(t, func(ctx context.Context, tx dbx.DBTX) error {
		user := func(name string) string {
			u, err := f.repos.Users(tx).Create(ctx, &models.User{UserName: name})
			require.NoError(t, err)
			return u.ID
		}
		f.owner, f.viewer, f.stranger = user("owner"), user("viewer"), user("stranger")
		m, err := f.repos.Maps(tx).Create(ctx, &models.Map{OwnerID: f.owner, Title: "Berlin Trip", Visibility: models.VisibilityPrivate})
		require.NoError(t, err)
		f.mapID = m.ID
		c, err := f.repos.Collections(tx).Create(ctx, &models.Collection{MapID: m.ID, Name: "Day 1"})
		require.NoError(t, err)
		k, err := f.repos.Markers(tx).Create(ctx, &models.Marker{CollectionID: c.ID, Title: "Brandenburg Gate", Lat: 52.5163, Lon: 13.3777})
		require.NoError(t, err)
		f.markerID = k.ID
		_, err = f.repos.Grants(tx).Upsert(ctx, &models.AccessGrant{MapID: m.ID, UserID: f.viewer, Permission: models.PermissionView})
		require.NoError(t, err)
		return nil
	})
	return f
}

func (f *fixture) tx(t *testing.T, fn dbx.TxFunc) {
	t.Helper()
	require.NoError(t, f.db.InTx(context.Background(), fn))
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) register(t *testing.T, ownerID string, size int64) *models.MediaAsset {
	t.Helper()
	var a *models.MediaAsset
	f.tx(t, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		a, err = f.mgr.Register(ctx, tx, f.mapID, models.OwnerMarker, ownerID, "image/jpeg", size)
		return err
	})
	return a
}

func (f *fixture) upload(t *testing.T, a *models.MediaAsset) {
	t.Helper()
	require.NoError(t, f.objects.Put(a.StorageKey, a.ContentType, make([]byte, a.Size)))
}

func (f *fixture) asset(t *testing.T, id string) (*models.MediaAsset, error) {
	t.Helper()
	var a *models.MediaAsset
	err := f.db.InTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		a, err = f.repos.Media(tx).Get(ctx, id)
		return err
	})
	return a, err
}

func (f *fixture) orphanMarker(t *testing.T) {
	t.Helper()
	f.tx(t, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := f.repos.Media(tx).OrphanByMarker(ctx, f.markerID); err != nil {
			return err
		}
		return f.repos.Markers(tx).Delete(ctx, f.markerID)
	})
}

func TestRegister_KeyAndValidation(t *testing.T) {
	f := newFixture(t)

	a := f.register(t, f.markerID, 10)
	assert.Equal(t, models.MediaPending, a.Status)
	assert.True(t, strings.HasPrefix(a.StorageKey, "maps/"+f.mapID+"/marker/"+f.markerID+"/"), a.StorageKey)

	cases := []struct {
		name        string
		kind        models.OwnerKind
		contentType string
		size        int64
	}{
		{"zero size", models.OwnerMarker, "image/png", 0},
		{"too large", models.OwnerMarker, "image/png", 1<<20 + 1},
		{"no content type", models.OwnerMarker, " ", 10},
		{"bad owner kind", models.OwnerKind("user"), "image/png", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.db.InTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
				_, err := f.mgr.Register(ctx, tx, f.mapID, tc.kind, f.markerID, tc.contentType, tc.size)
				return err
			})
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestPresignUpload_BoundToAsset(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)

	req, err := f.mgr.PresignUpload(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "PUT", req.Method)
	assert.Contains(t, req.URL, a.StorageKey)
	assert.Equal(t, "image/jpeg", req.Header.Get("Content-Type"))
	assert.Equal(t, "10", req.Header.Get("Content-Length"))
	assert.Equal(t, "*", req.Header.Get("If-None-Match"))
	assert.Equal(t, f.clock.Add(15*time.Minute), req.ExpiresAt)

	_, err = f.mgr.PresignDownload(context.Background(), a)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCompleteUpload_CommitsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)

	got, err := f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaCommitted, got.Status)

	again, err := f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	req, err := f.mgr.PresignDownload(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
}

func TestCompleteUpload_VerificationFailures(t *testing.T) {
	tests := []struct {
		name   string
		upload func(f *fixture, a *models.MediaAsset) error
	}{
		{"missing object", func(*fixture, *models.MediaAsset) error { return nil }},
		{"size mismatch", func(f *fixture, a *models.MediaAsset) error {
			return f.objects.Put(a.StorageKey, a.ContentType, make([]byte, a.Size+1))
		}},
		{"content type mismatch", func(f *fixture, a *models.MediaAsset) error {
			return f.objects.Put(a.StorageKey, "text/html", make([]byte, a.Size))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.register(t, f.markerID, 10)
			require.NoError(t, tt.upload(f, a))

			_, err := f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
			assert.ErrorIs(t, err, common.ErrMediaVerificationFailed)

			_, err = f.asset(t, a.ID)
			assert.ErrorIs(t, err, common.ErrNotFound)
			assert.Empty(t, f.objects.Keys(KeyPrefix))
		})
	}
}

func TestCompleteUpload_StoreUnavailableKeepsPending(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)
	f.objects.InjectFault("head", fmt.Errorf("%w: timeout", common.ErrStorageUnavailable))

	_, err := f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	got, err := f.asset(t, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaPending, got.Status)

	_, err = f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
	assert.NoError(t, err)
}

func TestCompleteUpload_Authorization(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)

	_, err := f.mgr.CompleteUpload(context.Background(), f.viewer, a.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = f.mgr.CompleteUpload(context.Background(), f.stranger, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.mgr.CompleteUpload(context.Background(), f.owner, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCompleteUpload_OwnerDeletedFirst(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)
	f.orphanMarker(t)

	_, err := f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := f.asset(t, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaOrphaned, got.Status)
}

func TestNotify_DoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.mgr.Notify()
	f.mgr.Notify()
	assert.Len(t, f.mgr.Notifications(), 1)
}

func TestSweeper_DeletesOrphans(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)
	_, err := f.mgr.CompleteUpload(context.Background(), f.owner, a.ID)
	require.NoError(t, err)

	f.orphanMarker(t)
	f.advance(time.Second)
	f.objects.InjectFault("delete",
		fmt.Errorf("%w: 503", common.ErrStorageUnavailable),
		fmt.Errorf("%w: 503", common.ErrStorageUnavailable))

	res, err := f.sweeper.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Deleted: 1}, res)
	assert.Empty(t, f.objects.Keys(KeyPrefix))
	_, err = f.asset(t, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSweeper_SkipsRowsOrphanedDuringPass(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.orphanMarker(t)

	res, err := f.sweeper.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)

	got, err := f.asset(t, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaOrphaned, got.Status)
}

func TestSweeper_FatalFailureLeftForReconciler(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)
	f.orphanMarker(t)
	f.advance(time.Second)
	f.objects.InjectFault("delete", fmt.Errorf("%w: access denied", common.ErrStorageFatal))

	res, err := f.sweeper.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Failed: 1}, res)

	got, err := f.asset(t, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaOrphaned, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "access denied")

	// MaxAttempts is 1, so the sweeper leaves it alone now.
	f.advance(time.Second)
	res, err = f.sweeper.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)

	rec, err := f.rec.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Orphaned)
	assert.Empty(t, f.objects.Keys(KeyPrefix))
}

func TestSweeper_DrainStopsAtRowsSeenWhenClockRunsAhead(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)
	f.orphanMarker(t)
	fatal := fmt.Errorf("%w: access denied", common.ErrStorageFatal)
	f.objects.InjectFault("delete", fatal, fatal, fatal, fatal)

	// Every failure rewrites updated_at to the database clock, which stays
	// behind the cutoff, so the same row is claimable again at once.
	res, err := f.sweeper.drain(context.Background(), 0, f.clock.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Failed: 1}, res)

	got, err := f.asset(t, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
}

func TestSweeper_ServeRunsOnNotify(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, f.markerID, 10)
	f.upload(t, a)
	f.orphanMarker(t)
	f.advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sweeper.Serve(ctx) }()

	f.mgr.Notify()
	require.Eventually(t, func() bool {
		return len(f.objects.Keys(KeyPrefix)) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, "media-sweeper", f.sweeper.String())
}

func TestReconciler_ExpiresStalePending(t *testing.T) {
	f := newFixture(t)
	var stale []*models.MediaAsset
	for range 3 {
		a := f.register(t, f.markerID, 10)
		f.upload(t, a)
		stale = append(stale, a)
	}
	f.advance(grace + time.Second)
	young := f.register(t, f.markerID, 10)
	f.upload(t, young)

	res, err := f.rec.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.StalePending)

	for _, a := range stale {
		_, err := f.asset(t, a.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	}
	assert.Equal(t, []string{young.StorageKey}, f.objects.Keys(KeyPrefix))

	_, err = f.mgr.CompleteUpload(context.Background(), f.owner, stale[0].ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.mgr.CompleteUpload(context.Background(), f.owner, young.ID)
	assert.NoError(t, err)
}

func TestReconciler_RemovesUnreferencedObjects(t *testing.T) {
	f := newFixture(t)
	kept := f.register(t, f.markerID, 10)
	f.upload(t, kept)
	_, err := f.mgr.CompleteUpload(context.Background(), f.owner, kept.ID)
	require.NoError(t, err)

	stray := "maps/" + f.mapID + "/marker/gone/x"
	require.NoError(t, f.objects.Put(stray, "image/png", []byte("x")))
	outside := "exports/report.csv"
	require.NoError(t, f.objects.Put(outside, "text/csv", []byte("x")))

	f.advance(grace + time.Second)
	fresh := "maps/" + f.mapID + "/marker/gone/y"
	require.NoError(t, f.objects.Put(fresh, "image/png", []byte("y")))

	res, err := f.rec.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unreferenced)
	assert.ElementsMatch(t, []string{fresh, kept.StorageKey}, f.objects.Keys(KeyPrefix))
	assert.Equal(t, []string{outside}, f.objects.Keys("exports/"))
}

func TestReconciler_MapDeleteLeavesNoObjects(t *testing.T) {
	f := newFixture(t)

	const n = 4
	var ids []string
	f.tx(t, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := f.repos.Collections(tx).Create(ctx, &models.Collection{MapID: f.mapID, Name: "Day 2"})
		require.NoError(t, err)
		for i := range n {
			k, err := f.repos.Markers(tx).Create(ctx, &models.Marker{CollectionID: c.ID, Title: fmt.Sprintf("m%d", i)})
			require.NoError(t, err)
			a, err := f.mgr.Register(ctx, tx, f.mapID, models.OwnerMarker, k.ID, "image/png", 3)
			require.NoError(t, err)
			require.NoError(t, f.objects.Put(a.StorageKey, "image/png", []byte("abc")))
			ids = append(ids, a.ID)
		}
		return nil
	})
	for _, id := range ids {
		_, err := f.mgr.CompleteUpload(context.Background(), f.owner, id)
		require.NoError(t, err)
	}
	require.Len(t, f.objects.Keys(KeyPrefix+f.mapID+"/"), n)

	f.tx(t, func(ctx context.Context, tx dbx.DBTX) error {
		orphaned, err := f.repos.Media(tx).OrphanByMap(ctx, f.mapID)
		require.NoError(t, err)
		assert.EqualValues(t, n, orphaned)
		return f.repos.Maps(tx).Delete(ctx, f.mapID)
	})
	f.advance(time.Second)

	res, err := f.rec.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n, res.Orphaned)
	assert.Empty(t, f.objects.Keys(KeyPrefix+f.mapID+"/"))
}

func TestReconciler_ListFailure(t *testing.T) {
	f := newFixture(t)
	f.objects.InjectFault("list", fmt.Errorf("%w: down", common.ErrStorageUnavailable))

	_, err := f.rec.RunOnce(context.Background())
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Equal(t, "media-reconciler", f.rec.String())
}
