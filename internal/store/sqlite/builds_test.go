package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/store"
)

func TestCreateBuildAssignsVersions(t *testing.T) {
	s := newTestStore(t)
	insertTestChapter(t, s, "ch-v")

	b1 := insertTestBuild(t, s, "bld-1", "ch-v")
	b2 := insertTestBuild(t, s, "bld-2", "ch-v")
	b3 := insertTestBuild(t, s, "bld-3", "ch-v")

	if b1.CanonicalVersion != 1 || b2.CanonicalVersion != 2 || b3.CanonicalVersion != 3 {
		t.Errorf("versions: got %d, %d, %d; want 1, 2, 3",
			b1.CanonicalVersion, b2.CanonicalVersion, b3.CanonicalVersion)
	}
}

func TestCreateBuildVersionsPerChapter(t *testing.T) {
	s := newTestStore(t)
	insertTestChapter(t, s, "ch-x")
	insertTestChapter(t, s, "ch-y")

	insertTestBuild(t, s, "bld-x1", "ch-x")
	insertTestBuild(t, s, "bld-x2", "ch-x")
	by := insertTestBuild(t, s, "bld-y1", "ch-y")

	// Versions are scoped to the chapter, not global.
	if by.CanonicalVersion != 1 {
		t.Errorf("expected version 1 for new chapter, got %d", by.CanonicalVersion)
	}
}

func TestCreateBuildConcurrentVersions(t *testing.T) {
	s := newTestStore(t)
	insertTestChapter(t, s, "ch-conc")
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	builds := make([]*domain.ChapterBuild, n)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := "text variant"
			b := &domain.ChapterBuild{
				ID:            "bld-conc-" + string(rune('a'+i)),
				ChapterID:     "ch-conc",
				CanonicalText: text,
				CanonicalHash: domain.CanonicalHash(text),
				Status:        domain.BuildStatusPending,
				CreatedAt:     time.Now().UTC(),
			}
			errs[i] = s.CreateBuild(ctx, b)
			builds[i] = b
		}()
	}
	wg.Wait()

	// Every creation succeeds and every version is distinct.
	seen := make(map[int]string, n)
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("CreateBuild %d: %v", i, errs[i])
		}
		v := builds[i].CanonicalVersion
		if prev, dup := seen[v]; dup {
			t.Errorf("version %d assigned to both %s and %s", v, prev, builds[i].ID)
		}
		seen[v] = builds[i].ID
	}
	for v := 1; v <= n; v++ {
		if _, ok := seen[v]; !ok {
			t.Errorf("version %d missing; versions must be gapless", v)
		}
	}
}

func TestCreateBuildUnknownChapter(t *testing.T) {
	s := newTestStore(t)

	b := &domain.ChapterBuild{
		ID: "bld-orphan", ChapterID: "no-such-chapter",
		CanonicalText: "x", CanonicalHash: domain.CanonicalHash("x"),
		Status: domain.BuildStatusPending, CreatedAt: time.Now().UTC(),
	}
	err := s.CreateBuild(context.Background(), b)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishBuildSetsActivePointer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-pub")
	b := insertTestBuild(t, s, "bld-pub", "ch-pub")

	if err := s.PublishBuild(ctx, "ch-pub", b.ID); err != nil {
		t.Fatalf("PublishBuild: %v", err)
	}

	chapter, err := s.GetChapter(ctx, "ch-pub")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if chapter.ActiveBuildID != b.ID {
		t.Errorf("ActiveBuildID: got %q, want %q", chapter.ActiveBuildID, b.ID)
	}

	got, err := s.GetActiveBuild(ctx, "ch-pub")
	if err != nil {
		t.Fatalf("GetActiveBuild: %v", err)
	}
	if got.Status != domain.BuildStatusReady {
		t.Errorf("Status: got %s, want ready", got.Status)
	}
	if got.PublishedAt == nil {
		t.Error("PublishedAt not stamped")
	}
}

func TestPublishBuildRejectsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-term")
	b := insertTestBuild(t, s, "bld-term", "ch-term")

	if err := s.MarkBuildFailed(ctx, b.ID, "synthesis timed out"); err != nil {
		t.Fatalf("MarkBuildFailed: %v", err)
	}

	err := s.PublishBuild(ctx, "ch-term", b.ID)
	if !errors.Is(err, store.ErrBuildImmutable) {
		t.Errorf("expected ErrBuildImmutable, got %v", err)
	}

	// A failed build never moves the active pointer.
	chapter, _ := s.GetChapter(ctx, "ch-term")
	if chapter.ActiveBuildID != "" {
		t.Errorf("active pointer moved to failed build %q", chapter.ActiveBuildID)
	}
}

func TestPublishBuildWrongChapter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-own-a")
	insertTestChapter(t, s, "ch-own-b")
	b := insertTestBuild(t, s, "bld-own", "ch-own-a")

	err := s.PublishBuild(ctx, "ch-own-b", b.ID)
	if !errors.Is(err, store.ErrBuildImmutable) {
		t.Errorf("expected ErrBuildImmutable, got %v", err)
	}
}

func TestActivateBuildRepointsActivePointer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-act")
	b1 := insertTestBuild(t, s, "bld-act-1", "ch-act")
	b2 := insertTestBuild(t, s, "bld-act-2", "ch-act")

	if err := s.PublishBuild(ctx, "ch-act", b1.ID); err != nil {
		t.Fatalf("PublishBuild b1: %v", err)
	}
	if err := s.PublishBuild(ctx, "ch-act", b2.ID); err != nil {
		t.Fatalf("PublishBuild b2: %v", err)
	}

	if err := s.ActivateBuild(ctx, "ch-act", b1.ID); err != nil {
		t.Fatalf("ActivateBuild: %v", err)
	}

	chapter, err := s.GetChapter(ctx, "ch-act")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if chapter.ActiveBuildID != b1.ID {
		t.Errorf("ActiveBuildID: got %q, want %q", chapter.ActiveBuildID, b1.ID)
	}
}

func TestActivateBuildRejectsNonReady(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-act-pend")
	b := insertTestBuild(t, s, "bld-act-pend", "ch-act-pend")

	err := s.ActivateBuild(ctx, "ch-act-pend", b.ID)
	if !errors.Is(err, store.ErrBuildImmutable) {
		t.Errorf("expected ErrBuildImmutable for pending build, got %v", err)
	}

	chapter, _ := s.GetChapter(ctx, "ch-act-pend")
	if chapter.ActiveBuildID != "" {
		t.Errorf("active pointer moved to pending build %q", chapter.ActiveBuildID)
	}
}

func TestActivateBuildWrongChapter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-act-a")
	insertTestChapter(t, s, "ch-act-c")
	b := insertTestBuild(t, s, "bld-act-x", "ch-act-a")
	if err := s.PublishBuild(ctx, "ch-act-a", b.ID); err != nil {
		t.Fatalf("PublishBuild: %v", err)
	}

	err := s.ActivateBuild(ctx, "ch-act-c", b.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkBuildFailedIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-fail")
	b := insertTestBuild(t, s, "bld-fail", "ch-fail")

	if err := s.MarkBuildFailed(ctx, b.ID, "encoder exited 1"); err != nil {
		t.Fatalf("MarkBuildFailed: %v", err)
	}

	got, err := s.GetBuild(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if got.Status != domain.BuildStatusFailed {
		t.Errorf("Status: got %s", got.Status)
	}
	if got.Error != "encoder exited 1" {
		t.Errorf("Error: got %q", got.Error)
	}

	// Failing twice is rejected; the record is immutable now.
	err = s.MarkBuildFailed(ctx, b.ID, "again")
	if !errors.Is(err, store.ErrBuildImmutable) {
		t.Errorf("expected ErrBuildImmutable, got %v", err)
	}
}

func TestFindReadyBuildByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-hash")

	text := "Same canonical text."
	hash := domain.CanonicalHash(text)

	b1 := &domain.ChapterBuild{
		ID: "bld-h1", ChapterID: "ch-hash",
		CanonicalText: text, CanonicalHash: hash,
		Status: domain.BuildStatusPending, CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateBuild(ctx, b1); err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}

	// Pending builds never match.
	if _, err := s.FindReadyBuildByHash(ctx, "ch-hash", hash); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for pending build, got %v", err)
	}

	if err := s.PublishBuild(ctx, "ch-hash", b1.ID); err != nil {
		t.Fatalf("PublishBuild: %v", err)
	}

	got, err := s.FindReadyBuildByHash(ctx, "ch-hash", hash)
	if err != nil {
		t.Fatalf("FindReadyBuildByHash: %v", err)
	}
	if got.ID != b1.ID {
		t.Errorf("got %q, want %q", got.ID, b1.ID)
	}

	if _, err := s.FindReadyBuildByHash(ctx, "ch-hash", domain.CanonicalHash("other")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown hash, got %v", err)
	}
}

func TestAbandonStaleBuilds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-stale")

	old1 := insertTestBuild(t, s, "bld-old1", "ch-stale")
	old2 := insertTestBuild(t, s, "bld-old2", "ch-stale")
	keep := insertTestBuild(t, s, "bld-keep", "ch-stale")

	n, err := s.AbandonStaleBuilds(ctx, "ch-stale", keep.ID)
	if err != nil {
		t.Fatalf("AbandonStaleBuilds: %v", err)
	}
	if n != 2 {
		t.Errorf("abandoned %d builds, want 2", n)
	}

	for _, id := range []string{old1.ID, old2.ID} {
		got, err := s.GetBuild(ctx, id)
		if err != nil {
			t.Fatalf("GetBuild %s: %v", id, err)
		}
		if got.Status != domain.BuildStatusAbandoned {
			t.Errorf("%s: got %s, want abandoned", id, got.Status)
		}
	}

	got, _ := s.GetBuild(ctx, keep.ID)
	if got.Status != domain.BuildStatusPending {
		t.Errorf("kept build: got %s, want pending", got.Status)
	}
}

func TestListBuildsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	insertTestChapter(t, s, "ch-list")
	insertTestBuild(t, s, "bld-l1", "ch-list")
	insertTestBuild(t, s, "bld-l2", "ch-list")

	builds, err := s.ListBuilds(context.Background(), "ch-list")
	if err != nil {
		t.Fatalf("ListBuilds: %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("expected 2 builds, got %d", len(builds))
	}
	if builds[0].CanonicalVersion != 2 || builds[1].CanonicalVersion != 1 {
		t.Errorf("order: got versions %d, %d", builds[0].CanonicalVersion, builds[1].CanonicalVersion)
	}
}

func TestListExpiredAndDeleteBuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-gc")

	failed := insertTestBuild(t, s, "bld-gc1", "ch-gc")
	if err := s.MarkBuildFailed(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("MarkBuildFailed: %v", err)
	}
	active := insertTestBuild(t, s, "bld-gc2", "ch-gc")
	if err := s.PublishBuild(ctx, "ch-gc", active.ID); err != nil {
		t.Fatalf("PublishBuild: %v", err)
	}

	expired, err := s.ListExpiredBuilds(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("ListExpiredBuilds: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != failed.ID {
		t.Fatalf("expected only the failed build, got %d", len(expired))
	}

	// The active build cannot be deleted.
	if err := s.DeleteBuild(ctx, active.ID); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput deleting active build, got %v", err)
	}

	if err := s.DeleteBuild(ctx, failed.ID); err != nil {
		t.Fatalf("DeleteBuild: %v", err)
	}
	if _, err := s.GetBuild(ctx, failed.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListActiveBuilds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// One chapter with an active build, one with only a pending build,
	// one with a superseded build.
	insertTestChapter(t, s, "ch-act-a")
	a1 := insertTestBuild(t, s, "bld-act-a1", "ch-act-a")
	if err := s.PublishBuild(ctx, "ch-act-a", a1.ID); err != nil {
		t.Fatalf("PublishBuild: %v", err)
	}
	a2 := insertTestBuild(t, s, "bld-act-a2", "ch-act-a")
	if err := s.PublishBuild(ctx, "ch-act-a", a2.ID); err != nil {
		t.Fatalf("PublishBuild: %v", err)
	}

	insertTestChapter(t, s, "ch-act-b")
	insertTestBuild(t, s, "bld-act-b1", "ch-act-b")

	active, err := s.ListActiveBuilds(ctx)
	if err != nil {
		t.Fatalf("ListActiveBuilds: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active build, got %d", len(active))
	}
	if active[0].ID != a2.ID {
		t.Errorf("active build: got %q, want %q", active[0].ID, a2.ID)
	}
}
