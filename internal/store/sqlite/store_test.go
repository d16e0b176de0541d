package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inkcast/inkcast-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestChapter(t *testing.T, s *Store, id string) *domain.Chapter {
	t.Helper()
	now := time.Now().UTC()
	chapter := &domain.Chapter{
		ID:           id,
		BookID:       "book-" + id,
		Title:        "Chapter " + id,
		ChapterIndex: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateChapter(context.Background(), chapter); err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	return chapter
}

func insertTestBuild(t *testing.T, s *Store, id, chapterID string) *domain.ChapterBuild {
	t.Helper()
	text := "Canonical text for " + id
	build := &domain.ChapterBuild{
		ID:            id,
		ChapterID:     chapterID,
		CanonicalText: text,
		CanonicalHash: domain.CanonicalHash(text),
		Status:        domain.BuildStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.CreateBuild(context.Background(), build); err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}
	return build
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	tables := []string{
		"chapters", "chapter_builds", "tts_segments", "audio_groups", "paragraph_spans",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	defer s2.Close()
}
