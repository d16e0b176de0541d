package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/store"
)

func TestCreateAndGetChapter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	chapter := &domain.Chapter{
		ID:           "ch-1",
		BookID:       "book-1",
		Title:        "The Long Road North",
		ChapterIndex: 3,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.CreateChapter(ctx, chapter); err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}

	got, err := s.GetChapter(ctx, "ch-1")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}

	if got.BookID != "book-1" {
		t.Errorf("BookID: got %q, want %q", got.BookID, "book-1")
	}
	if got.Title != "The Long Road North" {
		t.Errorf("Title: got %q", got.Title)
	}
	if got.ChapterIndex != 3 {
		t.Errorf("ChapterIndex: got %d, want 3", got.ChapterIndex)
	}
	if got.ActiveBuildID != "" {
		t.Errorf("ActiveBuildID: expected empty, got %q", got.ActiveBuildID)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, now)
	}
}

func TestGetChapterNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetChapter(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateChapterDuplicateID(t *testing.T) {
	s := newTestStore(t)
	insertTestChapter(t, s, "ch-dup")

	now := time.Now().UTC()
	err := s.CreateChapter(context.Background(), &domain.Chapter{
		ID: "ch-dup", BookID: "other", Title: "x", ChapterIndex: 9,
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateChapterDuplicateBookIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	first := &domain.Chapter{
		ID: "ch-a", BookID: "book-x", Title: "a", ChapterIndex: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateChapter(ctx, first); err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}

	err := s.CreateChapter(ctx, &domain.Chapter{
		ID: "ch-b", BookID: "book-x", Title: "b", ChapterIndex: 1,
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for same (book, index), got %v", err)
	}
}

func TestGetChapterByBookIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := range 3 {
		chapter := &domain.Chapter{
			ID: "ch-bi-" + string(rune('a'+i)), BookID: "book-bi",
			Title: "t", ChapterIndex: i, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.CreateChapter(ctx, chapter); err != nil {
			t.Fatalf("CreateChapter %d: %v", i, err)
		}
	}

	got, err := s.GetChapterByBookIndex(ctx, "book-bi", 1)
	if err != nil {
		t.Fatalf("GetChapterByBookIndex: %v", err)
	}
	if got.ID != "ch-bi-b" {
		t.Errorf("got %q, want ch-bi-b", got.ID)
	}

	_, err = s.GetChapterByBookIndex(ctx, "book-bi", 7)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListChaptersOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	// Insert out of order.
	for _, idx := range []int{2, 0, 1} {
		chapter := &domain.Chapter{
			ID: "ch-ord-" + string(rune('a'+idx)), BookID: "book-ord",
			Title: "t", ChapterIndex: idx, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.CreateChapter(ctx, chapter); err != nil {
			t.Fatalf("CreateChapter: %v", err)
		}
	}

	chapters, err := s.ListChapters(ctx, "book-ord")
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	for i, c := range chapters {
		if c.ChapterIndex != i {
			t.Errorf("position %d: got index %d", i, c.ChapterIndex)
		}
	}
}
