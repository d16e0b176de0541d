package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/store"
)

// chapterColumns is the ordered list of columns selected in chapter queries.
// Must match the scan order in scanChapter.
const chapterColumns = `id, book_id, title, chapter_index, active_build_id, created_at, updated_at`

// scanChapter scans a sql.Row (or sql.Rows via its Scan method) into a domain.Chapter.
func scanChapter(scanner interface{ Scan(dest ...any) error }) (*domain.Chapter, error) {
	var c domain.Chapter

	var (
		activeBuildID sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := scanner.Scan(
		&c.ID,
		&c.BookID,
		&c.Title,
		&c.ChapterIndex,
		&activeBuildID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ActiveBuildID = activeBuildID.String

	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// CreateChapter inserts a new chapter.
// Returns store.ErrAlreadyExists on duplicate ID or (book_id, chapter_index).
func (s *Store) CreateChapter(ctx context.Context, chapter *domain.Chapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (
			id, book_id, title, chapter_index, active_build_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chapter.ID,
		chapter.BookID,
		chapter.Title,
		chapter.ChapterIndex,
		nullString(chapter.ActiveBuildID),
		formatTime(chapter.CreatedAt),
		formatTime(chapter.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetChapter retrieves a chapter by ID.
// Returns store.ErrNotFound if the chapter does not exist.
func (s *Store) GetChapter(ctx context.Context, id string) (*domain.Chapter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id)

	c, err := scanChapter(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetChapterByBookIndex retrieves a chapter by its position within a book.
func (s *Store) GetChapterByBookIndex(ctx context.Context, bookID string, chapterIndex int) (*domain.Chapter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE book_id = ? AND chapter_index = ?`,
		bookID, chapterIndex)

	c, err := scanChapter(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListChapters returns all chapters of a book ordered by chapter_index.
func (s *Store) ListChapters(ctx context.Context, bookID string) ([]*domain.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE book_id = ? ORDER BY chapter_index`,
		bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []*domain.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}
