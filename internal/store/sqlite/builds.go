package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/store"
)

// buildColumns is the ordered list of columns selected in build queries.
// Must match the scan order in scanBuild.
const buildColumns = `id, chapter_id, canonical_version, canonical_text,
	canonical_hash, status, error, created_at, published_at`

// scanBuild scans a sql.Row (or sql.Rows via its Scan method) into a domain.ChapterBuild.
func scanBuild(scanner interface{ Scan(dest ...any) error }) (*domain.ChapterBuild, error) {
	var b domain.ChapterBuild

	var (
		status      string
		buildErr    sql.NullString
		createdAt   string
		publishedAt sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&b.ChapterID,
		&b.CanonicalVersion,
		&b.CanonicalText,
		&b.CanonicalHash,
		&status,
		&buildErr,
		&createdAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BuildStatus(status)
	b.Error = buildErr.String

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.PublishedAt, err = parseNullableTime(publishedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBuild inserts a new build, assigning canonical_version in the same
// statement so concurrent creators for one chapter never observe the same
// maximum. The UNIQUE (chapter_id, canonical_version) constraint backstops
// the assignment.
func (s *Store) CreateBuild(ctx context.Context, build *domain.ChapterBuild) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chapter_builds (
			id, chapter_id, canonical_version, canonical_text,
			canonical_hash, status, error, created_at, published_at
		) VALUES (
			?, ?,
			(SELECT COALESCE(MAX(canonical_version), 0) + 1
			   FROM chapter_builds WHERE chapter_id = ?),
			?, ?, ?, ?, ?, ?
		)
		RETURNING canonical_version`,
		build.ID,
		build.ChapterID,
		build.ChapterID,
		build.CanonicalText,
		build.CanonicalHash,
		string(build.Status),
		nullString(build.Error),
		formatTime(build.CreatedAt),
		nullTimeString(build.PublishedAt),
	).Scan(&build.CanonicalVersion)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound.WithMessage("chapter not found")
		}
		return err
	}
	return nil
}

// GetBuild retrieves a build by ID.
func (s *Store) GetBuild(ctx context.Context, id string) (*domain.ChapterBuild, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+buildColumns+` FROM chapter_builds WHERE id = ?`, id)

	b, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetActiveBuild returns the build the chapter's active pointer references.
// Returns store.ErrNotFound if the chapter has no published build yet.
func (s *Store) GetActiveBuild(ctx context.Context, chapterID string) (*domain.ChapterBuild, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+buildColumns+` FROM chapter_builds
		WHERE id = (SELECT active_build_id FROM chapters WHERE id = ?)`,
		chapterID)

	b, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound.WithMessage("chapter has no active build")
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBuilds returns all builds of a chapter, newest version first.
func (s *Store) ListBuilds(ctx context.Context, chapterID string) ([]*domain.ChapterBuild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+buildColumns+` FROM chapter_builds
		WHERE chapter_id = ?
		ORDER BY canonical_version DESC`,
		chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBuilds(rows)
}

// FindReadyBuildByHash returns the newest ready build with a matching
// canonical hash, for short-circuiting rebuilds of unchanged text.
func (s *Store) FindReadyBuildByHash(ctx context.Context, chapterID, hash string) (*domain.ChapterBuild, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+buildColumns+` FROM chapter_builds
		WHERE chapter_id = ? AND canonical_hash = ? AND status = ?
		ORDER BY canonical_version DESC
		LIMIT 1`,
		chapterID, hash, string(domain.BuildStatusReady))

	b, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MarkBuildFailed records the failure reason on a pending build.
// Terminal builds are immutable.
func (s *Store) MarkBuildFailed(ctx context.Context, id, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chapter_builds SET status = ?, error = ?
		WHERE id = ? AND status = ?`,
		string(domain.BuildStatusFailed), nullString(reason),
		id, string(domain.BuildStatusPending))
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetBuild(ctx, id); err != nil {
			return err
		}
		return store.ErrBuildImmutable
	}
	return nil
}

// AbandonStaleBuilds marks every pending build of the chapter except keepID
// as abandoned, so superseded pipeline runs cannot publish later.
func (s *Store) AbandonStaleBuilds(ctx context.Context, chapterID, keepID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chapter_builds SET status = ?
		WHERE chapter_id = ? AND status = ? AND id != ?`,
		string(domain.BuildStatusAbandoned),
		chapterID, string(domain.BuildStatusPending), keepID)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	return int(n), err
}

// PublishBuild marks the build ready and repoints the chapter's active build
// at it in one transaction. Readers see either the old complete build or the
// new complete build, never a partial state.
func (s *Store) PublishBuild(ctx context.Context, chapterID, buildID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.ExecContext(ctx, `
		UPDATE chapter_builds SET status = ?, published_at = ?
		WHERE id = ? AND chapter_id = ? AND status = ?`,
		string(domain.BuildStatusReady), formatTime(now),
		buildID, chapterID, string(domain.BuildStatusPending))
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrBuildImmutable.WithMessage("build is not pending or does not belong to chapter")
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE chapters SET active_build_id = ?, updated_at = ?
		WHERE id = ?`,
		buildID, formatTime(now), chapterID)
	if err != nil {
		return err
	}
	n, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("chapter not found")
	}

	return tx.Commit()
}

// ActivateBuild repoints the chapter's active build at an already ready
// build. It fails if the build is not ready or belongs to another chapter.
func (s *Store) ActivateBuild(ctx context.Context, chapterID, buildID string) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM chapter_builds WHERE id = ? AND chapter_id = ?`,
		buildID, chapterID).Scan(&status)
	if err == sql.ErrNoRows {
		return store.ErrNotFound.WithMessage("build not found for chapter")
	}
	if err != nil {
		return err
	}
	if status != string(domain.BuildStatusReady) {
		return store.ErrBuildImmutable.WithMessage("only ready builds can be activated")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE chapters SET active_build_id = ?, updated_at = ?
		WHERE id = ?`,
		buildID, formatTime(time.Now()), chapterID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("chapter not found")
	}
	return nil
}

// ListActiveBuilds returns every build currently referenced by a chapter's
// active pointer. Used to rebuild derived state such as the search index.
func (s *Store) ListActiveBuilds(ctx context.Context) ([]*domain.ChapterBuild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+buildColumns+` FROM chapter_builds
		WHERE id IN (SELECT active_build_id FROM chapters WHERE active_build_id IS NOT NULL)
		ORDER BY chapter_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBuilds(rows)
}

// ListExpiredBuilds returns failed or abandoned builds created before the
// cutoff, oldest first.
func (s *Store) ListExpiredBuilds(ctx context.Context, cutoff time.Time) ([]*domain.ChapterBuild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+buildColumns+` FROM chapter_builds
		WHERE status IN (?, ?) AND created_at < ?
		ORDER BY created_at`,
		string(domain.BuildStatusFailed), string(domain.BuildStatusAbandoned),
		formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBuilds(rows)
}

// DeleteBuild removes the build; segments, groups, and spans cascade.
// The active build of a chapter cannot be deleted.
func (s *Store) DeleteBuild(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chapters WHERE active_build_id = ?`, id).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return store.ErrInvalidInput.WithMessage("cannot delete an active build")
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM chapter_builds WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func collectBuilds(rows *sql.Rows) ([]*domain.ChapterBuild, error) {
	var builds []*domain.ChapterBuild
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
