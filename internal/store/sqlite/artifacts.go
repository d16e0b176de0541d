package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/store"
)

// SaveBuildArtifacts persists a build's segments, groups, and spans in one
// transaction. A build's artifacts are written exactly once; a second call
// for the same build fails on the primary keys.
func (s *Store) SaveBuildArtifacts(ctx context.Context, buildID string, segments []domain.Segment, groups []domain.AudioGroup, spans []domain.ParagraphSpan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	segStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tts_segments (
			build_id, segment_index, text, text_normalized,
			heading, duration_ms, group_id, offset_in_group_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer segStmt.Close()

	for _, seg := range segments {
		_, err := segStmt.ExecContext(ctx,
			buildID,
			seg.SegmentIndex,
			seg.Text,
			seg.TextNormalized,
			boolToInt(seg.Heading),
			seg.DurationMs,
			nullString(seg.GroupID),
			seg.OffsetInGroupMs,
		)
		if err != nil {
			return wrapArtifactErr(err)
		}
	}

	groupStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audio_groups (
			id, build_id, group_index, audio_url, duration_ms,
			start_time_ms, start_segment_index, end_segment_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer groupStmt.Close()

	for _, g := range groups {
		_, err := groupStmt.ExecContext(ctx,
			g.ID,
			buildID,
			g.GroupIndex,
			nullString(g.AudioURL),
			g.DurationMs,
			g.StartTimeMs,
			g.StartSegmentIndex,
			g.EndSegmentIndex,
		)
		if err != nil {
			return wrapArtifactErr(err)
		}
	}

	spanStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO paragraph_spans (
			id, build_id, paragraph_index, start_segment_index,
			end_segment_index, start_char_offset, end_char_offset
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer spanStmt.Close()

	for _, sp := range spans {
		_, err := spanStmt.ExecContext(ctx,
			sp.ID,
			buildID,
			sp.ParagraphIndex,
			sp.StartSegmentIndex,
			sp.EndSegmentIndex,
			sp.StartCharOffset,
			sp.EndCharOffset,
		)
		if err != nil {
			return wrapArtifactErr(err)
		}
	}

	return tx.Commit()
}

func wrapArtifactErr(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed") {
		return store.ErrAlreadyExists.WithMessage("build artifacts already persisted")
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return store.ErrNotFound.WithMessage("build not found")
	}
	return err
}

// ListSegments returns a build's segments ordered by segment_index.
func (s *Store) ListSegments(ctx context.Context, buildID string) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, segment_index, text, text_normalized,
		       heading, duration_ms, group_id, offset_in_group_ms
		FROM tts_segments
		WHERE build_id = ?
		ORDER BY segment_index`,
		buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []domain.Segment
	for rows.Next() {
		var (
			seg     domain.Segment
			heading int
			groupID sql.NullString
		)
		err := rows.Scan(
			&seg.BuildID,
			&seg.SegmentIndex,
			&seg.Text,
			&seg.TextNormalized,
			&heading,
			&seg.DurationMs,
			&groupID,
			&seg.OffsetInGroupMs,
		)
		if err != nil {
			return nil, err
		}
		seg.Heading = heading != 0
		seg.GroupID = groupID.String
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// ListGroups returns a build's audio groups ordered by group_index.
func (s *Store) ListGroups(ctx context.Context, buildID string) ([]domain.AudioGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, build_id, group_index, audio_url, duration_ms,
		       start_time_ms, start_segment_index, end_segment_index
		FROM audio_groups
		WHERE build_id = ?
		ORDER BY group_index`,
		buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.AudioGroup
	for rows.Next() {
		var (
			g        domain.AudioGroup
			audioURL sql.NullString
		)
		err := rows.Scan(
			&g.ID,
			&g.BuildID,
			&g.GroupIndex,
			&audioURL,
			&g.DurationMs,
			&g.StartTimeMs,
			&g.StartSegmentIndex,
			&g.EndSegmentIndex,
		)
		if err != nil {
			return nil, err
		}
		g.AudioURL = audioURL.String
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListSpans returns a build's paragraph spans ordered by paragraph_index.
func (s *Store) ListSpans(ctx context.Context, buildID string) ([]domain.ParagraphSpan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, build_id, paragraph_index, start_segment_index,
		       end_segment_index, start_char_offset, end_char_offset
		FROM paragraph_spans
		WHERE build_id = ?
		ORDER BY paragraph_index`,
		buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spans []domain.ParagraphSpan
	for rows.Next() {
		var sp domain.ParagraphSpan
		err := rows.Scan(
			&sp.ID,
			&sp.BuildID,
			&sp.ParagraphIndex,
			&sp.StartSegmentIndex,
			&sp.EndSegmentIndex,
			&sp.StartCharOffset,
			&sp.EndCharOffset,
		)
		if err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}
