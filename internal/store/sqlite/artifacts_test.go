package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/store"
)

func testArtifacts(buildID string) ([]domain.Segment, []domain.AudioGroup, []domain.ParagraphSpan) {
	segments := []domain.Segment{
		{BuildID: buildID, SegmentIndex: 0, Text: "First sentence here.", TextNormalized: "First sentence here.", DurationMs: 4000, GroupID: "grp-a", OffsetInGroupMs: 0},
		{BuildID: buildID, SegmentIndex: 1, Text: "Second  sentence here.", TextNormalized: "Second sentence here.", DurationMs: 5000, GroupID: "grp-a", OffsetInGroupMs: 4000},
		{BuildID: buildID, SegmentIndex: 2, Text: "CHAPTER TWO", TextNormalized: "CHAPTER TWO", Heading: true, DurationMs: 1500, GroupID: "grp-b", OffsetInGroupMs: 0},
	}
	groups := []domain.AudioGroup{
		{ID: "grp-a", BuildID: buildID, GroupIndex: 0, AudioURL: "file://a.m4a", DurationMs: 9000, StartTimeMs: 0, StartSegmentIndex: 0, EndSegmentIndex: 1},
		{ID: "grp-b", BuildID: buildID, GroupIndex: 1, AudioURL: "file://b.m4a", DurationMs: 1500, StartTimeMs: 9000, StartSegmentIndex: 2, EndSegmentIndex: 2},
	}
	spans := []domain.ParagraphSpan{
		{ID: "span-1", BuildID: buildID, ParagraphIndex: 0, StartSegmentIndex: 0, EndSegmentIndex: 1, StartCharOffset: 0, EndCharOffset: 41},
		{ID: "span-2", BuildID: buildID, ParagraphIndex: 1, StartSegmentIndex: 2, EndSegmentIndex: 2, StartCharOffset: 42, EndCharOffset: 53},
	}
	return segments, groups, spans
}

func TestSaveAndListBuildArtifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-art")
	b := insertTestBuild(t, s, "bld-art", "ch-art")

	segments, groups, spans := testArtifacts(b.ID)
	if err := s.SaveBuildArtifacts(ctx, b.ID, segments, groups, spans); err != nil {
		t.Fatalf("SaveBuildArtifacts: %v", err)
	}

	gotSegs, err := s.ListSegments(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(gotSegs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(gotSegs))
	}
	if gotSegs[1].TextNormalized != "Second sentence here." {
		t.Errorf("TextNormalized: got %q", gotSegs[1].TextNormalized)
	}
	if gotSegs[1].OffsetInGroupMs != 4000 {
		t.Errorf("OffsetInGroupMs: got %d", gotSegs[1].OffsetInGroupMs)
	}
	if !gotSegs[2].Heading {
		t.Error("heading flag lost")
	}

	gotGroups, err := s.ListGroups(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(gotGroups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(gotGroups))
	}
	if gotGroups[1].StartTimeMs != 9000 {
		t.Errorf("StartTimeMs: got %d", gotGroups[1].StartTimeMs)
	}
	if gotGroups[0].AudioURL != "file://a.m4a" {
		t.Errorf("AudioURL: got %q", gotGroups[0].AudioURL)
	}

	gotSpans, err := s.ListSpans(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListSpans: %v", err)
	}
	if len(gotSpans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(gotSpans))
	}
	if gotSpans[1].StartSegmentIndex != 2 || gotSpans[1].EndSegmentIndex != 2 {
		t.Errorf("span range: got [%d, %d]", gotSpans[1].StartSegmentIndex, gotSpans[1].EndSegmentIndex)
	}
}

func TestSaveBuildArtifactsWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-once")
	b := insertTestBuild(t, s, "bld-once", "ch-once")

	segments, groups, spans := testArtifacts(b.ID)
	if err := s.SaveBuildArtifacts(ctx, b.ID, segments, groups, spans); err != nil {
		t.Fatalf("first save: %v", err)
	}

	err := s.SaveBuildArtifacts(ctx, b.ID, segments, groups, spans)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on second save, got %v", err)
	}
}

func TestSaveBuildArtifactsUnknownBuild(t *testing.T) {
	s := newTestStore(t)

	segments, groups, spans := testArtifacts("bld-nope")
	err := s.SaveBuildArtifacts(context.Background(), "bld-nope", segments, groups, spans)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBuildCascadesArtifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestChapter(t, s, "ch-casc")
	b := insertTestBuild(t, s, "bld-casc", "ch-casc")

	segments, groups, spans := testArtifacts(b.ID)
	if err := s.SaveBuildArtifacts(ctx, b.ID, segments, groups, spans); err != nil {
		t.Fatalf("SaveBuildArtifacts: %v", err)
	}

	if err := s.DeleteBuild(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBuild: %v", err)
	}

	gotSegs, err := s.ListSegments(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(gotSegs) != 0 {
		t.Errorf("segments survived delete: %d", len(gotSegs))
	}
	gotGroups, _ := s.ListGroups(ctx, b.ID)
	if len(gotGroups) != 0 {
		t.Errorf("groups survived delete: %d", len(gotGroups))
	}
	gotSpans, _ := s.ListSpans(ctx, b.ID)
	if len(gotSpans) != 0 {
		t.Errorf("spans survived delete: %d", len(gotSpans))
	}
}
