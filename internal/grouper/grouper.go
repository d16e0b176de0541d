// Package grouper packs measured segments into concatenated playback groups
// bounded by a target duration, and computes the absolute chapter timeline.
//
// Packing is a pure function of the (segment index, duration) sequence: it
// is deterministic and re-runnable for a given build, and never depends on
// the order synthesis results arrived in.
package grouper

import (
	"sort"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/errors"
)

// DefaultTargetDurationMs is the production group duration target (35s).
const DefaultTargetDurationMs int64 = 35000

// Group is a packed run of consecutive segments. Segments carry their
// assigned OffsetInGroupMs after packing; GroupID assignment happens at
// persistence time.
type Group struct {
	GroupIndex        int
	DurationMs        int64
	StartTimeMs       int64
	StartSegmentIndex int
	EndSegmentIndex   int
	Segments          []domain.Segment
}

// Pack accumulates consecutive segments into groups, closing a group when
// adding the next segment would exceed targetDurationMs. A single segment
// longer than the target still forms its own group; audio is never split
// mid-segment.
//
// Input order is not trusted: segments are re-sorted by SegmentIndex before
// packing, so out-of-order synthesis completion cannot corrupt the timeline.
func Pack(segments []domain.Segment, targetDurationMs int64) ([]Group, error) {
	if len(segments) == 0 {
		return nil, errors.Validation("cannot pack zero segments")
	}
	if targetDurationMs <= 0 {
		targetDurationMs = DefaultTargetDurationMs
	}

	ordered := make([]domain.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SegmentIndex < ordered[j].SegmentIndex
	})

	for i, seg := range ordered {
		if seg.SegmentIndex != i {
			return nil, errors.Validationf("segment indices not contiguous: expected %d, got %d", i, seg.SegmentIndex)
		}
		if seg.DurationMs <= 0 {
			return nil, errors.Validationf("segment %d has no measured duration", seg.SegmentIndex)
		}
	}

	var groups []Group
	current := Group{GroupIndex: 0, StartSegmentIndex: 0}
	var chapterTimeMs int64

	for _, seg := range ordered {
		if len(current.Segments) > 0 && current.DurationMs+seg.DurationMs > targetDurationMs {
			current.EndSegmentIndex = current.Segments[len(current.Segments)-1].SegmentIndex
			groups = append(groups, current)
			chapterTimeMs += current.DurationMs

			current = Group{
				GroupIndex:        len(groups),
				StartTimeMs:       chapterTimeMs,
				StartSegmentIndex: seg.SegmentIndex,
			}
		}

		seg.OffsetInGroupMs = current.DurationMs
		current.Segments = append(current.Segments, seg)
		current.DurationMs += seg.DurationMs
	}

	current.EndSegmentIndex = current.Segments[len(current.Segments)-1].SegmentIndex
	groups = append(groups, current)

	return groups, nil
}

// Validate checks the structural invariants of a packed group sequence:
// contiguous group indices, gapless segment coverage, and prefix-sum
// start times.
func Validate(groups []Group) error {
	nextSegment := 0
	var elapsedMs int64

	for i, g := range groups {
		if g.GroupIndex != i {
			return errors.Validationf("group index %d out of sequence at position %d", g.GroupIndex, i)
		}
		if g.StartSegmentIndex != nextSegment {
			return errors.Validationf("group %d starts at segment %d, expected %d", i, g.StartSegmentIndex, nextSegment)
		}
		if g.EndSegmentIndex < g.StartSegmentIndex {
			return errors.Validationf("group %d has inverted segment range", i)
		}
		if g.StartTimeMs != elapsedMs {
			return errors.Validationf("group %d start_time_ms %d, expected prefix sum %d", i, g.StartTimeMs, elapsedMs)
		}
		if g.DurationMs <= 0 {
			return errors.Validationf("group %d has non-positive duration", i)
		}
		nextSegment = g.EndSegmentIndex + 1
		elapsedMs += g.DurationMs
	}
	return nil
}
