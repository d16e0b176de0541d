// Package timeline locates playback positions within a build's group
// timeline. Lookups are pure queries over the ordered group list and run in
// O(log n).
package timeline

import (
	"sort"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/errors"
)

// Position is a resolved resume point: the owning group and the offset into
// that group's audio file.
type Position struct {
	GroupIndex int    `json:"group_index"`
	GroupID    string `json:"group_id,omitempty"`
	OffsetMs   int64  `json:"offset_ms"`

	// Finished is set when the target lay at or beyond the end of the
	// chapter; the caller decides what to do with a finished chapter.
	Finished bool `json:"finished,omitempty"`
}

// Resume finds the group owning the absolute chapter position targetMs and
// the in-group offset to resume at. Groups must be ordered by GroupIndex
// with correct prefix-sum StartTimeMs values.
//
// Out-of-range targets are defined boundary behaviors, not errors: positions
// before the first group clamp to (group 0, offset 0); positions at or past
// the end of the last group clamp to the last group's end and set Finished.
func Resume(groups []domain.AudioGroup, targetMs int64) (Position, error) {
	if len(groups) == 0 {
		return Position{}, errors.NotFound("no groups in timeline")
	}

	if targetMs < groups[0].StartTimeMs {
		first := groups[0]
		return Position{GroupIndex: first.GroupIndex, GroupID: first.ID}, nil
	}

	last := groups[len(groups)-1]
	if targetMs >= last.EndTimeMs() {
		return Position{
			GroupIndex: last.GroupIndex,
			GroupID:    last.ID,
			OffsetMs:   last.DurationMs,
			Finished:   true,
		}, nil
	}

	// Last group whose start_time_ms <= target: sort.Search returns the
	// first group starting after the target, so the owner is one left.
	i := sort.Search(len(groups), func(i int) bool {
		return groups[i].StartTimeMs > targetMs
	})
	g := groups[i-1]

	offset := targetMs - g.StartTimeMs
	if offset >= g.DurationMs {
		offset = g.DurationMs - 1
	}

	return Position{GroupIndex: g.GroupIndex, GroupID: g.ID, OffsetMs: offset}, nil
}
