package domain

// AudioGroup is one concatenated audio artifact covering a contiguous,
// inclusive range of segments. Groups partition a build's segment sequence
// with no gaps and no overlaps, and group k's StartTimeMs equals the sum of
// durations of groups 0..k-1.
type AudioGroup struct {
	ID         string `json:"id"`
	BuildID    string `json:"build_id"`
	GroupIndex int    `json:"group_index"`

	// AudioURL is the opaque storage reference for the encoded artifact.
	// Empty until the group has been encoded and published.
	AudioURL string `json:"audio_url,omitempty"`

	DurationMs  int64 `json:"duration_ms"`
	StartTimeMs int64 `json:"start_time_ms"`

	StartSegmentIndex int `json:"start_segment_index"`
	EndSegmentIndex   int `json:"end_segment_index"`
}

// EndTimeMs returns the absolute timeline position just past this group.
func (g *AudioGroup) EndTimeMs() int64 {
	return g.StartTimeMs + g.DurationMs
}

// Contains reports whether the absolute position falls inside this group.
func (g *AudioGroup) Contains(positionMs int64) bool {
	return positionMs >= g.StartTimeMs && positionMs < g.EndTimeMs()
}

// SegmentCount returns the number of segments in the group's range.
func (g *AudioGroup) SegmentCount() int {
	return g.EndSegmentIndex - g.StartSegmentIndex + 1
}
