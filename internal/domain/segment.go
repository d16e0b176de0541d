package domain

// Segment is the atomic unit of narration: one stretch of display text and
// its synthesized audio duration. Segment indices are contiguous and 0-based
// within a build.
type Segment struct {
	BuildID      string `json:"build_id"`
	SegmentIndex int    `json:"segment_index"`

	// Text is the display form; TextNormalized must equal the canonical
	// normalization of Text. The contract is checked at persistence time,
	// never assumed.
	Text           string `json:"text"`
	TextNormalized string `json:"text_normalized"`

	// Heading segments are exempt from the minimum length bound and are
	// kept as standalone segments by the normalizer.
	Heading bool `json:"heading,omitempty"`

	// DurationMs is measured from the synthesized audio (>0 once known).
	DurationMs int64 `json:"duration_ms"`

	// GroupID and OffsetInGroupMs are assigned by the grouper after all
	// durations are known.
	GroupID         string `json:"group_id,omitempty"`
	OffsetInGroupMs int64  `json:"offset_in_group_ms"`
}
