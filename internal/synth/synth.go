// Package synth turns normalized segment text into audio clips by calling
// an external TTS service.
package synth

import (
	"context"
)

// Clip is one synthesized segment on local disk, not yet encoded or grouped.
type Clip struct {
	Path       string
	DurationMs int64
}

// Synthesizer produces an audio clip for a single segment's normalized text.
// Implementations must be safe for concurrent use; the build pipeline fans
// segments out across workers.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}
