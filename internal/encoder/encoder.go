// Package encoder turns synthesized segment clips into published group
// artifacts: it concatenates each group's clips with ffmpeg, verifies the
// encoded duration, and uploads the result to object storage.
package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/simonhull/audiometa"
	"golang.org/x/sync/errgroup"

	"github.com/inkcast/inkcast-server/internal/domain"
	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/storage"
)

// GroupJob is one group to encode: its metadata row plus the ordered clip
// files covering its segment range.
type GroupJob struct {
	Group     domain.AudioGroup
	ClipPaths []string
}

// Runner executes an external command. Abstracted so tests can stand in for
// ffmpeg.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Prober reads the duration of an encoded audio file.
type Prober func(ctx context.Context, path string) (time.Duration, error)

func audiometaProber(ctx context.Context, path string) (time.Duration, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return file.Audio.Duration, nil
}

type Options struct {
	FFmpegPath string
	WorkDir    string
	Workers    int
	Retries    int
	Timeout    time.Duration

	// KeepClips leaves per-segment clip files on disk after encoding,
	// for debugging synthesis output.
	KeepClips bool
}

// Encoder encodes groups concurrently with a bounded worker count.
type Encoder struct {
	opts   Options
	store  storage.Store
	runner Runner
	probe  Prober
	logger *logger.Logger
}

func New(opts Options, store storage.Store, log *logger.Logger) (*Encoder, error) {
	if opts.WorkDir == "" {
		return nil, apperrors.Validation("encoder work dir is required")
	}
	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, apperrors.Internal("create encoder work dir").WithCause(err)
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Encoder{
		opts:   opts,
		store:  store,
		runner: execRunner{},
		probe:  audiometaProber,
		logger: log,
	}, nil
}

// EncodeAll encodes every group and returns the groups with AudioURL set,
// in the input order. If any group fails, the whole build fails; partially
// uploaded artifacts are left for garbage collection.
func (e *Encoder) EncodeAll(ctx context.Context, chapterID string, jobs []GroupJob) ([]domain.AudioGroup, error) {
	results := make([]domain.AudioGroup, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i, job := range jobs {
		g.Go(func() error {
			url, err := e.encodeGroup(gctx, chapterID, job)
			if err != nil {
				return err
			}
			out := job.Group
			out.AudioURL = url
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !e.opts.KeepClips {
		for _, job := range jobs {
			for _, path := range job.ClipPaths {
				os.Remove(path)
			}
		}
	}

	return results, nil
}

func (e *Encoder) encodeGroup(ctx context.Context, chapterID string, job GroupJob) (string, error) {
	if len(job.ClipPaths) == 0 {
		return "", apperrors.Encodingf("group %d has no clips", job.Group.GroupIndex)
	}

	var lastErr error
	for attempt := 0; attempt <= e.opts.Retries; attempt++ {
		url, err := e.encodeGroupOnce(ctx, chapterID, job)
		if err == nil {
			return url, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		e.logger.Warn("group encode attempt failed",
			"group_index", job.Group.GroupIndex, "attempt", attempt, "error", err)
	}
	return "", apperrors.Encodingf("group %d failed after %d attempts", job.Group.GroupIndex, e.opts.Retries+1).WithCause(lastErr)
}

func (e *Encoder) encodeGroupOnce(ctx context.Context, chapterID string, job GroupJob) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	listPath, err := e.writeConcatList(job)
	if err != nil {
		return "", err
	}
	defer os.Remove(listPath)

	outPath := filepath.Join(e.opts.WorkDir,
		fmt.Sprintf("group_%d_%s.m4a", job.Group.GroupIndex, uuid.NewString()))
	defer os.Remove(outPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
	if out, err := e.runner.Run(ctx, e.opts.FFmpegPath, args...); err != nil {
		return "", apperrors.Encodingf("ffmpeg: %s", tail(out)).WithCause(err)
	}

	if err := e.verifyDuration(ctx, outPath, job.Group.DurationMs); err != nil {
		return "", err
	}

	data, err := os.Open(outPath)
	if err != nil {
		return "", apperrors.Internal("open encoded group").WithCause(err)
	}
	defer data.Close()

	key := fmt.Sprintf("%s/group_%d_%s.m4a", chapterID, job.Group.GroupIndex, uuid.NewString())
	url, err := e.store.Put(ctx, key, data)
	if err != nil {
		return "", err
	}

	e.logger.Debug("group encoded",
		"group_index", job.Group.GroupIndex, "duration_ms", job.Group.DurationMs, "url", url)
	return url, nil
}

// verifyDuration rejects artifacts whose encoded length drifts too far from
// the sum of clip durations; large drift means a clip was dropped or doubled.
func (e *Encoder) verifyDuration(ctx context.Context, path string, expectedMs int64) error {
	actual, err := e.probe(ctx, path)
	if err != nil {
		return apperrors.Encodingf("probe encoded group").WithCause(err)
	}

	actualMs := actual.Milliseconds()
	drift := actualMs - expectedMs
	if drift < 0 {
		drift = -drift
	}
	if drift > driftTolerance(expectedMs) {
		return apperrors.Encodingf("encoded duration %dms drifts %dms from expected %dms",
			actualMs, drift, expectedMs)
	}
	return nil
}

// driftTolerance allows for AAC encoder priming and padding: 2% of the
// expected duration, never less than 500ms.
func driftTolerance(expectedMs int64) int64 {
	tol := expectedMs / 50
	if tol < 500 {
		tol = 500
	}
	return tol
}

// writeConcatList writes the ffmpeg concat demuxer input file.
func (e *Encoder) writeConcatList(job GroupJob) (string, error) {
	var b strings.Builder
	for _, path := range job.ClipPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", apperrors.Internal("resolve clip path").WithCause(err)
		}
		// Single quotes in paths are escaped per the concat demuxer rules.
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	listPath := filepath.Join(e.opts.WorkDir,
		fmt.Sprintf("concat_%d_%s.txt", job.Group.GroupIndex, uuid.NewString()))
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return "", apperrors.Internal("write concat list").WithCause(err)
	}
	return listPath, nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	return s
}
