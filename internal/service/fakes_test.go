package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/encoder"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/search"
	"github.com/inkcast/inkcast-server/internal/service"
	"github.com/inkcast/inkcast-server/internal/store"
	"github.com/inkcast/inkcast-server/internal/store/sqlite"
	"github.com/inkcast/inkcast-server/internal/synth"
)

// Three chunks that each survive segmentation as a single segment: above the
// minimum length, below the maximum, and mapped one-to-one onto paragraphs.
const (
	chunkLighthouse = "The lighthouse keeper climbed the spiral staircase slowly, counting each of the ninety steps out of habit."
	chunkLampRoom   = "At the top the lamp room smelled of kerosene and salt, and the great lens turned with a patient mechanical groan."
	chunkWaves      = "Far below, the waves broke against the rocks in long white lines that glowed faintly in the last of the evening light."
)

func testSource(bookID string, chapterIndex int) domain.ChapterSource {
	return domain.ChapterSource{
		BookID:       bookID,
		Title:        "The Lamp Room",
		ChapterIndex: chapterIndex,
		Chunks:       []string{chunkLighthouse, chunkLampRoom, chunkWaves},
		Paragraphs:   []string{chunkLighthouse, chunkLampRoom, chunkWaves},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := sqlite.Open(dbPath, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Writer: io.Discard, Format: "json"})
}

// fakeSynth returns fixed-duration clips without any TTS backend.
type fakeSynth struct {
	mu         sync.Mutex
	calls      int
	durationMs int64
	err        error
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) (synth.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return synth.Clip{}, f.err
	}
	if strings.TrimSpace(text) == "" {
		return synth.Clip{}, fmt.Errorf("empty text")
	}
	ms := f.durationMs
	if ms == 0 {
		ms = 12000
	}
	return synth.Clip{Path: fmt.Sprintf("clip-%d.wav", f.calls), DurationMs: ms}, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEncoder publishes groups without running ffmpeg.
type fakeEncoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEncoder) EncodeAll(_ context.Context, chapterID string, jobs []encoder.GroupJob) ([]domain.AudioGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	groups := make([]domain.AudioGroup, len(jobs))
	for i, job := range jobs {
		g := job.Group
		g.AudioURL = fmt.Sprintf("file://%s/group_%d.m4a", chapterID, g.GroupIndex)
		groups[i] = g
	}
	return groups, nil
}

// fakeIndexer records indexing calls.
type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[string][]*search.Document // by build ID
	deleted []string
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: map[string][]*search.Document{}}
}

func (f *fakeIndexer) IndexBuild(docs []*search.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range docs {
		f.indexed[doc.BuildID] = append(f.indexed[doc.BuildID], doc)
	}
	return nil
}

func (f *fakeIndexer) DeleteBuild(_ context.Context, buildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, buildID)
	f.deleted = append(f.deleted, buildID)
	return nil
}

func (f *fakeIndexer) docsFor(buildID string) []*search.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[buildID]
}

func (f *fakeIndexer) deletedBuilds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeCache is an in-memory RenderCache.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]string
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func cacheKey(buildID, hash string, idx int) string {
	return fmt.Sprintf("%s:%s:%d", buildID, hash, idx)
}

func (f *fakeCache) GetParagraph(buildID, hash string, idx int) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.entries[cacheKey(buildID, hash, idx)]
	return text, ok, nil
}

func (f *fakeCache) SetParagraph(buildID, hash string, idx int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[cacheKey(buildID, hash, idx)] = text
	return nil
}

func (f *fakeCache) InvalidateBuild(buildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.entries {
		if strings.HasPrefix(key, buildID+":") {
			delete(f.entries, key)
		}
	}
	f.invalidated = append(f.invalidated, buildID)
	return nil
}

// env bundles a build service with its collaborators for pipeline tests.
type env struct {
	store   store.Store
	synth   *fakeSynth
	encoder *fakeEncoder
	indexer *fakeIndexer
	cache   *fakeCache
	builds  *service.BuildService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:   newTestStore(t),
		synth:   &fakeSynth{},
		encoder: &fakeEncoder{},
		indexer: newFakeIndexer(),
		cache:   newFakeCache(),
	}
	e.builds = service.NewBuildService(
		e.store, e.synth, e.encoder, e.indexer, e.cache,
		service.BuildOptions{SynthWorkers: 2}, testLogger(),
	)
	return e
}

func (e *env) createChapter(t *testing.T, id, bookID string, index int) *domain.Chapter {
	t.Helper()
	chapter := &domain.Chapter{
		ID:           id,
		BookID:       bookID,
		Title:        "The Lamp Room",
		ChapterIndex: index,
	}
	if err := e.store.CreateChapter(context.Background(), chapter); err != nil {
		t.Fatalf("create chapter: %v", err)
	}
	return chapter
}
