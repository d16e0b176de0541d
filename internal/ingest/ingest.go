package ingest

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/logger"
)

// Subdirectories a processed file is moved into. Keeping them inside the
// drop dir makes the pipeline inspectable with plain ls.
const (
	processedDir = "processed"
	failedDir    = "failed"
)

// SourceProcessor runs a build from one chapter source payload.
type SourceProcessor interface {
	ProcessSource(ctx context.Context, source domain.ChapterSource) (*domain.ChapterBuild, error)
}

// Ingester drains the watcher and archives each file after processing:
// successes move to processed/, failures to failed/ so a bad payload never
// loops forever.
type Ingester struct {
	watcher   *Watcher
	processor SourceProcessor
	logger    *logger.Logger
}

// NewIngester creates an ingester over an existing watcher.
func NewIngester(watcher *Watcher, processor SourceProcessor, log *logger.Logger) (*Ingester, error) {
	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(watcher.dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir %s: %w", sub, err)
		}
	}
	return &Ingester{watcher: watcher, processor: processor, logger: log}, nil
}

// Run pumps watcher events into the processor until the context ends. The
// watcher's Start loop must be running concurrently.
func (in *Ingester) Run(ctx context.Context) error {
	if err := in.scanExisting(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-in.watcher.Files():
			if !ok {
				return nil
			}
			in.handleFile(ctx, path)
		case err, ok := <-in.watcher.Errors():
			if !ok {
				return nil
			}
			in.logger.Warn("ingest watcher error", "error", err)
		}
	}
}

// scanExisting processes files that were dropped while the service was
// down. Watcher events only cover changes after startup.
func (in *Ingester) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(in.watcher.dir)
	if err != nil {
		return fmt.Errorf("scan drop dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(in.watcher.dir, entry.Name())
		if !in.watcher.isSourceFile(path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		in.handleFile(ctx, path)
	}
	return nil
}

// handleFile parses, builds, and archives one source file.
func (in *Ingester) handleFile(ctx context.Context, path string) {
	source, err := readSource(path)
	if err != nil {
		in.logger.Error("reject source file", "path", path, "error", err)
		in.archive(path, failedDir)
		return
	}

	build, err := in.processor.ProcessSource(ctx, source)
	if err != nil {
		in.logger.Error("build from source file failed",
			"path", path, "book_id", source.BookID,
			"chapter_index", source.ChapterIndex, "error", err)
		in.archive(path, failedDir)
		return
	}

	in.logger.Info("source file processed",
		"path", path, "build_id", build.ID,
		"canonical_version", build.CanonicalVersion)
	in.archive(path, processedDir)
}

// readSource parses a chapter source document.
func readSource(path string) (domain.ChapterSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ChapterSource{}, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var source domain.ChapterSource
	if err := json.UnmarshalRead(f, &source); err != nil {
		return domain.ChapterSource{}, fmt.Errorf("parse source file: %w", err)
	}
	return source, nil
}

// archive moves a handled file into the given subdirectory.
func (in *Ingester) archive(path, sub string) {
	dest := filepath.Join(in.watcher.dir, sub, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		in.logger.Warn("archive source file", "path", path, "error", err)
	}
}
