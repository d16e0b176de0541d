package service

import (
	"context"
	"time"

	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/storage"
	"github.com/inkcast/inkcast-server/internal/store"
)

// GCService reclaims failed and abandoned builds: their database rows, their
// encoded audio objects, and their derived cache and index entries. Ready
// builds are never collected; the active pointer protects the published one
// and history stays queryable.
type GCService struct {
	store   store.Store
	objects storage.Store
	cache   RenderCache
	index   TranscriptIndexer
	logger  *logger.Logger
}

// NewGCService creates a new garbage collection service. cache and index
// may be nil.
func NewGCService(st store.Store, objects storage.Store, cache RenderCache, index TranscriptIndexer, log *logger.Logger) *GCService {
	return &GCService{store: st, objects: objects, cache: cache, index: index, logger: log}
}

// Sweep deletes terminal non-ready builds older than retention. It returns
// the number of builds removed. A failure on one build logs and moves on so
// a single bad row cannot wedge the sweep.
func (s *GCService) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	expired, err := s.store.ListExpiredBuilds(ctx, cutoff)
	if err != nil {
		return 0, mapStoreErr(err, "expired builds")
	}

	removed := 0
	for _, build := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.collect(ctx, build.ID); err != nil {
			s.logger.Warn("collect build", "build_id", build.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("build sweep completed", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// collect removes one build and everything derived from it. Audio objects
// go first; if object deletion fails the rows stay so the next sweep
// retries.
func (s *GCService) collect(ctx context.Context, buildID string) error {
	groups, err := s.store.ListGroups(ctx, buildID)
	if err != nil {
		return mapStoreErr(err, "audio groups")
	}
	for _, g := range groups {
		if g.AudioURL == "" {
			continue
		}
		if err := s.objects.Delete(ctx, g.AudioURL); err != nil {
			return err
		}
	}

	if err := s.store.DeleteBuild(ctx, buildID); err != nil {
		return mapStoreErr(err, "build")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateBuild(buildID); err != nil {
			s.logger.Warn("invalidate render cache", "build_id", buildID, "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.DeleteBuild(ctx, buildID); err != nil {
			s.logger.Warn("deindex build", "build_id", buildID, "error", err)
		}
	}
	return nil
}
