package providers

import (
	"context"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/inkcast/inkcast-server/internal/config"
	"github.com/inkcast/inkcast-server/internal/ingest"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/service"
)

// IngestorHandle wraps the drop-directory ingest pipeline with shutdown
// capability. Ingester is nil when ingest is disabled by configuration.
type IngestorHandle struct {
	*ingest.Ingester
	watcher *ingest.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *IngestorHandle) Shutdown() error {
	if h.Ingester == nil {
		return nil
	}
	h.cancel()
	return h.watcher.Stop()
}

// ProvideIngestor provides the chapter drop-directory watcher and processor.
func ProvideIngestor(i do.Injector) (*IngestorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Ingest.Enabled {
		log.Info("Ingest watcher disabled by configuration")
		return &IngestorHandle{}, nil
	}

	chapterService := do.MustInvoke[*service.ChapterService](i)

	if err := os.MkdirAll(cfg.Ingest.DropPath, 0o755); err != nil {
		return nil, err
	}

	w, err := ingest.NewWatcher(cfg.Ingest.DropPath, 0, log)
	if err != nil {
		return nil, err
	}

	ingester, err := ingest.NewIngester(w, chapterService, log)
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("Ingest watcher error", "error", err)
		}
	}()
	go func() {
		if err := ingester.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Ingester error", "error", err)
		}
	}()

	log.Info("Ingest watcher started", "path", cfg.Ingest.DropPath)

	return &IngestorHandle{
		Ingester: ingester,
		watcher:  w,
		cancel:   cancel,
	}, nil
}

// GCJob runs the periodic dead-build sweep.
type GCJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *GCJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideGCJob provides the periodic garbage collection job. An interval of
// zero disables the ticker; Sweep can still be run manually.
func ProvideGCJob(i do.Injector) (*GCJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	gc := do.MustInvoke[*service.GCService](i)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.GC.Interval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.GC.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					swept, err := gc.Sweep(ctx, cfg.GC.Retention)
					if err != nil {
						log.Warn("Build artifact sweep failed", "error", err)
					} else if swept > 0 {
						log.Info("Swept dead builds", "count", swept)
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		log.Info("Garbage collection scheduled",
			"interval", cfg.GC.Interval, "retention", cfg.GC.Retention)
	}

	return &GCJob{cancel: cancel}, nil
}
