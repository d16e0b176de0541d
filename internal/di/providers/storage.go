package providers

import (
	"github.com/samber/do/v2"

	"github.com/inkcast/inkcast-server/internal/cache"
	"github.com/inkcast/inkcast-server/internal/config"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/storage"
)

// ProvideObjectStore provides the published audio object store.
func ProvideObjectStore(i do.Injector) (*storage.Filesystem, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	fs, err := storage.NewFilesystem(cfg.AudioPath())
	if err != nil {
		return nil, err
	}

	log.Info("Audio storage initialized", "path", cfg.AudioPath())

	return fs, nil
}

// RenderCacheHandle wraps the badger cache with shutdown capability.
type RenderCacheHandle struct {
	*cache.Cache
}

// Shutdown implements do.Shutdownable.
func (h *RenderCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideRenderCache provides the derived-value cache.
func ProvideRenderCache(i do.Injector) (*RenderCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c, err := cache.New(cfg.CachePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Render cache initialized", "path", cfg.CachePath())

	return &RenderCacheHandle{Cache: c}, nil
}
