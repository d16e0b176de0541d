package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/inkcast/inkcast-server/internal/api"
	"github.com/inkcast/inkcast-server/internal/config"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/ratelimit"
	"github.com/inkcast/inkcast-server/internal/service"
	"github.com/inkcast/inkcast-server/internal/storage"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	if h.limiter != nil {
		h.limiter.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	objects := do.MustInvoke[*storage.Filesystem](i)
	index := do.MustInvoke[*SearchIndexHandle](i)

	services := &api.Services{
		Chapter:     do.MustInvoke[*service.ChapterService](i),
		Playback:    do.MustInvoke[*service.PlaybackService](i),
		Search:      do.MustInvoke[*service.SearchService](i),
		SearchIndex: index.Index,
	}

	var limiter *ratelimit.KeyedRateLimiter
	if cfg.Server.BuildRateRPS > 0 {
		limiter = ratelimit.New(cfg.Server.BuildRateRPS, cfg.Server.BuildRateBurst)
	}

	handler := api.NewServer(storeHandle.Store, objects, services, limiter, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}
