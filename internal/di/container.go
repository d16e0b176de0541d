// Package di provides dependency injection configuration for the Inkcast server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/inkcast/inkcast-server/internal/config"
	"github.com/inkcast/inkcast-server/internal/di/providers"
	"github.com/inkcast/inkcast-server/internal/encoder"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/service"
	"github.com/inkcast/inkcast-server/internal/storage"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideObjectStore)
	do.Provide(injector, providers.ProvideRenderCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Pipeline collaborators
	do.Provide(injector, providers.ProvideSynthClient)
	do.Provide(injector, providers.ProvideEncoder)

	// Business services
	do.Provide(injector, providers.ProvideBuildService)
	do.Provide(injector, providers.ProvideChapterService)
	do.Provide(injector, providers.ProvidePlaybackService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideGCService)

	// Workers
	do.Provide(injector, providers.ProvideIngestor)
	do.Provide(injector, providers.ProvideGCJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is running.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*storage.Filesystem](injector)
	_ = do.MustInvoke[*providers.RenderCacheHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	_ = do.MustInvoke[*providers.SynthHandle](injector)
	_ = do.MustInvoke[*encoder.Encoder](injector)

	_ = do.MustInvoke[*service.BuildService](injector)
	_ = do.MustInvoke[*service.ChapterService](injector)
	_ = do.MustInvoke[*service.PlaybackService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.GCService](injector)

	_ = do.MustInvoke[*providers.IngestorHandle](injector)
	_ = do.MustInvoke[*providers.GCJob](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Repopulate the transcript index if it came up empty.
	providers.ReindexIfEmpty(injector)

	return nil
}
