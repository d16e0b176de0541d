package api

import (
	"github.com/inkcast/inkcast-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Chapter  *service.ChapterService
	Playback *service.PlaybackService
	Search   *service.SearchService

	// SearchIndex reports index health; nil when search is disabled.
	SearchIndex DocumentCounter
}

// DocumentCounter exposes the transcript index size for health checks.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}
