package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/inkcast/inkcast-server/internal/config"
	"github.com/inkcast/inkcast-server/internal/encoder"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/segment"
	"github.com/inkcast/inkcast-server/internal/service"
	"github.com/inkcast/inkcast-server/internal/storage"
	"github.com/inkcast/inkcast-server/internal/synth"
)

// SynthHandle wraps the synthesis client for shutdown; Close stops the
// outbound rate limiter.
type SynthHandle struct {
	*synth.Client
}

func (h *SynthHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideSynthClient provides the TTS synthesis client.
func ProvideSynthClient(i do.Injector) (*SynthHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := synth.NewClient(synth.ClientOptions{
		BaseURL:   cfg.Synth.BaseURL,
		Voice:     cfg.Synth.Voice,
		WorkDir:   filepath.Join(cfg.WorkPath(), "synth"),
		Retries:   cfg.Synth.Retries,
		Timeout:   cfg.Synth.Timeout,
		RateRPS:   cfg.Synth.RateRPS,
		RateBurst: cfg.Synth.RateBurst,
	}, log)
	if err != nil {
		return nil, err
	}

	log.Info("Synthesis client configured",
		"url", cfg.Synth.BaseURL, "voice", cfg.Synth.Voice, "rate_rps", cfg.Synth.RateRPS)

	return &SynthHandle{Client: client}, nil
}

// ProvideEncoder provides the ffmpeg group encoder.
func ProvideEncoder(i do.Injector) (*encoder.Encoder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	objects := do.MustInvoke[*storage.Filesystem](i)

	return encoder.New(encoder.Options{
		FFmpegPath: cfg.Build.FFmpegPath,
		WorkDir:    filepath.Join(cfg.WorkPath(), "encode"),
		Workers:    cfg.Build.EncodeWorkers,
		Retries:    cfg.Build.EncodeRetries,
		Timeout:    cfg.Build.EncodeTimeout,
		KeepClips:  cfg.Build.KeepSegmentAudio,
	}, objects, log)
}

// ProvideBuildService provides the chapter build pipeline.
func ProvideBuildService(i do.Injector) (*service.BuildService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	synthHandle := do.MustInvoke[*SynthHandle](i)
	enc := do.MustInvoke[*encoder.Encoder](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	renderCache := do.MustInvoke[*RenderCacheHandle](i)

	opts := service.BuildOptions{
		Segments: segment.Options{
			MinChars: cfg.Build.MinChars,
			MaxChars: cfg.Build.MaxChars,
			MinWords: cfg.Build.MinWords,
		},
		TargetGroupMs: cfg.Build.TargetGroupDuration.Milliseconds(),
		SynthWorkers:  cfg.Synth.Workers,
	}

	return service.NewBuildService(storeHandle.Store, synthHandle.Client, enc, index.Index, renderCache.Cache, opts, log), nil
}

// ProvideChapterService provides chapter CRUD and source processing.
func ProvideChapterService(i do.Injector) (*service.ChapterService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	builds := do.MustInvoke[*service.BuildService](i)

	return service.NewChapterService(storeHandle.Store, builds, log), nil
}

// ProvidePlaybackService provides manifest, resume, and paragraph reads.
func ProvidePlaybackService(i do.Injector) (*service.PlaybackService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	renderCache := do.MustInvoke[*RenderCacheHandle](i)

	return service.NewPlaybackService(storeHandle.Store, renderCache.Cache, log), nil
}

// ProvideSearchService provides transcript search with audio positioning.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewSearchService(storeHandle.Store, index.Index, log), nil
}

// ProvideGCService provides dead-build artifact collection.
func ProvideGCService(i do.Injector) (*service.GCService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	objects := do.MustInvoke[*storage.Filesystem](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	renderCache := do.MustInvoke[*RenderCacheHandle](i)

	return service.NewGCService(storeHandle.Store, objects, renderCache.Cache, index.Index, log), nil
}
