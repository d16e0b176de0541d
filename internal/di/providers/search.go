package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/inkcast/inkcast-server/internal/config"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/search"
	"github.com/inkcast/inkcast-server/internal/spans"
)

// SearchIndexHandle wraps the transcript index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve transcript index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.New(search.Options{
		DataPath: cfg.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &SearchIndexHandle{Index: index}, nil
}

// ReindexIfEmpty repopulates the transcript index from the store when the
// index starts empty, which happens after a mapping version bump or a
// corrupted index recreation. Runs in the background; the store stays the
// source of truth either way.
func ReindexIfEmpty(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	count, err := indexHandle.DocumentCount()
	if err != nil || count > 0 {
		return
	}

	go func() {
		ctx := context.Background()

		builds, err := storeHandle.ListActiveBuilds(ctx)
		if err != nil {
			log.Warn("transcript reindex: list active builds", "error", err)
			return
		}
		if len(builds) == 0 {
			return
		}

		indexed := 0
		for _, build := range builds {
			chapter, err := storeHandle.GetChapter(ctx, build.ChapterID)
			if err != nil {
				log.Warn("transcript reindex: load chapter", "chapter_id", build.ChapterID, "error", err)
				continue
			}
			paragraphSpans, err := storeHandle.ListSpans(ctx, build.ID)
			if err != nil {
				log.Warn("transcript reindex: load spans", "build_id", build.ID, "error", err)
				continue
			}
			segments, err := storeHandle.ListSegments(ctx, build.ID)
			if err != nil {
				log.Warn("transcript reindex: load segments", "build_id", build.ID, "error", err)
				continue
			}

			docs := make([]*search.Document, len(paragraphSpans))
			for j, span := range paragraphSpans {
				docs[j] = &search.Document{
					ID:             search.DocumentID(build.ID, span.ParagraphIndex),
					BookID:         chapter.BookID,
					ChapterID:      chapter.ID,
					BuildID:        build.ID,
					ParagraphIndex: span.ParagraphIndex,
					Text:           spans.RenderParagraph(span, segments),
				}
			}
			if err := indexHandle.IndexBuild(docs); err != nil {
				log.Warn("transcript reindex: index build", "build_id", build.ID, "error", err)
				continue
			}
			indexed++
		}

		log.Info("Transcript index rebuilt", "builds", indexed)
	}()
}
