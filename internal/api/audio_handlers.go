package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkcast/inkcast-server/internal/http/response"
)

// handleStreamGroupAudio streams a group's encoded audio. This stays a plain
// chi handler because the body is a raw media stream, not a JSON envelope.
func (s *Server) handleStreamGroupAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildID := chi.URLParam(r, "buildID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		response.BadRequest(w, "group index must be a non-negative integer", s.logger)
		return
	}

	build, err := s.store.GetBuild(ctx, buildID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	groups, err := s.store.ListGroups(ctx, build.ID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if index >= len(groups) {
		response.NotFound(w, fmt.Sprintf("build %s has no group %d", build.ID, index), s.logger)
		return
	}
	group := groups[index]

	rc, err := s.objects.Get(ctx, group.AudioURL)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/mp4")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are already sent, so just log the truncated stream.
		s.logger.Warn("Audio stream interrupted",
			"build_id", build.ID,
			"group_index", index,
			"error", err)
	}
}
