package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prashantji77/youtube-video-summarizer/internal/db"
	"github.com/prashantji77/youtube-video-summarizer/internal/youtube"
)

const MsgGetOnly = "GET only"

// HistoryLister reads back stored Q&A records.
type HistoryLister interface {
	Recent(ctx context.Context, videoID string, limit int) ([]db.QARecord, error)
}

type HistoryResponse struct {
	Records []db.QARecord `json:"records"`
}

type HistoryHandler struct {
	history HistoryLister
}

func NewHistoryHandler(history HistoryLister) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListHandler handles GET /api/history/?video_id=&limit=
// video_id also accepts a full video URL.
func (h *HistoryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, MsgGetOnly) {
		return
	}

	videoID := strings.TrimSpace(r.URL.Query().Get("video_id"))
	if videoID != "" {
		if id, ok := youtube.ExtractVideoID(videoID); ok {
			videoID = id
		}
	}

	limit := db.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = db.ClampLimit(n)
	}

	records, err := h.history.Recent(r.Context(), videoID, limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Could not load Q&A history")
		WriteError(w, r, http.StatusInternalServerError, MsgInternal)
		return
	}
	WriteJSON(w, http.StatusOK, HistoryResponse{Records: records})
}
