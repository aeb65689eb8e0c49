package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prashantji77/youtube-video-summarizer/internal/db"
	"github.com/prashantji77/youtube-video-summarizer/internal/helper"
	"github.com/prashantji77/youtube-video-summarizer/internal/models"
	"github.com/prashantji77/youtube-video-summarizer/internal/parser"
	"github.com/prashantji77/youtube-video-summarizer/internal/rag"
	"github.com/prashantji77/youtube-video-summarizer/internal/youtube"
)

const maxRequestBytes = 1 << 20

// Messages returned to the browser extension.
const (
	MsgPostOnly        = "POST only"
	MsgInvalidJSON     = "Invalid JSON"
	MsgMissingFields   = "Video_url and question are required"
	MsgBadVideoURL     = "Could not extract video ID"
	MsgNoCaptions      = "No caption available for this video."
	MsgFetchFailed     = "Error while fetching transcript or can you check your Internet connection."
	MsgNoContent       = "The transcript has no usable text."
	MsgUpstreamFailed  = "The language model could not answer right now."
	MsgUpstreamTimeout = "The language model took too long to answer."
	MsgInternal        = "Internal server error"
)

// TranscriptSource fetches the full transcript of a video.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Answerer runs the retrieval pipeline over one transcript.
type Answerer interface {
	Run(ctx context.Context, transcript, question string) (*models.PromptResponse, error)
}

// HistoryRecorder persists answered questions.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *db.QARecord) error
}

type AskRequest struct {
	VideoURL string `json:"video_url"`
	Question string `json:"question"`
}

type AskResponse struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html,omitempty"`
	VideoID    string `json:"video_id"`
	RequestID  string `json:"request_id,omitempty"`
}

// AskHandler answers questions about YouTube videos.
type AskHandler struct {
	transcripts    TranscriptSource
	pipeline       Answerer
	history        HistoryRecorder
	requestTimeout time.Duration
}

// NewAskHandler creates the handler. history may be nil.
func NewAskHandler(transcripts TranscriptSource, pipeline Answerer, history HistoryRecorder) *AskHandler {
	return &AskHandler{
		transcripts: transcripts,
		pipeline:    pipeline,
		history:     history,
	}
}

// WithRequestTimeout bounds the fetch and the pipeline of each request
// together. Zero leaves them bounded only by their own timeouts.
func (h *AskHandler) WithRequestTimeout(d time.Duration) *AskHandler {
	h.requestTimeout = d
	return h
}

// AskVideoHandler handles POST /api/ask-video/
func (h *AskHandler) AskVideoHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, MsgPostOnly) {
		return
	}
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		logger.Debug().Err(err).Msg("Rejected request body")
		WriteError(w, r, http.StatusBadRequest, MsgInvalidJSON)
		return
	}
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	req.Question = strings.TrimSpace(req.Question)
	if req.VideoURL == "" || req.Question == "" {
		WriteError(w, r, http.StatusBadRequest, MsgMissingFields)
		return
	}

	videoID, ok := youtube.ExtractVideoID(req.VideoURL)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, MsgBadVideoURL)
		return
	}
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	logger.Info().
		Str("video_id", videoID).
		Str("question", helper.Truncate(req.Question, 120)).
		Msg("Answering question")

	transcript, err := h.transcripts.Fetch(ctx, videoID)
	if err != nil {
		status, msg := transcriptFailure(err)
		logger.Error().Err(err).Int("status", status).Msg("Transcript fetch failed")
		WriteError(w, r, status, msg)
		return
	}

	res, err := h.pipeline.Run(ctx, transcript, req.Question)
	if err != nil {
		status, msg := pipelineFailure(err)
		logger.Error().Err(err).Int("status", status).Msg("Pipeline failed")
		WriteError(w, r, status, msg)
		return
	}

	answerHTML, err := parser.RenderMarkdown(res.Content)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not render answer markdown")
	}

	requestID := helper.RequestIDFrom(ctx)
	h.record(ctx, &db.QARecord{
		RequestID:      requestID,
		VideoID:        videoID,
		Question:       req.Question,
		Answer:         res.Content,
		ChunkCount:     res.ChunkCount,
		RetrievedCount: len(res.Retrieved),
		DurationMs:     time.Since(started).Milliseconds(),
	})

	WriteJSON(w, http.StatusOK, AskResponse{
		Answer:     res.Content,
		AnswerHTML: answerHTML,
		VideoID:    videoID,
		RequestID:  requestID,
	})
}

// record never fails the request; the answer is already computed.
func (h *AskHandler) record(ctx context.Context, rec *db.QARecord) {
	if h.history == nil {
		return
	}
	if err := h.history.Record(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Could not store Q&A history")
	}
}

func transcriptFailure(err error) (int, string) {
	switch {
	case errors.Is(err, youtube.ErrNoCaptions):
		return http.StatusBadRequest, MsgNoCaptions
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, MsgFetchFailed
	case errors.Is(err, youtube.ErrTransport):
		return http.StatusBadGateway, MsgFetchFailed
	default:
		return http.StatusInternalServerError, MsgFetchFailed
	}
}

func pipelineFailure(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrNoContent):
		return http.StatusBadRequest, MsgNoContent
	case errors.Is(err, rag.ErrUpstream) && rag.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, MsgUpstreamTimeout
	case errors.Is(err, rag.ErrUpstream):
		return http.StatusBadGateway, MsgUpstreamFailed
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}
