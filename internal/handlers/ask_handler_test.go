package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashantji77/youtube-video-summarizer/internal/config"
	"github.com/prashantji77/youtube-video-summarizer/internal/db"
	"github.com/prashantji77/youtube-video-summarizer/internal/helper"
	"github.com/prashantji77/youtube-video-summarizer/internal/models"
	"github.com/prashantji77/youtube-video-summarizer/internal/rag"
	"github.com/prashantji77/youtube-video-summarizer/internal/youtube"
)

const videoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// mockTranscripts implements TranscriptSource for testing
type mockTranscripts struct {
	fetchFunc func(ctx context.Context, videoID string) (string, error)
	calls     []string
}

func (m *mockTranscripts) Fetch(ctx context.Context, videoID string) (string, error) {
	m.calls = append(m.calls, videoID)
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, videoID)
	}
	return "The cat sat on the mat.", nil
}

// mockAnswerer implements Answerer for testing
type mockAnswerer struct {
	runFunc func(ctx context.Context, transcript, question string) (*models.PromptResponse, error)
	calls   int
}

func (m *mockAnswerer) Run(ctx context.Context, transcript, question string) (*models.PromptResponse, error) {
	m.calls++
	if m.runFunc != nil {
		return m.runFunc(ctx, transcript, question)
	}
	return &models.PromptResponse{
		Query:      question,
		Content:    "The **cat** sat.",
		ChunkCount: 1,
		Retrieved:  []models.ScoredChunk{{Chunk: models.Chunk{ChunkID: 0, Content: transcript}}},
	}, nil
}

// mockHistory implements HistoryRecorder and HistoryLister for testing
type mockHistory struct {
	records   []db.QARecord
	recordErr error
	recentErr error
	lastVideo string
	lastLimit int
}

func (m *mockHistory) Record(_ context.Context, rec *db.QARecord) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockHistory) Recent(_ context.Context, videoID string, limit int) ([]db.QARecord, error) {
	m.lastVideo, m.lastLimit = videoID, limit
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.records, nil
}

func executeAsk(h *AskHandler, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/ask-video/", strings.NewReader(body))
	req = req.WithContext(helper.WithRequestID(req.Context(), "req-42"))
	w := httptest.NewRecorder()
	h.AskVideoHandler(w, req)
	return w
}

func askBody(url, question string) string {
	b, _ := json.Marshal(AskRequest{VideoURL: url, Question: question})
	return string(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "req-42", resp.RequestID)
	return resp.Error
}

func TestAskVideoHandler_Success(t *testing.T) {
	transcripts := &mockTranscripts{}
	answerer := &mockAnswerer{}
	history := &mockHistory{}
	h := NewAskHandler(transcripts, answerer, history)

	w := executeAsk(h, http.MethodPost, askBody(videoURL, "  what sat?  "))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp AskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "The **cat** sat.", resp.Answer)
	assert.Equal(t, "<p>The <strong>cat</strong> sat.</p>", resp.AnswerHTML)
	assert.Equal(t, "dQw4w9WgXcQ", resp.VideoID)
	assert.Equal(t, "req-42", resp.RequestID)

	assert.Equal(t, []string{"dQw4w9WgXcQ"}, transcripts.calls)
	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, "what sat?", rec.Question)
	assert.Equal(t, "req-42", rec.RequestID)
	assert.Equal(t, "dQw4w9WgXcQ", rec.VideoID)
	assert.Equal(t, 1, rec.ChunkCount)
	assert.Equal(t, 1, rec.RetrievedCount)
}

func TestAskVideoHandler_PassesTranscriptAndQuestion(t *testing.T) {
	var gotTranscript, gotQuestion string
	answerer := &mockAnswerer{runFunc: func(_ context.Context, transcript, question string) (*models.PromptResponse, error) {
		gotTranscript, gotQuestion = transcript, question
		return &models.PromptResponse{Content: "ok"}, nil
	}}
	transcripts := &mockTranscripts{fetchFunc: func(context.Context, string) (string, error) {
		return "full transcript text", nil
	}}
	h := NewAskHandler(transcripts, answerer, nil)

	w := executeAsk(h, http.MethodPost, askBody("https://youtu.be/dQw4w9WgXcQ", "why?"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "full transcript text", gotTranscript)
	assert.Equal(t, "why?", gotQuestion)
}

func TestAskVideoHandler_RequestValidation(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantError  string
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed, MsgPostOnly},
		{"put", http.MethodPut, askBody(videoURL, "q"), http.StatusMethodNotAllowed, MsgPostOnly},
		{"empty body", http.MethodPost, "", http.StatusBadRequest, MsgInvalidJSON},
		{"broken json", http.MethodPost, `{"video_url":`, http.StatusBadRequest, MsgInvalidJSON},
		{"missing question", http.MethodPost, askBody(videoURL, ""), http.StatusBadRequest, MsgMissingFields},
		{"blank question", http.MethodPost, askBody(videoURL, "   "), http.StatusBadRequest, MsgMissingFields},
		{"missing url", http.MethodPost, askBody("", "what?"), http.StatusBadRequest, MsgMissingFields},
		{"not youtube", http.MethodPost, askBody("https://vimeo.com/12345", "what?"), http.StatusBadRequest, MsgBadVideoURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcripts := &mockTranscripts{}
			answerer := &mockAnswerer{}
			h := NewAskHandler(transcripts, answerer, nil)

			w := executeAsk(h, tt.method, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w))
			assert.Empty(t, transcripts.calls)
			assert.Zero(t, answerer.calls)
		})
	}
}

func TestAskVideoHandler_TranscriptFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"no captions", fmt.Errorf("%w: no track in [en]", youtube.ErrNoCaptions), http.StatusBadRequest, MsgNoCaptions},
		{"transport", fmt.Errorf("%w: dial tcp: refused", youtube.ErrTransport), http.StatusBadGateway, MsgFetchFailed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, MsgFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcripts := &mockTranscripts{fetchFunc: func(context.Context, string) (string, error) {
				return "", tt.err
			}}
			answerer := &mockAnswerer{}
			history := &mockHistory{}
			h := NewAskHandler(transcripts, answerer, history)

			w := executeAsk(h, http.MethodPost, askBody(videoURL, "what?"))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w))
			assert.Zero(t, answerer.calls)
			assert.Empty(t, history.records)
		})
	}
}

// pipelineErr produces real pipeline errors by running a pipeline whose
// collaborators fail in the requested way.
func pipelineErr(t *testing.T, transcript string, embedErr error) error {
	t.Helper()
	cfg := config.Default()
	cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap = 30, 5
	p, err := rag.NewPipeline(failingEmbedder{err: embedErr}, noGenerator{}, cfg)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), transcript, "q")
	require.Error(t, err)
	return err
}

func TestAskVideoHandler_PipelineFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"no content", pipelineErr(t, "   ", nil), http.StatusBadRequest, MsgNoContent},
		{"upstream", pipelineErr(t, "some words", errors.New("connection refused")), http.StatusBadGateway, MsgUpstreamFailed},
		{"timeout", pipelineErr(t, "some words", context.DeadlineExceeded), http.StatusGatewayTimeout, MsgUpstreamTimeout},
		{"configuration", rag.ErrConfiguration, http.StatusInternalServerError, MsgInternal},
		{"other", errors.New("boom"), http.StatusInternalServerError, MsgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := &mockAnswerer{runFunc: func(context.Context, string, string) (*models.PromptResponse, error) {
				return nil, tt.err
			}}
			history := &mockHistory{}
			h := NewAskHandler(&mockTranscripts{}, answerer, history)

			w := executeAsk(h, http.MethodPost, askBody(videoURL, "what?"))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w))
			assert.Empty(t, history.records)
		})
	}
}

func TestAskVideoHandler_RequestTimeout(t *testing.T) {
	tests := []struct {
		name        string
		transcripts *mockTranscripts
		answerer    *mockAnswerer
		wantError   string
	}{
		{
			name: "transcript fetch",
			transcripts: &mockTranscripts{fetchFunc: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", fmt.Errorf("%w: %w", youtube.ErrTransport, ctx.Err())
			}},
			answerer:  &mockAnswerer{},
			wantError: MsgFetchFailed,
		},
		{
			name:        "pipeline",
			transcripts: &mockTranscripts{},
			answerer: &mockAnswerer{runFunc: func(ctx context.Context, _, _ string) (*models.PromptResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}},
			wantError: MsgUpstreamTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &mockHistory{}
			h := NewAskHandler(tt.transcripts, tt.answerer, history).WithRequestTimeout(50 * time.Millisecond)

			start := time.Now()
			w := executeAsk(h, http.MethodPost, askBody(videoURL, "what?"))
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Equal(t, http.StatusGatewayTimeout, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w))
			assert.Empty(t, history.records)
		})
	}
}

func TestAskVideoHandler_NoRequestTimeoutByDefault(t *testing.T) {
	answerer := &mockAnswerer{runFunc: func(ctx context.Context, _, question string) (*models.PromptResponse, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return &models.PromptResponse{Query: question, Content: "ok"}, nil
	}}
	h := NewAskHandler(&mockTranscripts{}, answerer, nil)

	w := executeAsk(h, http.MethodPost, askBody(videoURL, "what?"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAskVideoHandler_HistoryFailureDoesNotFailRequest(t *testing.T) {
	history := &mockHistory{recordErr: errors.New("db down")}
	h := NewAskHandler(&mockTranscripts{}, &mockAnswerer{}, history)

	w := executeAsk(h, http.MethodPost, askBody(videoURL, "what?"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
