package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashantji77/youtube-video-summarizer/internal/db"
	"github.com/prashantji77/youtube-video-summarizer/internal/helper"
)

func executeHistory(h *HistoryHandler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(helper.WithRequestID(req.Context(), "req-42"))
	w := httptest.NewRecorder()
	h.ListHandler(w, req)
	return w
}

func TestListHandler_ReturnsRecords(t *testing.T) {
	history := &mockHistory{records: []db.QARecord{
		{ID: 2, VideoID: "dQw4w9WgXcQ", Question: "second", Answer: "b"},
		{ID: 1, VideoID: "dQw4w9WgXcQ", Question: "first", Answer: "a"},
	}}
	h := NewHistoryHandler(history)

	w := executeHistory(h, http.MethodGet, "/api/history/?video_id=dQw4w9WgXcQ&limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "second", resp.Records[0].Question)
	assert.Equal(t, "dQw4w9WgXcQ", history.lastVideo)
	assert.Equal(t, 5, history.lastLimit)
}

func TestListHandler_AcceptsVideoURL(t *testing.T) {
	history := &mockHistory{}
	h := NewHistoryHandler(history)

	w := executeHistory(h, http.MethodGet, "/api/history/?video_id=https%3A%2F%2Fyoutu.be%2FdQw4w9WgXcQ")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dQw4w9WgXcQ", history.lastVideo)
	assert.Equal(t, db.DefaultHistoryLimit, history.lastLimit)
}

func TestListHandler_ClampsLimit(t *testing.T) {
	history := &mockHistory{}
	h := NewHistoryHandler(history)

	executeHistory(h, http.MethodGet, "/api/history/?limit=100000")
	assert.Equal(t, db.MaxHistoryLimit, history.lastLimit)
	assert.Empty(t, history.lastVideo)
}

func TestListHandler_Errors(t *testing.T) {
	h := NewHistoryHandler(&mockHistory{})

	w := executeHistory(h, http.MethodPost, "/api/history/")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, MsgGetOnly, decodeError(t, w))

	w = executeHistory(h, http.MethodGet, "/api/history/?limit=ten")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = NewHistoryHandler(&mockHistory{recentErr: errors.New("db down")})
	w = executeHistory(h, http.MethodGet, "/api/history/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MsgInternal, decodeError(t, w))
}
