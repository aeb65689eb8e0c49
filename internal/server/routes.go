package server

import (
	"net/http"

	"github.com/prashantji77/youtube-video-summarizer/internal/handlers"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handlers.HealthHandler)

	// the extension posts to the trailing-slash path; accept both
	mux.HandleFunc("/api/ask-video/", s.handlers.Ask.AskVideoHandler)
	mux.HandleFunc("/api/ask-video", s.handlers.Ask.AskVideoHandler)

	if s.handlers.History != nil {
		mux.HandleFunc("/api/history/", s.handlers.History.ListHandler)
		mux.HandleFunc("/api/history", s.handlers.History.ListHandler)
	}

	return mux
}
