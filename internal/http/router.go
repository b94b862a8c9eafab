package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ask", h.Ask).Methods(http.MethodPost)
	r.HandleFunc("/ask/stream", h.AskStream).Methods(http.MethodPost)
	r.HandleFunc("/ingest", h.Ingest).Methods(http.MethodPost)

	return r
}
