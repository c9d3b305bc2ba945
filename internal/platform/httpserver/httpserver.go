package httpserver

import (
	"net/http"
	"time"
)

// New builds the licence API server. Job endpoints can legitimately run for
// a while, so only the header read is bounded here; per-request deadlines
// belong to the handlers.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
