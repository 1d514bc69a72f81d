package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server for the mapping API. The read timeout is
// generous because migration batch posts can carry thousands of mappings in
// one body; idle keep-alives are bounded so reconciliation clients cannot pin
// connections between sync runs.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
