package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults for this service. Protocol bodies
// are small, so reads are kept tight; the write timeout leaves headroom for
// admin attest/revoke requests that block on ledger finality.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
