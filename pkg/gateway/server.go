package gateway

import (
	"net/http"
	"time"
)

// NewServer builds the gateway's http.Server: every path except the
// GET /healthz probe is handled by the same Gateway.ServeHTTP dispatcher,
// since routing is by identity header, not by path.
func NewServer(addr string, gw *Gateway) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", gw)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
