package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. There is
// deliberately no ReadTimeout: document and selfie uploads are multipart
// bodies that can take a while on slow links, so only the header read is
// bounded here and the handler chain bounds the rest.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
