package commands

import (
	"net/http"
	"time"
)

type Globals struct {
	Dev     bool
	Version string
}

// configureHTTPServer applies the shared timeout profile. Migration batches
// and sync-domains calls fan out to the directory service one member at a
// time, so the write timeout is generous relative to a plain CRUD surface.
func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
