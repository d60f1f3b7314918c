package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"autofc2/internal/fc2log"
)

const shutdownGrace = 5 * time.Second

// ServerConfig is the supervisor config's "autofc2.metrics" block.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
}

// Serve binds host:port and serves r's exposition text at path until
// ctx is cancelled. A nil cfg stalls forever without binding, matching
// autofc2.py's metrics_webserver behaviour when the config omits the
// "metrics" block.
func Serve(ctx context.Context, cfg *ServerConfig, r *Registry, logger fc2log.Logger) error {
	if cfg == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(r.Render()))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.Logf("metrics available at http://%s%s", addr, cfg.Path)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}
