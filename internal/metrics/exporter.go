// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/hostblock/internal/errors"
	"grimm.is/hostblock/internal/logging"
)

// ExportConfig configures the HTTP exporter.
type ExportConfig struct {
	Listen string
	Path   string
}

// Exporter serves the collector's registry over HTTP.
type Exporter struct {
	config ExportConfig
	router *mux.Router
	logger *logging.Logger

	server   *http.Server
	listener net.Listener
}

// NewExporter builds the router. Nothing listens until Start.
func NewExporter(c *Collector, config ExportConfig, logger *logging.Logger) *Exporter {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = logging.Default()
	}

	e := &Exporter{
		config: config,
		router: mux.NewRouter(),
		logger: logger.WithComponent("metrics"),
	}
	e.router.Handle(config.Path, promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	e.router.HandleFunc("/healthz", e.handleHealth).Methods(http.MethodGet)
	return e
}

// Handler returns the exporter's router.
func (e *Exporter) Handler() http.Handler {
	return e.router
}

func (e *Exporter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// Start binds the listen address and serves until ctx is done.
func (e *Exporter) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.config.Listen)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindSetup, "failed to start metrics listener"), "listen", e.config.Listen)
	}
	e.listener = ln
	e.server = &http.Server{
		Handler:           e.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		e.logger.Info("metrics listening", "addr", ln.Addr().String(), "path", e.config.Path)
		if err := e.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			e.logger.WithError(err).Error("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = e.server.Shutdown(shutdownCtx)
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (e *Exporter) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}
