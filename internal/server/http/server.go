// Package httpserver exposes the Parley restore API over HTTP.
package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	exports  service.ExportService
	restore  service.RestoreService
	importer service.ImportService
	signKey  []byte
	log      *zap.Logger
}

// New constructs an HTTP server with injected services.
func New(
	exports service.ExportService,
	restore service.RestoreService,
	importer service.ImportService,
	signKey []byte,
	log *zap.Logger,
) *Server {
	return &Server{exports: exports, restore: restore, importer: importer, signKey: signKey, log: log}
}

// Router builds the route tree. Verification is deliberately public:
// anyone holding a manifest and signature may verify it.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(s.recoverPanics)
	r.Use(s.logRequests)

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/exports/verify", s.handleVerifyExport)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/api/v1/exports/log", s.handleLogExport)
		r.Post("/api/v1/servers/{serverID}/restore", s.handleRestoreServer)
		r.Post("/api/v1/channels/{channelID}/import-messages", s.handleImportMessages)
	})

	return r
}
