// Package server provides the HTTP API for uploading and querying policy PDFs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/policyqa/internal/config"
	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/models"
	"go.uber.org/zap"
)

const maxUploadMemory = 32 << 20

// Ingester stores uploaded PDFs.
type Ingester interface {
	IngestBatch(ctx context.Context, files []models.Upload) ([]*models.IngestionResult, error)
	IngestFile(ctx context.Context, f models.Upload) (*models.IngestionResult, error)
}

// QueryEngine answers questions about the stored documents.
type QueryEngine interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error)
}

// WatchService manages the inbox directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the policy query API.
type Server struct {
	engine     QueryEngine
	indexer    Ingester
	store      docstore.Backend
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil, in
// which case the watch endpoints answer 501. When configPath is set, changes to
// the watched directories are persisted to it.
func NewServer(
	engine QueryEngine,
	idx Ingester,
	store docstore.Backend,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		indexer:    idx,
		store:      store,
		config:     cfg,
		configPath: configPath,
		watch:      watch,
		logger:     logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.config.Server.CORSOrigins))
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Post("/upload-single", s.handleUploadSingle)
	r.Post("/test-upload", s.handleTestUpload)
	r.Post("/query", s.handleQuery)
	r.Get("/documents", s.handleListDocuments)
	r.Delete("/documents", s.handleClearDocuments)

	r.Route("/watch/directories", func(r chi.Router) {
		r.Get("/", s.handleWatchDirectoriesList)
		r.Post("/", s.handleWatchDirectoriesAdd)
		r.Delete("/", s.handleWatchDirectoriesRemove)
	})
	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.RequestTimeout > 0 {
		return s.config.Server.RequestTimeout
	}
	return 120 * time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
