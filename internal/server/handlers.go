package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hyperjump/policyqa/internal/config"
	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/extract"
	"github.com/hyperjump/policyqa/internal/indexer"
	"github.com/hyperjump/policyqa/internal/models"
	"go.uber.org/zap"
)

const dbUnavailable = "Database not available"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	status := "disconnected"
	if s.store.Connected() {
		status = "connected"
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "PDF Policy Query System",
		"status":  "running",
		"store":   status,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.store.Connected() {
		s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		return
	}
	files, err := s.readUploads(r, "files")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("upload request", zap.Int("files", len(files)))

	results, err := s.indexer.IngestBatch(r.Context(), files)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		Message:        fmt.Sprintf("Successfully processed %d document(s)", len(results)),
		Documents:      results,
		TotalDocuments: len(results),
	})
}

func (s *Server) handleUploadSingle(w http.ResponseWriter, r *http.Request) {
	if !s.store.Connected() {
		s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		return
	}
	files, err := s.readUploads(r, "file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(files) != 1 {
		s.respondError(w, http.StatusBadRequest, "Exactly 1 PDF file required")
		return
	}
	res, err := s.indexer.IngestFile(r.Context(), files[0])
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SingleUploadResponse{
		Message:       fmt.Sprintf("Successfully processed %s", res.Filename),
		ChunksCreated: res.ChunksCreated,
		TextLength:    res.TextLength,
	})
}

type receivedFile struct {
	Index       int    `json:"index"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// handleTestUpload echoes what the multipart parser received without ingesting.
func (s *Server) handleTestUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	received := make([]receivedFile, 0)
	for i, fh := range r.MultipartForm.File["files"] {
		received = append(received, receivedFile{
			Index:       i,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"received_files": received})
}

// readUploads reads every file part under field. A request without the field yields no files.
func (s *Server) readUploads(r *http.Request, field string) ([]models.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, errors.New("multipart/form-data body required")
		}
		return nil, errors.New("invalid multipart form")
	}
	headers := r.MultipartForm.File[field]
	uploads := make([]models.Upload, 0, len(headers))
	for _, fh := range headers {
		content, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", fh.Filename)
		}
		uploads = append(uploads, models.Upload{Filename: fh.Filename, Content: content})
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// respondIngestError maps ingestion failures to status codes and client messages.
func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		s.respondError(w, http.StatusBadRequest, verr.Message)
		return
	}
	if errors.Is(err, docstore.ErrStoreUnavailable) {
		s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		return
	}
	var ferr *indexer.FileError
	if errors.As(err, &ferr) {
		switch {
		case errors.Is(err, extract.ErrNoText):
			s.respondError(w, http.StatusBadRequest, "No text found in PDF: "+ferr.Filename)
			return
		case errors.Is(err, extract.ErrUnreadablePDF):
			s.respondError(w, http.StatusBadRequest, "Could not read PDF: "+ferr.Filename)
			return
		case errors.Is(err, indexer.ErrEmptyDocument):
			s.respondError(w, http.StatusBadRequest, "Could not create chunks for: "+ferr.Filename)
			return
		case errors.Is(err, indexer.ErrNothingStored):
			s.respondError(w, http.StatusInternalServerError, "Failed to store any chunks for: "+ferr.Filename)
			return
		}
	}
	s.logger.Error("upload failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, "Processing error: "+err.Error())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.store.Connected() {
		s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		return
	}
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query))
	res, err := s.engine.Query(r.Context(), req)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			s.respondError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, docstore.ErrStoreUnavailable):
			s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		default:
			s.logger.Error("query failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "Query failed: "+err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if !s.store.Connected() {
		s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		return
	}
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve document list")
		return
	}
	if sources == nil {
		sources = []string{}
	}
	s.respondJSON(w, http.StatusOK, models.DocumentList{Documents: sources, TotalCount: len(sources)})
}

func (s *Server) handleClearDocuments(w http.ResponseWriter, r *http.Request) {
	if !s.store.Connected() {
		s.respondError(w, http.StatusInternalServerError, dbUnavailable)
		return
	}
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("clear documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to clear documents")
		return
	}
	s.logger.Info("all documents cleared")
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "All documents cleared successfully"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
