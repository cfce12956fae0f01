package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/embedprep/internal/convert"
	"github.com/dgallion1/embedprep/internal/pipeline"
)

// supportedUpload accepts convertible documents plus chunk files.
func supportedUpload(filename string) bool {
	return convert.IsSupportedExtension(filename) || strings.EqualFold(filepath.Ext(filename), ".jsonl")
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job pipeline unavailable", http.StatusServiceUnavailable)
		return
	}
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind, err := pipeline.ParseKind(r.FormValue("kind"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !supportedUpload(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	// Read file data.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	force := r.FormValue("force") == "true"
	job := pipeline.NewJob(filename, kind, data, force)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"kind":     job.Kind,
		"status":   pipeline.StatusQueued,
		"poll_url": pollURL(job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job pipeline unavailable", http.StatusServiceUnavailable)
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleBatchJobs(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job pipeline unavailable", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind, err := pipeline.ParseKind(r.FormValue("kind"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	force := r.FormValue("force") == "true"

	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files"]
	}
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		data, errMsg := s.readUpload(fh, filename)
		if errMsg != "" {
			results = append(results, map[string]any{"filename": filename, "error": errMsg})
			continue
		}

		job := pipeline.NewJob(filename, kind, data, force)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": pollURL(job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

// readUpload returns the file bytes, or a client-facing error message.
func (s *Server) readUpload(fh *multipart.FileHeader, filename string) ([]byte, string) {
	if !supportedUpload(filename) {
		return nil, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "failed to open file"
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, "file too large or read error"
	}
	return data, ""
}

func pollURL(jobID string) string {
	return fmt.Sprintf("/api/jobs/%s/status", jobID)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
