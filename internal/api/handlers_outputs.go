package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/embedprep/internal/pipeline"
	"github.com/dgallion1/embedprep/internal/storage"
)

var hashPrefixRe = regexp.MustCompile(`^[0-9a-f]{1,64}$`)

// handleListOutputs lists stored job outputs, optionally under a prefix.
func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job pipeline unavailable", http.StatusServiceUnavailable)
		return
	}
	prefix := r.URL.Query().Get("prefix")

	objects, err := s.orchestrator.Bucket().List(r.Context(), prefix)
	if err != nil {
		jsonError(w, "failed to list outputs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if objects == nil {
		objects = []storage.ObjectInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"outputs": objects})
}

// handleDeleteOutput removes one job output so the document can be
// regenerated without force.
func (s *Server) handleDeleteOutput(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job pipeline unavailable", http.StatusServiceUnavailable)
		return
	}
	hash := chi.URLParam(r, "hash")
	if !hashPrefixRe.MatchString(hash) {
		jsonError(w, "hash must be hex", http.StatusBadRequest)
		return
	}
	kind, err := pipeline.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	object := pipeline.OutputObject(hash, kind)
	if err := s.orchestrator.Bucket().Delete(r.Context(), object); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			jsonError(w, "output not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to delete output: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": object})
}
