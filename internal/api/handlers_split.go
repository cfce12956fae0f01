package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgallion1/embedprep/internal/convert"
	"github.com/dgallion1/embedprep/internal/doctree"
)

// readDocument returns the Markdown to split: either the raw request body or
// a multipart "file" field, converted when it is not Markdown already.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (string, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", http.StatusRequestEntityTooLarge, fmt.Errorf("failed to read body: %w", err)
		}
		return string(data), 0, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	conv, err := convert.ForFile(filename, convert.WithPdftotext(s.cfg.PDFFallbackPdftotext))
	if err != nil {
		return "", http.StatusBadRequest, err
	}
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", http.StatusInternalServerError, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	text, err := conv.Convert(strings.NewReader(string(data)), filename)
	if err != nil {
		return "", http.StatusUnprocessableEntity, err
	}
	return text, 0, nil
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	text, code, err := s.readDocument(w, r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	sections := s.splitter.SplitText(text)
	if r.URL.Query().Get("normalize") == "true" {
		s.norm().All(sections)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sections": sections})
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	text, code, err := s.readDocument(w, r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	outline := s.splitter.Outline(text)
	children := outline.Children
	if children == nil {
		children = []*doctree.OutlineNode{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"outline": children})
}
