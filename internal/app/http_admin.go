package app

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sitecms/api/internal/content"
	"sitecms/api/internal/contentsync"
)

const multipartOverhead = 1 << 20

func (s *HTTPServer) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	section := content.Section(chi.URLParam(r, "section"))
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read body", nil)
		return
	}
	doc, done, err := s.service.UpdateSection(r.Context(), section, raw)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeMutation(w, r, doc, done, nil)
}

func (s *HTTPServer) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	section := content.Section(chi.URLParam(r, "section"))
	done, err := s.service.SaveSection(r.Context(), section)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeMutation(w, r, s.service.Content(), done, nil)
}

func (s *HTTPServer) handleAddGalleryItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string `json:"category"`
		URL      string `json:"url"`
		Caption  string `json:"caption"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, added, done, err := s.service.AddGalleryItem(r.Context(), content.GalleryItem{
		Category: body.Category,
		URL:      body.URL,
		Caption:  body.Caption,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeMutation(w, r, doc, done, map[string]any{"item": added})
}

func (s *HTTPServer) handleRemoveGalleryItem(w http.ResponseWriter, r *http.Request) {
	doc, done, err := s.service.RemoveGalleryItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeMutation(w, r, doc, done, nil)
}

func (s *HTTPServer) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "enabled is required", nil)
		return
	}
	doc, done, err := s.service.SetMaintenance(r.Context(), *body.Enabled)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeMutation(w, r, doc, done, nil)
}

func (s *HTTPServer) handleReload(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Reload(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"content":  doc,
		"fallback": err != nil,
	})
}

func (s *HTTPServer) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Expected multipart form with a file field", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Expected multipart form with a file field", nil)
		return
	}
	defer file.Close()

	url, err := s.service.UploadMedia(r.Context(), header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.service.ListActivity(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":     entry.ID,
			"action": entry.Action,
			"actor":  entry.Actor,
			"at":     entry.At.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": items})
}

func (s *HTTPServer) handleListVersions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	versions, err := s.service.ListVersions(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *HTTPServer) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := s.service.GetVersion(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "body": body})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: request failed: %v", err)
	}
	writeError(w, status, code, message, details)
}

// writeMutation reports the optimistic result. With ?wait=1 it also waits for
// the persist attempt and reports how it ended; otherwise persist is
// "pending".
func writeMutation(w http.ResponseWriter, r *http.Request, doc content.WebsiteContent, done <-chan contentsync.Outcome, extra map[string]any) {
	response := map[string]any{
		"content": doc,
		"persist": map[string]any{"status": "pending"},
	}
	for key, value := range extra {
		response[key] = value
	}

	if wait := r.URL.Query().Get("wait"); done != nil && (wait == "1" || wait == "true") {
		select {
		case outcome, ok := <-done:
			if ok {
				response["persist"] = outcomePayload(outcome)
			}
		case <-r.Context().Done():
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func outcomePayload(outcome contentsync.Outcome) map[string]any {
	payload := map[string]any{
		"status":   string(outcome.Status),
		"action":   outcome.Action,
		"archived": outcome.Archived,
	}
	if outcome.Actor != "" {
		payload["actor"] = outcome.Actor
	}
	if !outcome.LastUpdated.IsZero() {
		payload["lastUpdated"] = outcome.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	if outcome.Err != nil {
		payload["error"] = outcome.Err.Error()
	}
	if outcome.AuditErr != nil {
		payload["auditError"] = outcome.AuditErr.Error()
	}
	return payload
}
