package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"talentpipe-engine/internal/domain"
	"talentpipe-engine/internal/searchstring"
)

// PDF uploads are capped well below typical role profiles.
const maxPDFBytes = 10 << 20

type SearchHandler struct {
	Orchestrator *searchstring.Orchestrator
	Peek         *searchstring.PagePeek
}

func (h SearchHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}
	jobs, err := h.Orchestrator.List(r.Context(), userID)
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "list_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}

type submitReq struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// Submit handles POST /searchstrings. Text and website submissions are
// JSON; PDF submissions are multipart/form-data with a "pdf" file part
// plus "type" and optional "company_id" fields.
func (h SearchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")

	var (
		req submitReq
		p   searchstring.Payload
	)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxPDFBytes); err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_form", err.Error())
			return
		}
		req.Type = r.FormValue("type")
		req.Source = string(domain.SourcePDF)
		req.CompanyID = r.FormValue("company_id")

		file, header, err := r.FormFile("pdf")
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "missing_pdf", "a pdf file part is required")
			return
		}
		defer file.Close()
		blob, err := io.ReadAll(io.LimitReader(file, maxPDFBytes))
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "read_pdf", err.Error())
			return
		}
		p.PDF = blob
		p.PDFName = header.Filename
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		p.Text = req.Text
		p.URL = req.URL
	}

	job, err := h.Orchestrator.Submit(r.Context(), userID, req.CompanyID,
		domain.JobType(req.Type), domain.JobSource(req.Source), p)
	if err != nil {
		if job.ID == "" {
			// rejected before anything was persisted
			WriteError(w, r, http.StatusBadRequest, "invalid_submission", err.Error())
			return
		}
		// job exists but processing failed; return both
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"job": job, "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"job": job})
}

// Cancel handles POST /searchstrings/{id}/cancel.
func (h SearchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path, "/cancel")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_path", "expected /searchstrings/{id}/cancel")
		return
	}
	if err := h.Orchestrator.Cancel(r.Context(), id); err != nil {
		WriteError(w, r, http.StatusBadGateway, "cancel_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id})
}

// Retry handles POST /searchstrings/{id}/retry.
func (h SearchHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path, "/retry")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_path", "expected /searchstrings/{id}/retry")
		return
	}
	job, err := h.Orchestrator.Retry(r.Context(), id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"job": job, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"job": job})
}

type previewReq struct {
	Source  string `json:"source"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	PDFName string `json:"pdf_name,omitempty"`
	PDFSize int    `json:"pdf_size,omitempty"`
}

// Preview handles POST /searchstrings/preview. Advisory only; never
// touches job state.
func (h SearchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	p := searchstring.Payload{
		Text:    req.Text,
		URL:     req.URL,
		PDFName: req.PDFName,
	}
	if req.PDFSize > 0 {
		size := req.PDFSize
		if size > maxPDFBytes {
			size = maxPDFBytes
		}
		p.PDF = make([]byte, size)
	}
	text := searchstring.Preview(r.Context(), domain.JobSource(req.Source), p, h.Peek)
	writeJSON(w, map[string]any{"preview": text})
}

func jobIDFromPath(path, suffix string) (string, bool) {
	rest := strings.TrimPrefix(path, "/searchstrings/")
	id := strings.TrimSuffix(rest, suffix)
	if id == "" || id == rest || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
