package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"talentpipe-engine/internal/domain"
	"talentpipe-engine/internal/pipeline"
)

type BoardHandler struct {
	Board *pipeline.Board
}

// List handles GET /board?search=&company_id=. Viewer identity comes
// from the X-User-* headers the portal forwards.
func (h BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := viewerScope(
		r.Header.Get("X-User-ID"),
		r.Header.Get("X-Company-ID"),
		r.Header.Get("X-User-Role"),
	)

	if _, err := h.Board.Load(r.Context(), scope); err != nil {
		WriteError(w, r, http.StatusBadGateway, "board_load_failed", err.Error())
		return
	}

	q := r.URL.Query()
	items := h.Board.Filter(q.Get("search"), q.Get("company_id"))
	writeJSON(w, map[string]any{"projects": items})
}

type changeStageReq struct {
	Stage string `json:"stage"`
}

// ChangeStage handles POST /board/{id}/stage.
func (h BoardHandler) ChangeStage(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/board/")
	id := strings.TrimSuffix(rest, "/stage")
	if id == "" || id == rest {
		WriteError(w, r, http.StatusBadRequest, "bad_path", "expected /board/{id}/stage")
		return
	}

	var req changeStageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := h.Board.ChangeStage(r.Context(), id, domain.Stage(req.Stage)); err != nil {
		WriteError(w, r, http.StatusConflict, "stage_change_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id, "stage": req.Stage})
}
