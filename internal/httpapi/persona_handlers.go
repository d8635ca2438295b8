package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"talentpipe-engine/internal/emailstyle"
	"talentpipe-engine/internal/events"
)

type PersonaHandler struct {
	CreatePersona func(ctx context.Context, userID, name string) (emailstyle.Persona, error)
	Hub           *events.Hub
}

type createPersonaReq struct {
	Name string `json:"name"`
}

// Create handles POST /personas: samples the viewer's sent mail and
// builds a writing-style persona from it.
func (h PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.CreatePersona == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "email_disabled", "email sampling is disabled in config")
		return
	}

	var req createPersonaReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	persona, err := h.CreatePersona(r.Context(), r.Header.Get("X-User-ID"), req.Name)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "persona_failed", err.Error())
		return
	}
	if h.Hub != nil {
		h.Hub.Emit(events.TypePersonaCreated, map[string]any{"id": persona.ID, "name": persona.Name})
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"persona": persona})
}
