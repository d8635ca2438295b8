package events

import (
	"encoding/json"
	"time"
)

// Event types published by the engine. The portal's realtime refresh
// keys off these.
const (
	TypeStageChanged     = "stage_changed"
	TypeSearchJobCreated = "searchstring_created"
	TypeSearchJobUpdated = "searchstring_updated"
	TypeSearchJobDone    = "searchstring_terminal"
	TypePersonaCreated   = "persona_created"
	TypePing             = "ping"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
