package httpapi

import (
	"net/http"
	"time"
)

// NewMux wires every handler. main() wraps the result with the
// middleware chain.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"ok": true, "time": time.Now().Format(time.RFC3339)})
		},
	}))

	// Pipeline board
	bh := BoardHandler{Board: d.Board}
	mux.HandleFunc("/board", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: bh.List,
	}))
	mux.HandleFunc("/board/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: bh.ChangeStage, // expects /board/{id}/stage
	}))

	// Search strings
	sh := SearchHandler{Orchestrator: d.Orchestrator, Peek: d.Peek}
	mux.HandleFunc("/searchstrings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  sh.List,
		http.MethodPost: sh.Submit,
	}))
	mux.HandleFunc("/searchstrings/preview", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.Preview,
	}))
	mux.HandleFunc("/searchstrings/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
			switch {
			case pathHasSuffix(r, "/cancel"):
				sh.Cancel(w, r)
			case pathHasSuffix(r, "/retry"):
				sh.Retry(w, r)
			default:
				WriteError(w, r, http.StatusNotFound, "not_found", "unknown search-string action")
			}
		},
	}))

	// Personas
	ph := PersonaHandler{CreatePersona: d.CreatePersona, Hub: d.Hub}
	mux.HandleFunc("/personas", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ph.Create,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use CfgVal, not a snapshot cfg)
	kh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: kh.SetIMAPPassword,
	}))
	mux.HandleFunc("/secrets/service-key", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: kh.SetServiceKey,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}

func pathHasSuffix(r *http.Request, suffix string) bool {
	return len(r.URL.Path) > len(suffix) && r.URL.Path[len(r.URL.Path)-len(suffix):] == suffix
}
