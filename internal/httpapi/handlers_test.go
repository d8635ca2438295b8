package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentpipe-engine/internal/cache"
	"talentpipe-engine/internal/config"
	"talentpipe-engine/internal/events"
	"talentpipe-engine/internal/pipeline"
	"talentpipe-engine/internal/remote"
	"talentpipe-engine/internal/searchstring"
)

// stubBackend serves canned collections and accepts all writes.
type stubBackend struct {
	rows map[string]any
}

func (s *stubBackend) Select(_ context.Context, collection string, q remote.Query, dest any) error {
	v, ok := s.rows[collection]
	if !ok {
		v = []any{}
	}
	b, _ := json.Marshal(v)
	return json.Unmarshal(b, dest)
}

func (s *stubBackend) Insert(_ context.Context, _ string, record any, dest any) error {
	if dest != nil {
		b, _ := json.Marshal(record)
		return json.Unmarshal(b, dest)
	}
	return nil
}

func (s *stubBackend) Update(context.Context, string, string, map[string]any) error { return nil }

func (s *stubBackend) Invoke(_ context.Context, _ string, _ any, dest any) error {
	if dest != nil {
		b, _ := json.Marshal(map[string]any{"generated_string": `"Go" AND "Engineer"`})
		return json.Unmarshal(b, dest)
	}
	return nil
}

func (s *stubBackend) UploadBlob(_ context.Context, _, path string, _ []byte, _ string) (string, error) {
	return path, nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	backend := &stubBackend{rows: map[string]any{
		"pipeline_projects": []map[string]any{
			{"id": "p1", "company_id": "c1", "name": "Backend Lead Search",
				"status": "planning", "updated_at": time.Now().UTC().Format(time.RFC3339)},
		},
		"companies": []map[string]any{
			{"id": "c1", "name": "Acme GmbH"},
		},
	}}

	hub := events.NewHub()
	board := pipeline.NewBoard(backend, cache.New(time.Minute), hub, nil)
	orch := searchstring.NewOrchestrator(backend, "search-pdfs", hub, nil)

	var cfgVal atomic.Value
	var cfg config.Config
	cfg.App.Port = 4810
	cfgVal.Store(cfg)

	mux := NewMux(Deps{
		Board:        board,
		Orchestrator: orch,
		Hub:          hub,
		CfgVal:       &cfgVal,
		UserCfgPath:  "config.yml",
		LoadCfg:      func() (config.Config, error) { return cfg, nil },
	})
	srv := httptest.NewServer(Chain(mux, RequestID, Recover))
	t.Cleanup(srv.Close)
	return srv
}

func TestBoardList(t *testing.T) {
	srv := testServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/board", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Role", "admin")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Projects []struct {
			ID       string `json:"id"`
			Stage    string `json:"stage"`
			Progress int    `json:"progress"`
			Company  string `json:"company_name"`
		} `json:"projects"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Projects, 1)
	assert.Equal(t, "project_start", body.Projects[0].Stage)
	assert.Equal(t, 10, body.Projects[0].Progress)
	assert.Equal(t, "Acme GmbH", body.Projects[0].Company)
}

func TestChangeStageEndpoint(t *testing.T) {
	srv := testServer(t)

	// board must be loaded before a stage change
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/board", nil)
	req.Header.Set("X-User-Role", "admin")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	res, err = http.Post(srv.URL+"/board/p1/stage", "application/json",
		strings.NewReader(`{"stage":"candidates_found"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Post(srv.URL+"/board/p1/stage", "application/json",
		strings.NewReader(`{"stage":"warp_speed"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestSubmitSearchString(t *testing.T) {
	srv := testServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/searchstrings",
		strings.NewReader(`{"type":"recruiting","source":"text","text":"Senior Go Engineer"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var body struct {
		Job struct {
			Status          string `json:"status"`
			GeneratedString string `json:"generated_string"`
		} `json:"job"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "completed", body.Job.Status)
	assert.NotEmpty(t, body.Job.GeneratedString)
}

func TestSubmitSearchString_Invalid(t *testing.T) {
	srv := testServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/searchstrings",
		strings.NewReader(`{"type":"recruiting","source":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPreviewEndpoint(t *testing.T) {
	srv := testServer(t)

	res, err := http.Post(srv.URL+"/searchstrings/preview", "application/json",
		strings.NewReader(`{"source":"website","url":"not a url"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Preview string `json:"preview"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body.Preview, "Enter a full URL")
}

func TestPreviewEndpoint_CapsClaimedPDFSize(t *testing.T) {
	srv := testServer(t)

	// a preview request claiming a terabyte must not allocate one
	res, err := http.Post(srv.URL+"/searchstrings/preview", "application/json",
		strings.NewReader(`{"source":"pdf","pdf_name":"profile.pdf","pdf_size":1099511627776}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Preview string `json:"preview"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body.Preview, "10.0 MB")
}

func TestPersonaEndpoint_DisabledWithoutEmail(t *testing.T) {
	srv := testServer(t)

	res, err := http.Post(srv.URL+"/personas", "application/json", strings.NewReader(`{"name":"Formal"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t)

	res, err := http.Post(srv.URL+"/board", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
