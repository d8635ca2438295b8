package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", 100, 100)
}

func TestSelect_FilterAndOrder(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		w.Write([]byte(`[{"id":"p1"},{"id":"p2"}]`))
	})

	var rows []struct {
		ID string `json:"id"`
	}
	err := c.Select(context.Background(), "projects", Query{
		Filter: map[string]string{"company_id": "c1"},
		Order:  "updated_at.desc",
	}, &rows)
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/projects", gotPath)
	assert.Equal(t, "company_id=eq.c1&order=updated_at.desc", gotQuery)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, rows, 2)
	assert.Equal(t, "p1", rows[0].ID)
}

func TestSelect_FallbackOnPolicyRecursion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/projects":
			w.WriteHeader(500)
			w.Write([]byte(`{"code":"42P17","message":"infinite recursion detected in policy"}`))
		case "/functions/v1/list-projects":
			w.Write([]byte(`[{"id":"p1"}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	var rows []struct {
		ID string `json:"id"`
	}
	err := c.Select(context.Background(), "projects", Query{
		Filter:     map[string]string{"company_id": "c1"},
		FallbackFn: "list-projects",
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSelect_ErrorWithoutFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		w.Write([]byte("service unavailable"))
	})

	err := c.Select(context.Background(), "projects", Query{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestInsert_DecodesRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		w.WriteHeader(201)
		w.Write([]byte(`[{"id":"j1","status":"new"}]`))
	})

	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err := c.Insert(context.Background(), "search_string_jobs", map[string]any{"status": "new"}, &job)
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, "new", job.Status)
}

func TestUpdate_PatchByID(t *testing.T) {
	var gotMethod, gotQuery, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(204)
	})

	err := c.Update(context.Background(), "projects", "p1", map[string]any{"status": "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "id=eq.p1", gotQuery)
	assert.JSONEq(t, `{"status":"in_progress"}`, gotBody)
}

func TestInvoke_SurfacesFunctionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		w.Write([]byte("quota exceeded"))
	})

	err := c.Invoke(context.Background(), "generate-search-string", map[string]any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestUploadBlob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/search-pdfs/j1/cv.pdf", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"Key":"search-pdfs/j1/cv.pdf"}`))
	})

	path, err := c.UploadBlob(context.Background(), "search-pdfs", "j1/cv.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "j1/cv.pdf", path)
}
