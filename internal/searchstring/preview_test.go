package searchstring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentpipe-engine/internal/domain"
)

func TestPreview_Text(t *testing.T) {
	got := Preview(context.Background(), domain.SourceText,
		Payload{Text: "Senior Java Developer with 5 years experience in the Berlin area"}, nil)

	assert.True(t, strings.HasPrefix(got, "Keywords: "), got)
	assert.Contains(t, got, "java")
	assert.Contains(t, got, "developer")
	assert.NotContains(t, got, "with", "stopwords are dropped")
	assert.NotContains(t, got, "experience")
}

func TestPreview_TextEmpty(t *testing.T) {
	got := Preview(context.Background(), domain.SourceText, Payload{Text: "the and of"}, nil)
	assert.Equal(t, previewFallback, got)
}

func TestPreview_WebsiteDomain(t *testing.T) {
	got := Preview(context.Background(), domain.SourceWebsite,
		Payload{URL: "https://www.example.com/careers?x=1"}, nil)
	assert.Equal(t, "Site: example.com", got)
}

func TestPreview_InvalidURLDoesNotThrow(t *testing.T) {
	for _, raw := range []string{"not a url", "", "ftp://example.com", "://nope"} {
		got := Preview(context.Background(), domain.SourceWebsite, Payload{URL: raw}, nil)
		assert.Equal(t, "Enter a full URL (https://...) to see a preview.", got, "input %q", raw)
	}
}

func TestPreview_WebsiteWithPeek(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>  Example Careers  </title></head><body></body></html>`))
	}))
	defer srv.Close()

	peek := NewPagePeek(nil)
	got := Preview(context.Background(), domain.SourceWebsite, Payload{URL: srv.URL}, peek)
	assert.Contains(t, got, "Example Careers")
}

func TestPreview_WebsitePeekFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	peek := NewPagePeek(nil)
	got := Preview(context.Background(), domain.SourceWebsite, Payload{URL: srv.URL}, peek)
	assert.True(t, strings.HasPrefix(got, "Site: 127.0.0.1"), got)
}

func TestPreview_PDF(t *testing.T) {
	got := Preview(context.Background(), domain.SourcePDF,
		Payload{PDF: make([]byte, 2048), PDFName: "role-profile.pdf"}, nil)
	assert.Equal(t, "PDF: role-profile.pdf (2.0 KB)", got)

	got = Preview(context.Background(), domain.SourcePDF, Payload{}, nil)
	assert.Equal(t, previewFallback, got)
}

func TestPagePeek_Title_OGFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="OG Name"></head></html>`))
	}))
	defer srv.Close()

	title, err := NewPagePeek(nil).Title(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "OG Name", title)
}
