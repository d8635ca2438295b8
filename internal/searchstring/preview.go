package searchstring

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"talentpipe-engine/internal/domain"
	"talentpipe-engine/internal/remote"
)

const previewFallback = "Preview not available yet — submit to generate the search string."

const maxPreviewKeywords = 8

// filler words skipped during keyword extraction
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"with": true, "we": true, "you": true, "our": true, "their": true,
	"und": true, "der": true, "die": true, "das": true, "mit": true,
	"experience": true, "years": true,
}

// Preview builds a short, advisory description of what a submission
// would process. It never touches job state and never fails: malformed
// input yields a fallback string. peek is optional; when set, website
// previews are enriched with the page title.
func Preview(ctx context.Context, source domain.JobSource, p Payload, peek *PagePeek) string {
	switch source {
	case domain.SourceText:
		return previewText(p.Text)
	case domain.SourceWebsite:
		return previewWebsite(ctx, p.URL, peek)
	case domain.SourcePDF:
		return previewPDF(p)
	default:
		return previewFallback
	}
}

func previewText(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '+' || r == '#')
	})

	seen := map[string]bool{}
	var keywords []string
	for _, w := range words {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == maxPreviewKeywords {
			break
		}
	}
	if len(keywords) == 0 {
		return previewFallback
	}
	return "Keywords: " + strings.Join(keywords, ", ")
}

func previewWebsite(ctx context.Context, raw string, peek *PagePeek) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "Enter a full URL (https://...) to see a preview."
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if peek != nil {
		if title, err := peek.Title(ctx, raw); err == nil && title != "" {
			return fmt.Sprintf("Site: %s — %s", host, title)
		}
	}
	return "Site: " + host
}

func previewPDF(p Payload) string {
	if len(p.PDF) == 0 {
		return previewFallback
	}
	name := strings.TrimSpace(p.PDFName)
	if name == "" {
		name = "document.pdf"
	}
	return fmt.Sprintf("PDF: %s (%s)", name, byteSize(len(p.PDF)))
}

func byteSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// PagePeek fetches a page title for website previews. Strictly
// best-effort: short timeout, rate-limited per host, any failure means
// the preview falls back to the bare domain.
type PagePeek struct {
	hc      *http.Client
	limiter *remote.HostLimiter
}

func NewPagePeek(limiter *remote.HostLimiter) *PagePeek {
	return &PagePeek{
		hc:      &http.Client{Timeout: 5 * time.Second},
		limiter: limiter,
	}
}

func (p *PagePeek) Title(ctx context.Context, rawURL string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.WaitURL(ctx, rawURL); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "TalentPipe/1.0 (+engine)")

	res, err := p.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("peek get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("peek get: status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("peek parse: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	if len(title) > 120 {
		title = title[:120] + "..."
	}
	return title, nil
}
