package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Query describes a filtered, ordered read of one collection.
type Query struct {
	// Filter maps column name to an exact-match value.
	Filter map[string]string
	// Order is a "column.direction" pair, e.g. "updated_at.desc".
	Order string
	// FallbackFn, when set, names a remote function that can serve the
	// same read. If the primary query trips a row-policy recursion
	// error the read is re-issued once through that function. This is
	// the single place the try-query-then-function strategy lives.
	FallbackFn string
}

// Backend is the slice of the data service this engine consumes:
// collection reads/writes, invokable functions and blob storage.
type Backend interface {
	Select(ctx context.Context, collection string, q Query, dest any) error
	Insert(ctx context.Context, collection string, record any, dest any) error
	Update(ctx context.Context, collection string, id string, patch map[string]any) error
	Invoke(ctx context.Context, fn string, payload any, dest any) error
	UploadBlob(ctx context.Context, bucket, path string, blob []byte, contentType string) (string, error)
}

// Client talks to the hosted data service over its REST surface
// (/rest/v1), function runner (/functions/v1) and object store
// (/storage/v1). It shapes requests and surfaces errors; it holds no
// domain logic.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	limiter *HostLimiter
}

func NewClient(baseURL, apiKey string, reqPerSec float64, burst int) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: NewHostLimiter(reqPerSec, burst),
	}
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "TalentPipe/1.0 (+engine)")
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if err := c.limiter.WaitURL(req.Context(), req.URL.String()); err != nil {
		return nil, 0, err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, res.StatusCode, err
	}
	return body, res.StatusCode, nil
}

func queryString(q Query) string {
	vals := url.Values{}

	// deterministic order for tests and logs
	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals.Set(k, "eq."+q.Filter[k])
	}
	if q.Order != "" {
		vals.Set("order", q.Order)
	}
	return vals.Encode()
}

// isPolicyRecursion matches the error the service returns when a
// row-level policy references itself (code 42P17). Reads that hit it
// are retried through the collection's fallback function.
func isPolicyRecursion(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "42P17") || strings.Contains(s, "infinite recursion")
}

func (c *Client) Select(ctx context.Context, collection string, q Query, dest any) error {
	u := c.baseURL + "/rest/v1/" + collection
	if qs := queryString(q); qs != "" {
		u += "?" + qs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	body, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("select %s: %w", collection, err)
	}
	if status < 200 || status > 299 {
		if q.FallbackFn != "" && isPolicyRecursion(body) {
			return c.Invoke(ctx, q.FallbackFn, q.Filter, dest)
		}
		return fmt.Errorf("select %s: status %d: %s", collection, status, trim(body))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("select %s: decode: %w", collection, err)
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, collection string, record any, dest any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("insert %s: encode: %w", collection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/"+collection, bytes.NewReader(b))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	body, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("insert %s: status %d: %s", collection, status, trim(body))
	}
	if dest == nil {
		return nil
	}

	// the service echoes inserted records back as an array
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("insert %s: decode: %w", collection, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("insert %s: empty representation", collection)
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return fmt.Errorf("insert %s: decode row: %w", collection, err)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, collection string, id string, patch map[string]any) error {
	b, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: encode: %w", collection, id, err)
	}

	u := c.baseURL + "/rest/v1/" + collection + "?id=eq." + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	body, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("update %s/%s: status %d: %s", collection, id, status, trim(body))
	}
	return nil
}

func (c *Client) Invoke(ctx context.Context, fn string, payload any, dest any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invoke %s: encode: %w", fn, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/v1/"+fn, bytes.NewReader(b))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", fn, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("invoke %s: status %d: %s", fn, status, trim(body))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("invoke %s: decode: %w", fn, err)
	}
	return nil
}

func (c *Client) UploadBlob(ctx context.Context, bucket, path string, blob []byte, contentType string) (string, error) {
	u := c.baseURL + "/storage/v1/object/" + bucket + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	c.setAuth(req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	body, status, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("upload %s/%s: status %d: %s", bucket, path, status, trim(body))
	}
	return path, nil
}

func trim(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
