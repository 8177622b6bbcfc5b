// Package remote fetches the layered configuration documents: the root
// domain-map document, per-tag config documents, and per-tag entity
// documents (events, tips).
//
// Every fetch appends a cache-busting query parameter and sends no-cache
// headers; the documents are republished in place and stale CDN copies are
// worse than a slow fetch. All failures are typed FetchErrors - callers map
// them to "document absent" and compose an empty layer instead of failing.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every document fetch. A hung origin must not stall
// the per-tag coalescing slot in the composer indefinitely.
const DefaultTimeout = 15 * time.Second

// Client fetches configuration documents relative to a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (tests use a
// scripted transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNow substitutes the clock used for cache-busting parameters.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a document client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRoot fetches the root document (domain map + default tag).
func (c *Client) FetchRoot(ctx context.Context) (*RootDoc, error) {
	data, u, err := c.fetchJSON(ctx, "default.json")
	if err != nil {
		return nil, err
	}
	doc, err := decodeRootDoc(data)
	if err != nil {
		return nil, &FetchError{Code: ErrCodeBadContent, URL: u, Err: err}
	}
	return doc, nil
}

// FetchTagConfig fetches <tag>/conf.json.
func (c *Client) FetchTagConfig(ctx context.Context, tag string) (TagConfig, error) {
	data, u, err := c.fetchJSON(ctx, tag+"/conf.json")
	if err != nil {
		return nil, err
	}
	cfg, err := decodeTagConfig(data)
	if err != nil {
		return nil, &FetchError{Code: ErrCodeBadContent, URL: u, Err: err}
	}
	return cfg, nil
}

// FetchEntities fetches <tag>/events.json or <tag>/tips.json.
func (c *Client) FetchEntities(ctx context.Context, tag string, kind Kind) (*EntityDoc, error) {
	data, u, err := c.fetchJSON(ctx, fmt.Sprintf("%s/%s.json", tag, kind))
	if err != nil {
		return nil, err
	}
	doc, err := decodeEntityDoc(data, kind)
	if err != nil {
		return nil, &FetchError{Code: ErrCodeBadContent, URL: u, Err: err}
	}
	return doc, nil
}

// fetchJSON performs one GET with cache-busting and the JSON content-type
// gate. Returns the body and the request URL (for error reporting).
func (c *Client) fetchJSON(ctx context.Context, path string) ([]byte, string, error) {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, path, url.Values{
		"_": []string{strconv.FormatInt(c.now().UnixNano(), 10)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, u, &FetchError{Code: ErrCodeTransport, URL: u, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, u, &FetchError{Code: ErrCodeTransport, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, u, &FetchError{Code: ErrCodeNotFound, URL: u}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, u, &FetchError{
			Code: ErrCodeTransport,
			URL:  u,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if !isJSONContentType(resp.Header.Get("Content-Type")) {
		// SPA hosts serve index.html for unknown paths with status 200.
		return nil, u, &FetchError{
			Code: ErrCodeBadContent,
			URL:  u,
			Err:  fmt.Errorf("content type %q is not JSON", resp.Header.Get("Content-Type")),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, u, &FetchError{Code: ErrCodeTransport, URL: u, Err: err}
	}

	slog.Debug("document fetched", "url", u, "bytes", len(body))
	return body, u, nil
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" ||
		mediaType == "text/json" ||
		strings.HasSuffix(mediaType, "+json")
}
