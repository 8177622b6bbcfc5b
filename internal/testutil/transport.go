package testutil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// DocResponse is one scripted response: a status code, a body, and an
// optional content type (application/json when empty).
type DocResponse struct {
	Status      int
	Body        string
	ContentType string
}

// ScriptedTransport is an http.RoundTripper serving canned documents by
// request path, ignoring query parameters. Unscripted paths return 404, the
// same signal a missing published document produces. It counts requests per
// path so tests can assert on coalescing and cache behavior.
type ScriptedTransport struct {
	mu    sync.Mutex
	docs  map[string]DocResponse
	count map[string]int
}

// NewScriptedTransport creates an empty transport; add documents with Set.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{
		docs:  make(map[string]DocResponse),
		count: make(map[string]int),
	}
}

// SetJSON scripts a 200 application/json response for a path.
func (t *ScriptedTransport) SetJSON(path, body string) {
	t.Set(path, DocResponse{Status: http.StatusOK, Body: body})
}

// Set scripts an arbitrary response for a path.
func (t *ScriptedTransport) Set(path string, resp DocResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs[path] = resp
}

// Remove unscripts a path, making subsequent requests 404.
func (t *ScriptedTransport) Remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.docs, path)
}

// Requests returns how many times a path has been fetched.
func (t *ScriptedTransport) Requests(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count[path]
}

// RoundTrip implements http.RoundTripper.
func (t *ScriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	path := req.URL.Path
	t.count[path]++
	resp, ok := t.docs[path]
	t.mu.Unlock()

	if !ok {
		return canned(req, http.StatusNotFound, "not found", "text/plain"), nil
	}

	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	return canned(req, status, resp.Body, ct), nil
}

// Client returns an http.Client backed by this transport.
func (t *ScriptedTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func canned(req *http.Request, status int, body, contentType string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        http.Header{"Content-Type": []string{contentType}},
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
		Request:       req,
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
