package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsonHandler(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchRoot(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/default.json": jsonHandler(`{
			"updated": "2026-08-01",
			"defaultTag": "main",
			"domains": {
				"play.example.net": {"tag": "blue"},
				"broken": "not an object"
			}
		}`),
	})

	doc, err := NewClient(srv.URL).FetchRoot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "main", doc.DefaultTag)
	assert.Equal(t, "2026-08-01", doc.Updated)
	assert.Equal(t, map[string]string{"play.example.net": "blue"}, doc.Domains)
}

func TestFetchSendsNoCacheAndBuster(t *testing.T) {
	var gotCacheControl, gotBuster string
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/blue/conf.json": func(w http.ResponseWriter, r *http.Request) {
			gotCacheControl = r.Header.Get("Cache-Control")
			gotBuster = r.URL.Query().Get("_")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"updated": "x", "parent": "main"}`))
		},
	})

	cfg, err := NewClient(srv.URL).FetchTagConfig(context.Background(), "blue")
	require.NoError(t, err)

	assert.Equal(t, "no-cache", gotCacheControl)
	assert.NotEmpty(t, gotBuster)

	parent, ok := cfg.Parent()
	require.True(t, ok)
	assert.Equal(t, "main", parent)
	assert.Equal(t, "x", cfg.Updated())
}

func TestFetchEntitiesWrappedShape(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/blue/events.json": jsonHandler(`{
			"updated": "2026-08-01",
			"events": [{"id": "e1", "title": "Raid"}, "stray scalar", {"id": "e2"}]
		}`),
	})

	doc, err := NewClient(srv.URL).FetchEntities(context.Background(), "blue", KindEvents)
	require.NoError(t, err)

	assert.Equal(t, "2026-08-01", doc.Updated)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "Raid", doc.Items[0]["title"])
}

func TestFetchEntitiesBareArray(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/blue/tips.json": jsonHandler(`[{"id": "t1", "updated": "2026-07-01"}]`),
	})

	doc, err := NewClient(srv.URL).FetchEntities(context.Background(), "blue", KindTips)
	require.NoError(t, err)

	assert.Equal(t, "2026-07-01", doc.Updated)
	require.Len(t, doc.Items, 1)
}

func TestFetchNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	_, err := NewClient(srv.URL).FetchEntities(context.Background(), "ghost", KindEvents)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeNotFound, fe.Code)
	assert.True(t, IsAbsent(err))
}

func TestFetchWrongContentType(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/blue/conf.json": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>spa fallback</html>"))
		},
	})

	_, err := NewClient(srv.URL).FetchTagConfig(context.Background(), "blue")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeBadContent, fe.Code)
}

func TestFetchMalformedJSON(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/default.json": jsonHandler(`{"not closed`),
	})

	_, err := NewClient(srv.URL).FetchRoot(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeBadContent, fe.Code)
}

func TestFetchServerError(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/default.json": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})

	_, err := NewClient(srv.URL).FetchRoot(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeTransport, fe.Code)
}

func TestIsAbsentOnlyForFetchErrors(t *testing.T) {
	assert.False(t, IsAbsent(errors.New("plain")))
	assert.False(t, IsAbsent(nil))
}
