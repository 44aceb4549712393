package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// ErrOffline is returned by the origin's client transport while offline.
var ErrOffline = errors.New("testutil: network offline")

// Origin is an httptest server serving fixed files, paired with an HTTP
// client whose transport can be switched offline.
//
// While offline, every request made through Client fails at the transport
// level, the same way a real fetch fails without connectivity.
type Origin struct {
	URL string

	srv     *httptest.Server
	offline atomic.Bool

	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
}

// NewOrigin starts an origin serving files (path → body). Paths not in
// files answer 404. The server is closed on test cleanup.
func NewOrigin(t *testing.T, files map[string]string) *Origin {
	t.Helper()
	o := &Origin{
		files: make(map[string]string, len(files)),
		hits:  make(map[string]int),
	}
	for k, v := range files {
		o.files[k] = v
	}
	o.srv = httptest.NewServer(http.HandlerFunc(o.serve))
	o.URL = o.srv.URL
	t.Cleanup(o.srv.Close)
	return o
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	body, ok := o.files[r.URL.Path]
	o.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType(r.URL.Path))
	w.Write([]byte(body))
}

// SetFile adds or replaces a served file.
func (o *Origin) SetFile(path, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = body
}

// Hits returns how many requests reached path.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// SetOffline switches the client transport on or off.
func (o *Origin) SetOffline(offline bool) {
	o.offline.Store(offline)
}

// Client returns an HTTP client that honors SetOffline.
func (o *Origin) Client() *http.Client {
	return &http.Client{Transport: switchTransport{origin: o, next: o.srv.Client().Transport}}
}

type switchTransport struct {
	origin *Origin
	next   http.RoundTripper
}

func (s switchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if s.origin.offline.Load() {
		return nil, ErrOffline
	}
	return s.next.RoundTrip(req)
}

func contentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css"
	case strings.HasSuffix(path, ".js"):
		return "text/javascript"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
