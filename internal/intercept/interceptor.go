package intercept

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roach88/vacatrack/internal/ir"
)

// Source records which branch of the state machine produced a response.
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// maxRequestBody caps bodies read from intercepted non-GET requests.
const maxRequestBody = 1 << 20

// ErrRequestTooLarge is returned by RequestFromHTTP when a request body
// exceeds the limit. ServeHTTP answers it with 413.
var ErrRequestTooLarge = errors.New("request body too large")

// SourceHeader is set on every response served by ServeHTTP.
const SourceHeader = "X-Vacatrack-Source"

// Assets is the current-snapshot view the interceptor reads and populates.
// Implemented by assetcache.Cache.
type Assets interface {
	Controlling() bool
	Match(ctx context.Context, key string) (*ir.Response, error)
	Put(ctx context.Context, key string, resp *ir.Response) error
}

// Fetcher retrieves a resource from the network.
// Implemented by fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, req ir.Request) (*ir.Response, error)
}

// Interceptor is the Request Interceptor.
type Interceptor struct {
	assets          Assets
	fetcher         Fetcher
	offlineDocument string
}

// New creates an Interceptor. offlineDocument is the cache key served to
// navigations when both the cache and the network miss.
func New(assets Assets, fetcher Fetcher, offlineDocument string) *Interceptor {
	return &Interceptor{
		assets:          assets,
		fetcher:         fetcher,
		offlineDocument: ir.NormalizePath(offlineDocument),
	}
}

// Handle resolves req and reports which source answered.
// Every returned response is an independent copy.
func (i *Interceptor) Handle(ctx context.Context, req ir.Request) (*ir.Response, Source, error) {
	req.Path = ir.NormalizePath(req.Path)

	// Uncontrolled: pass through untouched until activation claims control.
	if !i.assets.Controlling() {
		resp, err := i.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, SourceNetwork, err
		}
		return resp, SourceNetwork, nil
	}

	if req.IsGet() {
		cached, err := i.assets.Match(ctx, req.Path)
		if err == nil {
			return cached.Clone(), SourceCache, nil
		}
		if !ir.IsCacheMiss(err) {
			// A broken cache must not take the page down; fall through to
			// the network as if it were a miss.
			slog.Warn("cache lookup failed", "path", req.Path, "error", err)
		}
	}

	resp, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return i.fallback(ctx, req, err)
	}

	if req.IsGet() && resp.Cacheable() {
		if perr := i.assets.Put(ctx, req.Path, resp.Clone()); perr != nil {
			slog.Warn("cache populate failed", "path", req.Path, "error", perr)
		}
	}
	return resp.Clone(), SourceNetwork, nil
}

// fallback serves the offline document to navigations; every other request
// gets the network error back.
func (i *Interceptor) fallback(ctx context.Context, req ir.Request, netErr error) (*ir.Response, Source, error) {
	if req.Mode != ir.ModeNavigate {
		return nil, SourceNetwork, netErr
	}

	slog.Info("fetch failed; returning offline document",
		"path", req.Path,
		"offline_document", i.offlineDocument,
		"error", netErr,
	)
	doc, err := i.assets.Match(ctx, i.offlineDocument)
	if err != nil {
		if !ir.IsCacheMiss(err) {
			slog.Warn("offline document lookup failed", "error", err)
		}
		return nil, SourceFallback, netErr
	}
	return doc.Clone(), SourceFallback, nil
}

// ServeHTTP adapts the interceptor to net/http.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := RequestFromHTTP(r)
	if errors.Is(err, ErrRequestTooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, source, err := i.Handle(r.Context(), req)
	if err != nil {
		w.Header().Set(SourceHeader, string(source))
		http.Error(w, fmt.Sprintf("offline: %v", err), http.StatusBadGateway)
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(SourceHeader, string(source))
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		w.Write(resp.Body)
	}
}

// RequestFromHTTP converts an incoming request. Navigations are detected
// from Sec-Fetch-Mode, or a GET that accepts HTML.
func RequestFromHTTP(r *http.Request) (ir.Request, error) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	var body []byte
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		data, err := readAll(r)
		if err != nil {
			return ir.Request{}, fmt.Errorf("read body: %w", err)
		}
		body = data
	}

	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	return ir.Request{
		Method: method,
		Path:   path,
		Mode:   requestMode(r),
		Header: r.Header.Clone(),
		Body:   body,
	}, nil
}

func requestMode(r *http.Request) ir.RequestMode {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		if mode == "navigate" {
			return ir.ModeNavigate
		}
		return ir.ModeOther
	}
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) &&
		strings.Contains(r.Header.Get("Accept"), "text/html") {
		return ir.ModeNavigate
	}
	return ir.ModeOther
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxRequestBody {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrRequestTooLarge, maxRequestBody)
	}
	return data, nil
}
