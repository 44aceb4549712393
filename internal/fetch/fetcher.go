package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/vacatrack/internal/ir"
)

// ErrBodyTooLarge is wrapped in the NetworkError returned when a response
// body exceeds Config.MaxBytes. A partial body is never returned.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Config configures the fetcher.
type Config struct {
	// Origin is the base URL resources are fetched from (e.g. "http://localhost:8000").
	Origin string
	// Timeout bounds every request. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body size; larger bodies fail the fetch.
	// Default: 10MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// Client overrides the HTTP client (tests). Timeout is ignored when set.
	Client *http.Client
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "vacatrack/" + ir.AgentVersion
	}
	c.Origin = strings.TrimRight(c.Origin, "/")
}

// headers forwarded from the intercepted request to the origin.
var forwardHeaders = []string{"Accept", "Accept-Language", "Content-Type"}

// Fetcher performs requests against a single origin.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{client: client, config: cfg}
}

// URL resolves a request path against the origin.
func (f *Fetcher) URL(path string) string {
	return f.config.Origin + ir.NormalizePath(path)
}

// Fetch sends req to the origin and returns the full response.
func (f *Fetcher) Fetch(ctx context.Context, req ir.Request) (*ir.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	url := f.URL(req.Path)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.config.UserAgent)
	for _, h := range forwardHeaders {
		if v := req.Header.Get(h); v != "" {
			httpReq.Header.Set(h, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, ir.NewNetworkError("fetch", req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, ir.NewNetworkError("fetch", req.Path, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, ir.NewNetworkError("fetch", req.Path,
			fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.config.MaxBytes))
	}

	header := resp.Header.Clone()
	// The body is fully buffered; transfer framing no longer applies.
	header.Del("Content-Length")
	header.Del("Transfer-Encoding")
	header.Del("Connection")

	return &ir.Response{
		Status: resp.StatusCode,
		Header: header,
		Body:   data,
	}, nil
}

// Probe checks whether the origin is reachable. Any HTTP answer counts as
// online; only transport failures count as offline.
func (f *Fetcher) Probe(ctx context.Context, path string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, f.URL(path), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return ir.NewNetworkError("probe", path, err)
	}
	resp.Body.Close()
	return nil
}
