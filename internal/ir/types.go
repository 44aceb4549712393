package ir

import (
	"fmt"
	"net/http"
	"strings"
)

// RequestMode distinguishes page navigations from subresource requests.
// Only navigations are eligible for the offline document fallback.
type RequestMode string

const (
	ModeNavigate RequestMode = "navigate"
	ModeOther    RequestMode = "other"
)

// Request is an intercepted resource request.
type Request struct {
	Method string      `json:"method"`
	Path   string      `json:"path"` // path plus optional "?query", used as cache key
	Mode   RequestMode `json:"mode"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"-"`
}

// IsGet reports whether the request uses GET (empty method means GET).
func (r Request) IsGet() bool {
	return r.Method == "" || r.Method == http.MethodGet
}

// Response is a fetched or cached resource.
type Response struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Clone returns an independent deep copy. The cached copy and the copy handed
// to a caller must never share backing arrays.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}

// Cacheable reports whether a network response may be stored in a snapshot:
// any 2xx except 206 Partial Content.
func (r *Response) Cacheable() bool {
	return r != nil && r.Status >= 200 && r.Status < 300 && r.Status != http.StatusPartialContent
}

// AssetManifest is the fixed, ordered list of resources an install populates.
type AssetManifest struct {
	Paths []string `json:"paths"`
}

// NewAssetManifest normalizes paths to a leading "/" and rejects empty or
// duplicate entries.
func NewAssetManifest(paths []string) (AssetManifest, error) {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for i, p := range paths {
		key := NormalizePath(p)
		if key == "/" && strings.TrimSpace(p) == "" {
			return AssetManifest{}, fmt.Errorf("manifest[%d]: empty path", i)
		}
		if seen[key] {
			return AssetManifest{}, fmt.Errorf("manifest[%d]: duplicate path %q", i, key)
		}
		seen[key] = true
		out = append(out, key)
	}
	return AssetManifest{Paths: out}, nil
}

// NormalizePath turns a manifest or request path into a cache key.
// "index.html" and "/index.html" name the same resource.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// PendingRecord is a locally queued, not-yet-delivered unit of user data.
// Records are created by Enqueue and deleted after confirmed delivery; they
// are never updated in place.
type PendingRecord struct {
	ID      int64  `json:"id"`
	Payload string `json:"payload"`
}

// DeliveryStatus is what the UI is told after handing over a payload.
type DeliveryStatus string

const (
	// StatusAccepted means the payload is durable and will be delivered later.
	StatusAccepted DeliveryStatus = "accepted"
	// StatusDelivered means an immediate delivery succeeded.
	StatusDelivered DeliveryStatus = "delivered"
	// StatusFailed means an immediate delivery failed and was not persisted.
	StatusFailed DeliveryStatus = "failed"
)

// OutcomeKind classifies an advisory delivery notification.
type OutcomeKind string

const (
	OutcomeQueued    OutcomeKind = "queued"
	OutcomeDelivered OutcomeKind = "delivered"
	OutcomeFailed    OutcomeKind = "failed"
)

// DeliveryOutcome is published on the broadcast hub after every enqueue and
// delivery attempt. It is informational only; nothing depends on receiving it.
type DeliveryOutcome struct {
	Kind     OutcomeKind `json:"kind"`
	RecordID int64       `json:"record_id,omitempty"`
	FlushID  string      `json:"flush_id,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// FlushReport aggregates one FlushAll pass.
type FlushReport struct {
	FlushID   string `json:"flush_id"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// SnapshotInfo describes a stored cache snapshot.
type SnapshotInfo struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}
