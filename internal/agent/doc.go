// Package agent wires the offline core into one process-wide object.
//
// The Agent owns the store, the asset cache, the interceptor and the
// delivery coordinator. Platform events (trigger firings, connectivity
// changes, foregrounding) are queued and handled one at a time by Run, each
// to completion before the next starts.
//
// Thread-safety model:
//   - Dispatch*/Foreground: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Handler: serves concurrently; storage access is serialized by the store
package agent
