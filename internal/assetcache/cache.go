package assetcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/store"
)

// stateController is the agent_state key holding the snapshot name that
// last claimed control.
const stateController = "controller"

// Fetcher retrieves a resource from the network.
// Implemented by fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, req ir.Request) (*ir.Response, error)
}

// Config identifies the current snapshot and its manifest.
type Config struct {
	Prefix   string
	Version  string
	Manifest ir.AssetManifest
}

// SnapshotName returns the snapshot name for the configured version.
func (c Config) SnapshotName() string {
	return c.Prefix + c.Version
}

// InstallReport summarizes an Install pass.
type InstallReport struct {
	Snapshot string   `json:"snapshot"`
	Stored   []string `json:"stored"`
	Failed   []string `json:"failed,omitempty"`
}

// ActivateReport summarizes an Activate pass.
type ActivateReport struct {
	Current string   `json:"current"`
	Deleted []string `json:"deleted,omitempty"`
}

// Cache is the Versioned Asset Cache.
//
// Thread-safety: safe for concurrent use. Storage calls are serialized by the
// store; the controlling flag is guarded by mu.
type Cache struct {
	store   *store.Store
	fetcher Fetcher
	config  Config

	mu          sync.RWMutex
	controlling bool
}

// New creates a Cache for the configured version.
func New(st *store.Store, f Fetcher, cfg Config) *Cache {
	return &Cache{store: st, fetcher: f, config: cfg}
}

// Name returns the current snapshot name.
func (c *Cache) Name() string {
	return c.config.SnapshotName()
}

// Manifest returns the manifest this cache installs.
func (c *Cache) Manifest() ir.AssetManifest {
	return c.config.Manifest
}

// Install opens (or creates) the current snapshot and stores every manifest
// resource in it.
//
// Install is permissive: a resource that cannot be fetched, or that answers
// with a non-cacheable status, is logged and listed in the report, and the
// remaining resources are still installed. Only storage failures abort.
func (c *Cache) Install(ctx context.Context) (InstallReport, error) {
	name := c.Name()
	report := InstallReport{Snapshot: name}

	if err := c.store.OpenSnapshot(ctx, name); err != nil {
		return report, fmt.Errorf("install %s: %w", name, err)
	}

	for _, path := range c.config.Manifest.Paths {
		resp, err := c.fetcher.Fetch(ctx, ir.Request{Method: "GET", Path: path, Mode: ir.ModeOther})
		if err != nil {
			slog.Warn("asset fetch failed during install",
				"snapshot", name,
				"path", path,
				"error", err,
			)
			report.Failed = append(report.Failed, path)
			continue
		}
		if !resp.Cacheable() {
			slog.Warn("asset not cacheable during install",
				"snapshot", name,
				"path", path,
				"status", resp.Status,
			)
			report.Failed = append(report.Failed, path)
			continue
		}
		if err := c.store.Put(ctx, name, path, resp); err != nil {
			return report, fmt.Errorf("install %s: %w", name, err)
		}
		report.Stored = append(report.Stored, path)
	}

	slog.Info("install complete",
		"snapshot", name,
		"stored", len(report.Stored),
		"failed", len(report.Failed),
	)
	return report, nil
}

// Activate deletes every snapshot other than the current one, then claims
// control. The current snapshot is created if it does not exist, so exactly
// one snapshot remains afterwards.
func (c *Cache) Activate(ctx context.Context) (ActivateReport, error) {
	name := c.Name()
	report := ActivateReport{Current: name}

	if err := c.store.OpenSnapshot(ctx, name); err != nil {
		return report, fmt.Errorf("activate %s: %w", name, err)
	}

	names, err := c.store.SnapshotNames(ctx)
	if err != nil {
		return report, fmt.Errorf("activate %s: %w", name, err)
	}
	for _, other := range names {
		if other == name {
			continue
		}
		if _, err := c.store.DeleteSnapshot(ctx, other); err != nil {
			return report, fmt.Errorf("activate %s: %w", name, err)
		}
		slog.Info("deleted stale snapshot", "snapshot", other, "current", name)
		report.Deleted = append(report.Deleted, other)
	}

	if err := c.claim(ctx); err != nil {
		return report, fmt.Errorf("activate %s: %w", name, err)
	}
	return report, nil
}

// claim makes this cache the controller immediately, without waiting for a
// restart, and records it so a restarted agent resumes control.
func (c *Cache) claim(ctx context.Context) error {
	if err := c.store.SetState(ctx, stateController, c.Name()); err != nil {
		return err
	}
	c.mu.Lock()
	c.controlling = true
	c.mu.Unlock()
	slog.Info("claimed control", "snapshot", c.Name())
	return nil
}

// Restore resumes control if a previous run already activated this version.
// Returns whether the cache is controlling afterwards.
func (c *Cache) Restore(ctx context.Context) (bool, error) {
	controller, ok, err := c.store.State(ctx, stateController)
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlling = ok && controller == c.Name()
	return c.controlling, nil
}

// Controlling reports whether requests are governed by this cache.
func (c *Cache) Controlling() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controlling
}

// Match looks key up in the current snapshot. A miss is an ir CacheMiss error.
func (c *Cache) Match(ctx context.Context, key string) (*ir.Response, error) {
	return c.store.Match(ctx, c.Name(), ir.NormalizePath(key))
}

// Put stores resp under key in the current snapshot.
func (c *Cache) Put(ctx context.Context, key string, resp *ir.Response) error {
	return c.store.Put(ctx, c.Name(), ir.NormalizePath(key), resp)
}
