package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/vacatrack/internal/assetcache"
	"github.com/roach88/vacatrack/internal/broadcast"
	"github.com/roach88/vacatrack/internal/config"
	"github.com/roach88/vacatrack/internal/delivery"
	"github.com/roach88/vacatrack/internal/fetch"
	"github.com/roach88/vacatrack/internal/intercept"
	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/store"
	"github.com/roach88/vacatrack/internal/trigger"
	"github.com/roach88/vacatrack/internal/vacation"
)

// stateAgentID is the agent_state key holding the persistent agent id.
const stateAgentID = "agent_id"

// Agent is the background agent.
type Agent struct {
	config *config.Config
	id     string

	store       *store.Store
	fetcher     *fetch.Fetcher
	cache       *assetcache.Cache
	interceptor *intercept.Interceptor
	hub         *broadcast.Hub
	registry    *trigger.Registry
	coordinator *delivery.Coordinator
	vacations   *vacation.Service
	scheduler   *trigger.Scheduler

	queue *eventQueue
}

type options struct {
	acceptor   delivery.Acceptor
	httpClient *http.Client
	ids        delivery.IDGenerator
	prober     trigger.Prober
}

// Option configures an Agent.
type Option func(*options)

// WithAcceptor replaces the configured acceptor.
func WithAcceptor(a delivery.Acceptor) Option {
	return func(o *options) { o.acceptor = a }
}

// WithHTTPClient sets the client used for the origin and the HTTP acceptor.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithIDGenerator replaces the UUIDv7 generator for flush and agent ids.
func WithIDGenerator(g delivery.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithProber replaces the connectivity probe against the origin.
func WithProber(p trigger.Prober) Option {
	return func(o *options) { o.prober = p }
}

// New opens (or creates) the store and builds every component.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	o := options{ids: delivery.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}

	manifest, err := cfg.AssetManifest()
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &Agent{
		config: cfg,
		store:  st,
		hub:    broadcast.NewHub(0),
		queue:  newEventQueue(),
	}

	a.fetcher = fetch.New(fetch.Config{
		Origin:  cfg.Origin,
		Timeout: cfg.Delivery.TimeoutDuration(),
		Client:  o.httpClient,
	})
	a.cache = assetcache.New(st, a.fetcher, assetcache.Config{
		Prefix:   cfg.CachePrefix,
		Version:  cfg.Version,
		Manifest: manifest,
	})
	a.interceptor = intercept.New(a.cache, a.fetcher, cfg.OfflineDocument)
	a.registry = trigger.NewRegistry(st)

	acceptor := o.acceptor
	if acceptor == nil {
		acceptor = newAcceptor(cfg, o.httpClient)
	}
	copts := []delivery.Option{
		delivery.WithHub(a.hub),
		delivery.WithIDGenerator(o.ids),
	}
	if cfg.Delivery.Deferred {
		copts = append(copts, delivery.WithRegistrar(a.registry, cfg.Delivery.Tag))
	}
	a.coordinator = delivery.New(st, acceptor, copts...)
	a.vacations = vacation.NewService(st, a.coordinator)

	prober := o.prober
	if prober == nil {
		probe := cfg.Connectivity.Probe
		prober = trigger.ProberFunc(func(ctx context.Context) error {
			return a.fetcher.Probe(ctx, probe)
		})
	}
	a.scheduler = trigger.NewScheduler(a.registry, st, prober, a, cfg.Connectivity.IntervalDuration())

	if err := a.loadID(context.Background(), o.ids); err != nil {
		st.Close()
		return nil, err
	}
	if _, err := a.cache.Restore(context.Background()); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func newAcceptor(cfg *config.Config, client *http.Client) delivery.Acceptor {
	if cfg.Delivery.Mode == config.ModeHTTP {
		if client == nil {
			client = &http.Client{Timeout: cfg.Delivery.TimeoutDuration()}
		}
		return delivery.NewHTTPAcceptor(cfg.Delivery.Endpoint, cfg.Delivery.ContentType, client)
	}
	return delivery.NewOracleAcceptor(cfg.Delivery.SuccessRate, cfg.Delivery.Seed)
}

// loadID reads the persistent agent id, generating one on first start.
func (a *Agent) loadID(ctx context.Context, ids delivery.IDGenerator) error {
	id, ok, err := a.store.State(ctx, stateAgentID)
	if err != nil {
		return fmt.Errorf("load agent id: %w", err)
	}
	if !ok {
		id = ids.Generate()
		if err := a.store.SetState(ctx, stateAgentID, id); err != nil {
			return fmt.Errorf("store agent id: %w", err)
		}
	}
	a.id = id
	return nil
}

// ID returns the persistent agent id.
func (a *Agent) ID() string { return a.id }

// Config returns the agent configuration.
func (a *Agent) Config() *config.Config { return a.config }

// Store returns the underlying store.
func (a *Agent) Store() *store.Store { return a.store }

// Cache returns the asset cache.
func (a *Agent) Cache() *assetcache.Cache { return a.cache }

// Coordinator returns the delivery coordinator.
func (a *Agent) Coordinator() *delivery.Coordinator { return a.coordinator }

// Vacations returns the vacation service.
func (a *Agent) Vacations() *vacation.Service { return a.vacations }

// Registry returns the trigger registry.
func (a *Agent) Registry() *trigger.Registry { return a.registry }

// Close stops the loop and closes the store.
func (a *Agent) Close() error {
	a.queue.Close()
	a.hub.Close()
	return a.store.Close()
}

// Start installs and activates the current snapshot, then queues a
// foreground event so records left from a previous run get flushed.
// Install is permissive; only storage failures are returned.
func (a *Agent) Start(ctx context.Context) error {
	slog.Info("agent starting",
		"agent_id", a.id,
		"version", ir.AgentVersion,
		"snapshot", a.cache.Name(),
	)
	if _, err := a.cache.Install(ctx); err != nil {
		return err
	}
	if _, err := a.cache.Activate(ctx); err != nil {
		return err
	}
	a.Foreground()
	return nil
}

// DispatchSync queues a trigger firing for tag.
func (a *Agent) DispatchSync(tag string) {
	a.queue.Enqueue(Event{Type: EventSync, Tag: tag})
}

// DispatchConnectivity queues a connectivity change.
func (a *Agent) DispatchConnectivity(online bool) {
	a.queue.Enqueue(Event{Type: EventConnectivity, Online: online})
}

// Foreground queues an opportunistic flush.
func (a *Agent) Foreground() {
	a.queue.Enqueue(Event{Type: EventForeground})
}

// DispatchFlush queues a flush for records the scheduler found pending
// without a registration.
func (a *Agent) DispatchFlush() {
	a.queue.Enqueue(Event{Type: EventFlush})
}

// Run starts the scheduler and the single-writer event loop. Blocks until
// ctx is cancelled or the agent is closed.
//
// A failing event is logged and the loop moves on; the records it concerned
// stay pending for the next event.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		a.scheduler.Run(ctx)
	}()
	defer func() {
		cancel()
		<-schedDone
	}()

	slog.Info("agent loop starting", "agent_id", a.id)
	for {
		if ev, ok := a.queue.TryDequeue(); ok {
			if err := a.handle(ctx, ev); err != nil {
				slog.Error("event failed", "event", ev.Type.String(), "tag", ev.Tag, "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("agent loop stopping: context cancelled")
			return ctx.Err()
		case <-a.queue.Wait():
			// A stale signal can arrive for an event already consumed, so an
			// empty queue alone does not mean shutdown.
			if a.queue.Closed() && a.queue.Len() == 0 {
				slog.Info("agent loop stopping: queue closed")
				return nil
			}
		}
	}
}

// handle runs one event to completion.
func (a *Agent) handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventSync:
		return a.handleSync(ctx, ev.Tag)
	case EventConnectivity:
		if !ev.Online {
			return nil
		}
		_, err := a.coordinator.FlushAll(ctx)
		return err
	case EventForeground, EventFlush:
		_, err := a.coordinator.FlushAll(ctx)
		return err
	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

// handleSync flushes for a fired registration. The registration is cleared
// only when the flush had no failures and nothing is left pending, which
// covers records queued while the flush was running; otherwise it fires
// again later.
func (a *Agent) handleSync(ctx context.Context, tag string) error {
	if tag != a.coordinator.Tag() {
		slog.Warn("unknown trigger tag; clearing", "tag", tag)
		return a.registry.Clear(ctx, tag)
	}

	report, err := a.coordinator.FlushAll(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		slog.Debug("keeping trigger registration", "tag", tag, "flush_id", report.FlushID, "failed", report.Failed)
		return nil
	}
	left, err := a.store.CountPending(ctx)
	if err != nil {
		return err
	}
	if left > 0 {
		slog.Debug("keeping trigger registration", "tag", tag, "flush_id", report.FlushID, "pending", left)
		return nil
	}
	return a.registry.Clear(ctx, tag)
}

// Status is a point-in-time view of the agent.
type Status struct {
	AgentID       string            `json:"agent_id"`
	Version       string            `json:"version"`
	Snapshot      string            `json:"snapshot"`
	Controlling   bool              `json:"controlling"`
	Online        *bool             `json:"online,omitempty"`
	Deferred      bool              `json:"deferred"`
	Pending       int               `json:"pending"`
	Registrations []string          `json:"registrations"`
	Snapshots     []ir.SnapshotInfo `json:"snapshots"`
}

// Status collects the current status.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	s := Status{
		AgentID:     a.id,
		Version:     ir.AgentVersion,
		Snapshot:    a.cache.Name(),
		Controlling: a.cache.Controlling(),
		Deferred:    a.coordinator.Deferred(),
	}
	if online, ok := a.scheduler.Online(); ok {
		s.Online = &online
	}

	var err error
	if s.Pending, err = a.store.CountPending(ctx); err != nil {
		return s, err
	}
	if s.Registrations, err = a.registry.Pending(ctx); err != nil {
		return s, err
	}
	if s.Snapshots, err = a.store.Snapshots(ctx); err != nil {
		return s, err
	}
	return s, nil
}
