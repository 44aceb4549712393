package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the probe interval used when none is configured.
const DefaultInterval = 30 * time.Second

// Prober checks connectivity. nil means online.
// Implemented by fetch.Fetcher via a closure over its probe path.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Dispatcher receives the events the scheduler decides to fire.
// Implemented by agent.Agent, which queues them for its event loop.
type Dispatcher interface {
	DispatchSync(tag string)
	DispatchConnectivity(online bool)
	DispatchFlush()
}

// Pending lists registered tags.
type Pending interface {
	Pending(ctx context.Context) ([]string, error)
}

// Backlog counts records waiting for delivery. Implemented by store.Store.
type Backlog interface {
	CountPending(ctx context.Context) (int, error)
}

// Scheduler plays the platform's role for deferred triggers: it watches
// connectivity and fires registered tags while online.
//
// Thread-safety: Tick and Run must not be called concurrently with each
// other; Online is safe from any goroutine.
type Scheduler struct {
	registry   Pending
	backlog    Backlog
	prober     Prober
	dispatcher Dispatcher
	interval   time.Duration

	mu     sync.Mutex
	online *bool
}

// NewScheduler creates a scheduler. interval <= 0 uses DefaultInterval.
// A nil backlog disables the flush for records without a registration.
func NewScheduler(registry Pending, backlog Backlog, prober Prober, dispatcher Dispatcher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		registry:   registry,
		backlog:    backlog,
		prober:     prober,
		dispatcher: dispatcher,
		interval:   interval,
	}
}

// Online reports the last observed connectivity. ok is false before the
// first tick.
func (s *Scheduler) Online() (online, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online == nil {
		return false, false
	}
	return *s.online, true
}

// Tick runs one probe. The first result and every change afterwards are
// dispatched as connectivity events. While online every registered tag is
// dispatched as a sync event; when no tag fired but records are still
// pending, a flush is dispatched instead, so a record whose registration was
// lost or cleared early is still delivered.
func (s *Scheduler) Tick(ctx context.Context) {
	err := s.prober.Probe(ctx)
	online := err == nil

	s.mu.Lock()
	changed := s.online == nil || *s.online != online
	s.online = &online
	s.mu.Unlock()

	if changed {
		if online {
			slog.Info("connectivity restored")
		} else {
			slog.Info("connectivity lost", "error", err)
		}
		s.dispatcher.DispatchConnectivity(online)
	}

	if !online {
		return
	}

	tags, err := s.registry.Pending(ctx)
	if err != nil {
		slog.Warn("list trigger registrations failed", "error", err)
		return
	}
	for _, tag := range tags {
		slog.Debug("firing trigger", "tag", tag)
		s.dispatcher.DispatchSync(tag)
	}
	if len(tags) > 0 || s.backlog == nil {
		return
	}

	n, err := s.backlog.CountPending(ctx)
	if err != nil {
		slog.Warn("count pending records failed", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("flushing unregistered backlog", "pending", n)
		s.dispatcher.DispatchFlush()
	}
}

// Run ticks immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
