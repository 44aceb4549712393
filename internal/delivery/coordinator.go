package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/vacatrack/internal/broadcast"
	"github.com/roach88/vacatrack/internal/ir"
)

// OutcomeChannel is the broadcast channel delivery outcomes are published on.
const OutcomeChannel = "delivery"

// Queue is the pending-write store as seen by the coordinator.
// Implemented by store.Store.
type Queue interface {
	Enqueue(ctx context.Context, payload string) (int64, error)
	ListPending(ctx context.Context) ([]ir.PendingRecord, error)
	RemovePending(ctx context.Context, id int64) error
}

// Registrar registers deferred-delivery triggers.
// Implemented by trigger.Registry.
type Registrar interface {
	Register(ctx context.Context, tag string) error
}

// Coordinator is the Delivery Coordinator.
//
// Thread-safety: safe for concurrent use; overlapping FlushAll calls are
// allowed.
type Coordinator struct {
	queue     Queue
	acceptor  Acceptor
	hub       *broadcast.Hub
	registrar Registrar
	tag       string
	ids       IDGenerator
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRegistrar enables the deferred path: EnqueueForDelivery persists the
// record and registers tag instead of delivering immediately.
func WithRegistrar(r Registrar, tag string) Option {
	return func(c *Coordinator) {
		c.registrar = r
		c.tag = tag
	}
}

// WithIDGenerator overrides the flush id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) {
		c.ids = g
	}
}

// WithHub publishes outcomes on hub instead of a private one.
func WithHub(h *broadcast.Hub) Option {
	return func(c *Coordinator) {
		c.hub = h
	}
}

// New creates a Coordinator. Without WithRegistrar, triggers are treated as
// unsupported and EnqueueForDelivery takes the immediate path.
func New(q Queue, a Acceptor, opts ...Option) *Coordinator {
	c := &Coordinator{
		queue:    q,
		acceptor: a,
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hub == nil {
		c.hub = broadcast.NewHub(0)
	}
	return c
}

// Deferred reports whether EnqueueForDelivery takes the deferred path.
func (c *Coordinator) Deferred() bool {
	return c.registrar != nil
}

// Tag returns the trigger tag registered on the deferred path.
func (c *Coordinator) Tag() string {
	return c.tag
}

// DeliverOne hands rec to the acceptor. nil means success.
func (c *Coordinator) DeliverOne(ctx context.Context, rec ir.PendingRecord) error {
	return c.acceptor.Deliver(ctx, rec)
}

// FlushAll attempts every pending record once. Delivered records are removed;
// failed ones stay. One record's failure never stops the others.
//
// The only error returned is a failure to list the store; per-record
// failures are counted in the report.
func (c *Coordinator) FlushAll(ctx context.Context) (ir.FlushReport, error) {
	report := ir.FlushReport{FlushID: c.ids.Generate()}

	records, err := c.queue.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("flush %s: %w", report.FlushID, err)
	}

	slog.Debug("flush starting", "flush_id", report.FlushID, "pending", len(records))

	for _, rec := range records {
		if err := c.DeliverOne(ctx, rec); err != nil {
			slog.Warn("delivery failed",
				"flush_id", report.FlushID,
				"record_id", rec.ID,
				"error", err,
			)
			report.Failed++
			c.publish(ir.DeliveryOutcome{
				Kind:     ir.OutcomeFailed,
				RecordID: rec.ID,
				FlushID:  report.FlushID,
				Error:    err.Error(),
			})
			continue
		}

		// Delivered. If the remove fails the record is delivered again on a
		// later flush, which at-least-once allows.
		if err := c.queue.RemovePending(ctx, rec.ID); err != nil {
			slog.Warn("remove after delivery failed",
				"flush_id", report.FlushID,
				"record_id", rec.ID,
				"error", err,
			)
		}
		report.Delivered++
		c.publish(ir.DeliveryOutcome{
			Kind:     ir.OutcomeDelivered,
			RecordID: rec.ID,
			FlushID:  report.FlushID,
		})
	}

	slog.Info("flush complete",
		"flush_id", report.FlushID,
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	return report, nil
}

// EnqueueForDelivery hands a payload to the core.
//
// Deferred path: the payload is persisted, the trigger tag registered, and
// StatusAccepted returned. A persistence failure is returned to the caller.
//
// Immediate path: one delivery attempt, nothing persisted.
// StatusDelivered or StatusFailed is returned with a nil error.
func (c *Coordinator) EnqueueForDelivery(ctx context.Context, payload string) (ir.DeliveryStatus, error) {
	if !c.Deferred() {
		return c.deliverNow(ctx, payload), nil
	}

	id, err := c.queue.Enqueue(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("enqueue for delivery: %w", err)
	}
	slog.Debug("record queued", "record_id", id)

	// The record is already durable. A missing registration only delays
	// delivery until the next opportunistic flush.
	if err := c.registrar.Register(ctx, c.tag); err != nil {
		slog.Warn("trigger registration failed",
			"tag", c.tag,
			"record_id", id,
			"error", err,
		)
	}

	c.publish(ir.DeliveryOutcome{Kind: ir.OutcomeQueued, RecordID: id})
	return ir.StatusAccepted, nil
}

func (c *Coordinator) deliverNow(ctx context.Context, payload string) ir.DeliveryStatus {
	if err := c.DeliverOne(ctx, ir.PendingRecord{Payload: payload}); err != nil {
		slog.Warn("immediate delivery failed", "error", err)
		c.publish(ir.DeliveryOutcome{Kind: ir.OutcomeFailed, Error: err.Error()})
		return ir.StatusFailed
	}
	c.publish(ir.DeliveryOutcome{Kind: ir.OutcomeDelivered})
	return ir.StatusDelivered
}

// OnDeliveryOutcome calls listener for every outcome published after the
// call, until cancel is invoked. Outcomes are advisory: a slow listener
// misses some.
func (c *Coordinator) OnDeliveryOutcome(listener func(ir.DeliveryOutcome)) (cancel func()) {
	sub := c.hub.Subscribe(OutcomeChannel)
	go func() {
		for msg := range sub.C {
			if outcome, ok := msg.Data.(ir.DeliveryOutcome); ok {
				listener(outcome)
			}
		}
	}()
	return sub.Close
}

func (c *Coordinator) publish(outcome ir.DeliveryOutcome) {
	c.hub.Publish(OutcomeChannel, string(outcome.Kind), outcome)
}
