package delivery

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"

	"github.com/roach88/vacatrack/internal/ir"
)

// Acceptor hands a single record to the remote side. A nil error means the
// record was accepted and may be removed from the pending store.
//
// Implementations must tolerate receiving the same record more than once.
type Acceptor interface {
	Deliver(ctx context.Context, rec ir.PendingRecord) error
}

// AcceptorFunc adapts a function to Acceptor.
type AcceptorFunc func(ctx context.Context, rec ir.PendingRecord) error

// Deliver calls f.
func (f AcceptorFunc) Deliver(ctx context.Context, rec ir.PendingRecord) error {
	return f(ctx, rec)
}

// IdempotencyHeader carries ir.DeliveryKey on every HTTP delivery attempt.
const IdempotencyHeader = "Idempotency-Key"

// RecordHeader carries the pending record id.
const RecordHeader = "X-Vacatrack-Record"

// HTTPAcceptor POSTs payloads to an endpoint.
type HTTPAcceptor struct {
	endpoint    string
	contentType string
	client      *http.Client
}

// NewHTTPAcceptor creates an acceptor posting to endpoint. An empty
// contentType defaults to application/json.
func NewHTTPAcceptor(endpoint, contentType string, client *http.Client) *HTTPAcceptor {
	if contentType == "" {
		contentType = "application/json"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAcceptor{endpoint: endpoint, contentType: contentType, client: client}
}

// Deliver POSTs rec.Payload. Any 2xx answer is success; other statuses are
// ir Rejected errors and transport failures are ir NetworkErrors.
func (a *HTTPAcceptor) Deliver(ctx context.Context, rec ir.PendingRecord) error {
	id := strconv.FormatInt(rec.ID, 10)
	key, err := ir.DeliveryKey(rec)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader([]byte(rec.Payload)))
	if err != nil {
		return ir.NewNetworkError("deliver", id, err)
	}
	req.Header.Set("Content-Type", a.contentType)
	req.Header.Set("User-Agent", "vacatrack/"+ir.AgentVersion)
	req.Header.Set(IdempotencyHeader, key)
	req.Header.Set(RecordHeader, id)

	resp, err := a.client.Do(req)
	if err != nil {
		return ir.NewNetworkError("deliver", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ir.NewRejectedError("deliver", id, resp.StatusCode)
	}
	return nil
}

// OracleAcceptor simulates a remote acceptor that succeeds with a fixed
// probability. A fixed seed makes the sequence of outcomes reproducible.
//
// Thread-safety: safe for concurrent use.
type OracleAcceptor struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOracleAcceptor creates an oracle succeeding with probability rate.
// A zero seed picks a random one.
func NewOracleAcceptor(rate float64, seed uint64) *OracleAcceptor {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &OracleAcceptor{
		rate: rate,
		rng:  rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Deliver succeeds or rejects according to the oracle's rate.
func (o *OracleAcceptor) Deliver(ctx context.Context, rec ir.PendingRecord) error {
	if err := ctx.Err(); err != nil {
		return ir.NewNetworkError("deliver", strconv.FormatInt(rec.ID, 10), err)
	}
	o.mu.Lock()
	roll := o.rng.Float64()
	o.mu.Unlock()

	if roll < o.rate {
		return nil
	}
	return ir.NewRejectedError("oracle", strconv.FormatInt(rec.ID, 10), 0)
}
