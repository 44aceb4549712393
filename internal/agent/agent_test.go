package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vacatrack/internal/config"
	"github.com/roach88/vacatrack/internal/delivery"
	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/testutil"
	"github.com/roach88/vacatrack/internal/trigger"
)

var assets = map[string]string{
	"/index.html":                    "<html>vacation tracker</html>",
	"/style.css":                     "body{}",
	"/app.js":                        "console.log(1)",
	"/vacationTracker.json":          `{"name":"Vacation Tracker"}`,
	"/assets/icons/icon-512X512.png": "png",
}

// switchAcceptor accepts while ok is true.
type switchAcceptor struct {
	ok    atomic.Bool
	calls atomic.Int32
}

func (s *switchAcceptor) Deliver(context.Context, ir.PendingRecord) error {
	s.calls.Add(1)
	if s.ok.Load() {
		return nil
	}
	return errors.New("acceptor unavailable")
}

type fixture struct {
	agent    *Agent
	origin   *testutil.Origin
	acceptor *switchAcceptor
	cfg      *config.Config
}

func newFixture(t *testing.T, deferred bool, opts ...Option) *fixture {
	t.Helper()
	origin := testutil.NewOrigin(t, assets)

	cfg := config.Default()
	cfg.Database = filepath.Join(t.TempDir(), "agent.db")
	cfg.Origin = origin.URL
	cfg.Delivery.Deferred = deferred

	acc := &switchAcceptor{}
	acc.ok.Store(true)

	all := append([]Option{
		WithHTTPClient(origin.Client()),
		WithAcceptor(acc),
		WithIDGenerator(testutil.NewFixedIDGenerator("fixed-id")),
	}, opts...)
	a, err := New(cfg, all...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return &fixture{agent: a, origin: origin, acceptor: acc, cfg: cfg}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStart_InstallsActivatesAndQueuesForeground(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	require.False(t, fx.agent.Cache().Controlling())
	require.NoError(t, fx.agent.Start(ctx))

	status, err := fx.agent.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Controlling)
	assert.Equal(t, "fixed-id", status.AgentID)
	assert.Equal(t, []ir.SnapshotInfo{{Name: "vacation-tracker-v1", Entries: 5}}, status.Snapshots)

	ev, ok := fx.agent.queue.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, EventForeground, ev.Type)
}

func TestNew_RestoresControlAndID(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, fx.agent.Start(ctx))
	require.NoError(t, fx.agent.Close())

	again, err := New(fx.cfg,
		WithHTTPClient(fx.origin.Client()),
		WithIDGenerator(testutil.NewFixedIDGenerator("other-id")))
	require.NoError(t, err)
	defer again.Close()

	assert.True(t, again.Cache().Controlling(), "an activated version controls after restart")
	assert.Equal(t, "fixed-id", again.ID())
}

func TestHandleSync_ClearsOnlyAfterCleanFlush(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	a := fx.agent

	status, err := a.Coordinator().EnqueueForDelivery(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusAccepted, status)

	tags, err := a.Registry().Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vacation-sync"}, tags)

	fx.acceptor.ok.Store(false)
	require.NoError(t, a.handle(ctx, Event{Type: EventSync, Tag: "vacation-sync"}))
	tags, _ = a.Registry().Pending(ctx)
	assert.Equal(t, []string{"vacation-sync"}, tags, "a failed flush keeps the registration")

	fx.acceptor.ok.Store(true)
	require.NoError(t, a.handle(ctx, Event{Type: EventSync, Tag: "vacation-sync"}))
	tags, _ = a.Registry().Pending(ctx)
	assert.Empty(t, tags)

	n, err := a.Store().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Firing again after clearing is harmless.
	require.NoError(t, a.handle(ctx, Event{Type: EventSync, Tag: "vacation-sync"}))
}

func TestHandle_UnknownTagIsCleared(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, fx.agent.Registry().Register(ctx, "stale"))

	require.NoError(t, fx.agent.handle(ctx, Event{Type: EventSync, Tag: "stale"}))
	tags, err := fx.agent.Registry().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestHandleSync_RecordQueuedDuringFlushIsDelivered(t *testing.T) {
	var a *Agent
	var delivered []string
	acc := delivery.AcceptorFunc(func(ctx context.Context, rec ir.PendingRecord) error {
		if rec.Payload == "x" {
			status, err := a.Coordinator().EnqueueForDelivery(ctx, "y")
			require.NoError(t, err)
			require.Equal(t, ir.StatusAccepted, status)
		}
		delivered = append(delivered, rec.Payload)
		return nil
	})
	fx := newFixture(t, true,
		WithAcceptor(acc),
		WithProber(trigger.ProberFunc(func(context.Context) error { return nil })))
	a = fx.agent
	ctx := context.Background()

	_, err := a.Coordinator().EnqueueForDelivery(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, a.handle(ctx, Event{Type: EventSync, Tag: "vacation-sync"}))
	assert.Equal(t, []string{"x"}, delivered)
	tags, err := a.Registry().Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vacation-sync"}, tags, "a record left pending keeps the registration")

	// The next online tick fires the registration again and y goes out.
	a.scheduler.Tick(ctx)
	for {
		ev, ok := a.queue.TryDequeue()
		if !ok {
			break
		}
		require.NoError(t, a.handle(ctx, ev))
	}
	assert.Equal(t, []string{"x", "y"}, delivered)

	n, err := a.Store().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	tags, err = a.Registry().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestTick_FlushesRecordWithoutRegistration(t *testing.T) {
	fx := newFixture(t, true, WithProber(trigger.ProberFunc(func(context.Context) error { return nil })))
	a := fx.agent
	ctx := context.Background()

	// Stored without a trigger registration, as after a failed Register.
	_, err := a.Store().Enqueue(ctx, "orphan")
	require.NoError(t, err)

	a.scheduler.Tick(ctx)
	a.scheduler.Tick(ctx)

	var types []EventType
	for {
		ev, ok := a.queue.TryDequeue()
		if !ok {
			break
		}
		types = append(types, ev.Type)
		require.NoError(t, a.handle(ctx, ev))
	}
	assert.Equal(t, []EventType{EventConnectivity, EventFlush, EventFlush}, types)
	assert.Equal(t, int32(1), fx.acceptor.calls.Load(), "the second flush finds nothing left")

	n, err := a.Store().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandle_ConnectivityOfflineDoesNotFlush(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.agent.Coordinator().EnqueueForDelivery(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, fx.agent.handle(ctx, Event{Type: EventConnectivity, Online: false}))
	assert.Zero(t, fx.acceptor.calls.Load())

	require.NoError(t, fx.agent.handle(ctx, Event{Type: EventConnectivity, Online: true}))
	assert.Equal(t, int32(1), fx.acceptor.calls.Load())
}

func TestRun_DeliversWhenOnline(t *testing.T) {
	var online atomic.Bool
	fx := newFixture(t, true, WithProber(trigger.ProberFunc(func(context.Context) error {
		if online.Load() {
			return nil
		}
		return errors.New("offline")
	})))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := fx.agent.Coordinator().EnqueueForDelivery(ctx, "queued while offline")
	require.NoError(t, err)

	online.Store(true)
	done := make(chan error, 1)
	go func() { done <- fx.agent.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := fx.agent.Store().CountPending(context.Background())
		if err != nil || n != 0 {
			return false
		}
		tags, err := fx.agent.Registry().Pending(context.Background())
		return err == nil && len(tags) == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_StopsOnClose(t *testing.T) {
	fx := newFixture(t, true, WithProber(trigger.ProberFunc(func(context.Context) error {
		return errors.New("offline")
	})))

	done := make(chan error, 1)
	go func() { done <- fx.agent.Run(context.Background()) }()

	fx.agent.Foreground()
	fx.agent.queue.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestHandler_PendingAPI(t *testing.T) {
	fx := newFixture(t, true)
	h := fx.agent.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/pending", map[string]string{"payload": "x"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/pending", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/pending", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"payload":"x"}]`, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/flush", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"flush_id":"fixed-id","delivered":1,"failed":0}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/pending", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_ImmediatePath(t *testing.T) {
	fx := newFixture(t, false)
	h := fx.agent.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/pending", map[string]string{"payload": "x"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"delivered"}`, rec.Body.String())

	fx.acceptor.ok.Store(false)
	rec = doJSON(t, h, http.MethodPost, "/api/pending", map[string]string{"payload": "y"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"status":"failed"}`, rec.Body.String())

	n, err := fx.agent.Store().CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandler_Vacations(t *testing.T) {
	fx := newFixture(t, true)
	h := fx.agent.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/vacations",
		map[string]string{"start_date": "2024-06-10", "end_date": "2024-06-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/vacations",
		map[string]string{"start_date": "2023-01-01", "end_date": "2023-01-03"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/vacations",
		map[string]string{"start_date": "2024-06-01", "end_date": "2024-06-10"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/vacations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"start_date":"2024-06-01","end_date":"2024-06-10"},
		{"start_date":"2023-01-01","end_date":"2023-01-03"}
	]`, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/pending", nil)
	assert.JSONEq(t, `[
		{"id":1,"payload":"{\"end_date\":\"2023-01-03\",\"start_date\":\"2023-01-01\"}"},
		{"id":2,"payload":"{\"end_date\":\"2024-06-10\",\"start_date\":\"2024-06-01\"}"}
	]`, rec.Body.String())
}

func TestHandler_Status(t *testing.T) {
	fx := newFixture(t, true)
	require.NoError(t, fx.agent.Start(context.Background()))

	rec := doJSON(t, fx.agent.Handler(), http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Controlling)
	assert.True(t, status.Deferred)
	assert.Equal(t, "vacation-tracker-v1", status.Snapshot)
	assert.Equal(t, ir.AgentVersion, status.Version)
}

func TestHandler_ServesAssetsOffline(t *testing.T) {
	fx := newFixture(t, true)
	require.NoError(t, fx.agent.Start(context.Background()))
	fx.origin.SetOffline(true)
	h := fx.agent.Handler()

	req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/some/page", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get("X-Vacatrack-Source"))
	assert.Equal(t, "<html>vacation tracker</html>", rec.Body.String())
}

func TestNew_HTTPAcceptorFromConfig(t *testing.T) {
	var got atomic.Int32
	acceptor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
		assert.NotEmpty(t, r.Header.Get(delivery.IdempotencyHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer acceptor.Close()

	cfg := config.Default()
	cfg.Database = filepath.Join(t.TempDir(), "agent.db")
	cfg.Delivery.Mode = config.ModeHTTP
	cfg.Delivery.Endpoint = acceptor.URL

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.Coordinator().EnqueueForDelivery(ctx, "x")
	require.NoError(t, err)
	report, err := a.Coordinator().FlushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, int32(1), got.Load())
}
