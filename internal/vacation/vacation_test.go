package vacation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/store"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{"valid", "2024-06-01", "2024-06-10", false},
		{"single day", "2024-06-01", "2024-06-01", false},
		{"missing start", "", "2024-06-10", true},
		{"missing end", "2024-06-01", "", true},
		{"reversed", "2024-06-10", "2024-06-01", true},
		{"bad format", "06/01/2024", "2024-06-10", true},
		{"impossible date", "2024-02-30", "2024-03-01", true},
		{"whitespace", "  2024-06-01 ", "2024-06-02", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDates)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDays(t *testing.T) {
	v, err := New("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Days())
	assert.Equal(t, 0, Vacation{}.Days())
}

func TestPayload_Canonical(t *testing.T) {
	v, err := New("2024-06-01", "2024-06-10")
	require.NoError(t, err)
	p, err := v.Payload()
	require.NoError(t, err)
	assert.Equal(t, `{"end_date":"2024-06-10","start_date":"2024-06-01"}`, p)
}

func TestSortNewestFirst(t *testing.T) {
	vs := []Vacation{
		{StartDate: "2023-01-01", EndDate: "2023-01-02"},
		{StartDate: "2024-05-01", EndDate: "2024-05-03"},
		{StartDate: "2023-12-24", EndDate: "2024-01-02"},
	}
	SortNewestFirst(vs)
	assert.Equal(t, []string{"2024-05-01", "2023-12-24", "2023-01-01"},
		[]string{vs[0].StartDate, vs[1].StartDate, vs[2].StartDate})
}

type recordingEnqueuer struct {
	payloads []string
	status   ir.DeliveryStatus
	err      error
}

func (r *recordingEnqueuer) EnqueueForDelivery(_ context.Context, payload string) (ir.DeliveryStatus, error) {
	r.payloads = append(r.payloads, payload)
	return r.status, r.err
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestService_RecordAndHistory(t *testing.T) {
	st := openStore(t)
	enq := &recordingEnqueuer{status: ir.StatusAccepted}
	svc := NewService(st, enq)
	ctx := context.Background()

	r, err := svc.Record(ctx, Vacation{StartDate: "2023-07-01", EndDate: "2023-07-14"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusAccepted, r.Status)
	assert.Equal(t, int64(1), r.ID)

	_, err = svc.Record(ctx, Vacation{StartDate: "2024-01-05", EndDate: "2024-01-06"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`{"end_date":"2023-07-14","start_date":"2023-07-01"}`,
		`{"end_date":"2024-01-06","start_date":"2024-01-05"}`,
	}, enq.payloads)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Vacation{
		{StartDate: "2024-01-05", EndDate: "2024-01-06"},
		{StartDate: "2023-07-01", EndDate: "2023-07-14"},
	}, history)
}

func TestService_RecordRejectsInvalid(t *testing.T) {
	st := openStore(t)
	enq := &recordingEnqueuer{}
	svc := NewService(st, enq)
	ctx := context.Background()

	_, err := svc.Record(ctx, Vacation{StartDate: "2024-01-10", EndDate: "2024-01-01"})
	assert.ErrorIs(t, err, ErrInvalidDates)
	assert.Empty(t, enq.payloads)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_EnqueueFailureKeepsHistory(t *testing.T) {
	st := openStore(t)
	boom := ir.NewPersistenceError("enqueue", errors.New("disk full"))
	svc := NewService(st, &recordingEnqueuer{err: boom})
	ctx := context.Background()

	_, err := svc.Record(ctx, Vacation{StartDate: "2024-01-01", EndDate: "2024-01-02"})
	require.Error(t, err)
	assert.True(t, ir.IsPersistenceError(err))

	history, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
