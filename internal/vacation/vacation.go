package vacation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/store"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// ErrInvalidDates reports a missing, unparsable, or reversed date pair.
var ErrInvalidDates = errors.New("invalid dates")

// Vacation is a start/end date pair, both inclusive.
type Vacation struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// New trims and validates a pair.
func New(start, end string) (Vacation, error) {
	v := Vacation{StartDate: strings.TrimSpace(start), EndDate: strings.TrimSpace(end)}
	if err := v.Validate(); err != nil {
		return Vacation{}, err
	}
	return v, nil
}

// Validate rejects a pair when either date is missing, not YYYY-MM-DD, or
// the start falls after the end. A one-day vacation (start == end) is valid.
func (v Vacation) Validate() error {
	if v.StartDate == "" || v.EndDate == "" {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidDates)
	}
	start, err := time.Parse(DateLayout, v.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date %q: want YYYY-MM-DD", ErrInvalidDates, v.StartDate)
	}
	end, err := time.Parse(DateLayout, v.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end date %q: want YYYY-MM-DD", ErrInvalidDates, v.EndDate)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidDates, v.StartDate, v.EndDate)
	}
	return nil
}

// Days returns the inclusive length of the vacation.
func (v Vacation) Days() int {
	start, err1 := time.Parse(DateLayout, v.StartDate)
	end, err2 := time.Parse(DateLayout, v.EndDate)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Payload returns the canonical JSON handed to delivery.
func (v Vacation) Payload() (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"start_date": v.StartDate,
		"end_date":   v.EndDate,
	})
	if err != nil {
		return "", fmt.Errorf("vacation payload: %w", err)
	}
	return string(data), nil
}

// SortNewestFirst orders vacations by start date, latest first. Equal start
// dates keep their relative order.
func SortNewestFirst(vs []Vacation) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].StartDate > vs[j].StartDate
	})
}

// Enqueuer hands a payload to the delivery core.
// Implemented by delivery.Coordinator.
type Enqueuer interface {
	EnqueueForDelivery(ctx context.Context, payload string) (ir.DeliveryStatus, error)
}

// Service records vacations locally and queues them for delivery.
type Service struct {
	store    *store.Store
	enqueuer Enqueuer
}

// NewService creates a Service.
func NewService(st *store.Store, e Enqueuer) *Service {
	return &Service{store: st, enqueuer: e}
}

// Receipt is the result of recording one vacation.
type Receipt struct {
	ID       int64             `json:"id"`
	Vacation Vacation          `json:"vacation"`
	Status   ir.DeliveryStatus `json:"status"`
}

// Record validates v, appends it to the history, then enqueues it for
// delivery. The history write happens first, so a vacation is shown locally
// even when its delivery fails.
func (s *Service) Record(ctx context.Context, v Vacation) (Receipt, error) {
	if err := v.Validate(); err != nil {
		return Receipt{}, err
	}
	payload, err := v.Payload()
	if err != nil {
		return Receipt{}, err
	}

	id, err := s.store.AppendVacation(ctx, v.StartDate, v.EndDate)
	if err != nil {
		return Receipt{}, fmt.Errorf("record vacation: %w", err)
	}

	status, err := s.enqueuer.EnqueueForDelivery(ctx, payload)
	if err != nil {
		return Receipt{ID: id, Vacation: v}, fmt.Errorf("record vacation: %w", err)
	}
	return Receipt{ID: id, Vacation: v, Status: status}, nil
}

// History returns recorded vacations, newest first.
func (s *Service) History(ctx context.Context) ([]Vacation, error) {
	rows, err := s.store.ListVacations(ctx)
	if err != nil {
		return nil, fmt.Errorf("vacation history: %w", err)
	}
	out := make([]Vacation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Vacation{StartDate: r.StartDate, EndDate: r.EndDate})
	}
	SortNewestFirst(out)
	return out, nil
}
