package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/vacation"
)

// maxBody caps JSON request bodies on the API routes.
const maxBody = 1 << 20

// Handler returns the HTTP surface: the JSON API under /api and the
// interceptor for everything else.
func (a *Agent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Get("/pending", a.handleListPending)
		r.Post("/pending", a.handleEnqueue)
		r.Get("/vacations", a.handleHistory)
		r.Post("/vacations", a.handleRecord)
		r.Post("/flush", a.handleFlush)
	})
	r.NotFound(a.interceptor.ServeHTTP)
	r.MethodNotAllowed(a.interceptor.ServeHTTP)
	return r
}

type enqueueRequest struct {
	Payload string `json:"payload"`
}

type enqueueResponse struct {
	Status ir.DeliveryStatus `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (a *Agent) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *Agent) handleListPending(w http.ResponseWriter, r *http.Request) {
	records, err := a.store.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []ir.PendingRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *Agent) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Payload == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "payload required"})
		return
	}

	status, err := a.coordinator.EnqueueForDelivery(r.Context(), req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, statusCode(status), enqueueResponse{Status: status})
}

func (a *Agent) handleRecord(w http.ResponseWriter, r *http.Request) {
	var v vacation.Vacation
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	receipt, err := a.vacations.Record(r.Context(), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, statusCode(receipt.Status), receipt)
}

func (a *Agent) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.vacations.History(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *Agent) handleFlush(w http.ResponseWriter, r *http.Request) {
	report, err := a.coordinator.FlushAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// statusCode maps a delivery status onto the HTTP answer.
func statusCode(s ir.DeliveryStatus) int {
	switch s {
	case ir.StatusAccepted:
		return http.StatusAccepted
	case ir.StatusFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	code := http.StatusInternalServerError

	var e *ir.Error
	if errors.As(err, &e) {
		resp.Code = string(e.Code)
	}
	switch {
	case errors.Is(err, vacation.ErrInvalidDates):
		code = http.StatusBadRequest
	case ir.IsPersistenceError(err):
		code = http.StatusServiceUnavailable
	}

	slog.Warn("api request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
