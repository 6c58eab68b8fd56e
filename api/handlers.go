/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the request ledger via REST. Handles HTTP request/response and
  JSON serialization; every rule lives in the timeoff package.

ENDPOINTS:
  Leave requests:
    GET    /leave-requests?status=&userId=&mine=   List requests
    POST   /leave-requests                         Create a pending request
    GET    /leave-requests/{id}                    Get one request
    PATCH  /leave-requests/{id}                    Decide, edit or cancel

  Balances:
    GET    /balances                 All non-admin users
    GET    /balances/{userId}        One user (id, name or legacy index)
    PATCH  /balances/{userId}        Administrative override

  Other:
    GET    /holidays                 Normalized holiday dates
    GET    /audit?userId=&requestId=&action=
    GET    /scenarios, POST /scenarios/load
    GET    /healthz, GET /metrics

REQUEST FLOW:
  1. Read the body (bounded)
  2. factory.Parse* turns it into a canonical ledger input
  3. Call the ledger
  4. Serialize response, or map the error to a status

ERROR HANDLING:
  Errors are returned as {"error": msg, "details": [...]}:
  - 400: Validation errors (details lists every violated rule)
  - 404: Unknown request or user
  - 409: State-machine conflict, or a write lost to a concurrent writer
  - 500: Store failures

SECURITY NOTE:
  No authentication. Actor ids in bodies are trusted as given.

SEE ALSO:
  - dto.go: Response wrappers
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger   *timeoff.Ledger
	Store    generic.DocumentStore
	Holidays *timeoff.HolidayCache
	Logger   *zap.Logger

	// StoreKind is reported by /healthz.
	StoreKind string

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler over ledger and the store it writes to.
// holidays may be nil when no cache is in use.
func NewHandler(ledger *timeoff.Ledger, store generic.DocumentStore, holidays *timeoff.HolidayCache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Ledger:   ledger,
		Store:    store,
		Holidays: holidays,
		Logger:   logger,
	}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// ListRequests returns requests filtered by status, userId and mine.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.Ledger.List(r.Context(), timeoff.ListFilter{
		Status: timeoff.RequestStatus(q.Get("status")),
		UserID: q.Get("userId"),
		Mine:   q.Get("mine"),
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// CreateRequest builds and stores a pending request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	in, err := factory.ParseRequestInput(body)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	req, err := h.Ledger.Create(r.Context(), in)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetRequest returns one request by id.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// PatchRequest decides a pending request or modifies an approved one,
// depending on the body.
func (h *Handler) PatchRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	patch, err := factory.ParseLeavePatch(body)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	switch patch.Kind {
	case factory.PatchDecision:
		res, err := h.Ledger.Decide(r.Context(), id, patch.Decision)
		if err != nil {
			h.writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res.Request)
	case factory.PatchModify:
		req, err := h.Ledger.Modify(r.Context(), id, patch.Modification)
		if err != nil {
			h.writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

// =============================================================================
// BALANCES
// =============================================================================

// ListBalances returns balances of every non-admin user.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	views, err := h.Ledger.AllBalances(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetBalance returns one user's balances.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	view, err := h.Ledger.Balance(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PatchBalance overrides a user's balances directly.
func (h *Handler) PatchBalance(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	o, err := factory.ParseBalanceOverride(body)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	view, err := h.Ledger.OverrideBalance(r.Context(), chi.URLParam(r, "userId"), o)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// =============================================================================
// HOLIDAYS, AUDIT, HEALTH
// =============================================================================

// ListHolidays returns the normalized holiday dates.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	dates, err := h.Ledger.HolidayDates(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// ListAudit returns audit entries, oldest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.Ledger.Audit(r.Context(), generic.AuditFilter{
		UserID:    q.Get("userId"),
		RequestID: q.Get("requestId"),
		Action:    generic.AuditAction(q.Get("action")),
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Healthz reports liveness and the active store.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	scenario := h.currentScenario
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok", Store: h.StoreKind, Scenario: scenario})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return nil, false
	}
	return body, true
}

// writeLedgerError maps ledger errors to HTTP statuses. Server-side failures
// are logged; client errors are not.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, generic.ErrValidation):
		writeError(w, http.StatusBadRequest, generic.Message(err), generic.Details(err))
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, generic.Message(err), nil)
	case errors.Is(err, generic.ErrConflict):
		writeError(w, http.StatusConflict, generic.Message(err), nil)
	case errors.Is(err, generic.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "the ledger changed concurrently, retry the request", nil)
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details []string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
