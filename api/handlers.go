/*
handlers.go - HTTP handlers for the loyalty API

PURPOSE:
  Exposes the loyalty engine via REST. Handles HTTP request/response and
  JSON serialization, delegating every business rule to the engine.

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: malformed input, invalid entries/amounts
  - 404: unknown request id
  - 409: already-processed requests, check-and-set conflicts (retryable)
  - 422: business rules the caller can remediate (minimum, balance) -
         reported with distinct codes since the remediation differs
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Top-g99/luxe-staycations-sub007/loyalty"
)

// Handler holds the handlers' single dependency: the loyalty engine,
// constructed once at startup and injected here.
type Handler struct {
	Engine *loyalty.Engine
}

func NewHandler(engine *loyalty.Engine) *Handler {
	return &Handler{Engine: engine}
}

// =============================================================================
// EARN ENDPOINTS
// =============================================================================

// CreateTransaction credits jewels with an explicit amount.
// POST /api/loyalty/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateEarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at (use RFC3339)", err)
			return
		}
		expiresAt = &t
	}

	tx, _, err := h.Engine.CreateEarn(r.Context(),
		loyalty.UserID(req.UserID), req.Amount, loyalty.Reason(req.Reason), req.Note, expiresAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// BookingCompleted converts booking spend to jewels.
// POST /api/loyalty/bookings/complete
func (h *Handler) BookingCompleted(w http.ResponseWriter, r *http.Request) {
	var req BookingCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	spend, err := decimal.NewFromString(req.Spend)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid spend amount", err)
		return
	}

	tx, _, err := h.Engine.EarnFromBooking(r.Context(), loyalty.UserID(req.GuestID), req.BookingID, spend)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// SignupBonus credits the configured welcome bonus.
// POST /api/loyalty/guests/{id}/signup-bonus
func (h *Handler) SignupBonus(w http.ResponseWriter, r *http.Request) {
	guestID := loyalty.UserID(chi.URLParam(r, "id"))

	tx, _, err := h.Engine.GrantSignupBonus(r.Context(), guestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

// GetSummary returns a guest's summary; unknown guests read as zeroed.
// GET /api/loyalty/guests/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	guestID := loyalty.UserID(chi.URLParam(r, "id"))

	view, err := h.Engine.GetSummary(r.Context(), guestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(view))
}

// GetTransactions returns a guest's full ledger, oldest first.
// GET /api/loyalty/guests/{id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	guestID := loyalty.UserID(chi.URLParam(r, "id"))

	txs, err := h.Engine.Transactions(r.Context(), guestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTiers returns the tier threshold table.
// GET /api/loyalty/tiers
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	levels := h.Engine.TierPolicy().Levels()

	dtos := make([]TierDTO, len(levels))
	for i, l := range levels {
		benefits := l.Benefits
		if benefits == nil {
			benefits = []string{}
		}
		dtos[i] = TierDTO{Name: string(l.Tier), Threshold: l.Threshold, Benefits: benefits}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Reconcile recomputes a guest's summary from the ledger.
// POST /api/loyalty/guests/{id}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	guestID := loyalty.UserID(chi.URLParam(r, "id"))

	if _, err := h.Engine.Reconcile(r.Context(), guestID); err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.Engine.GetSummary(r.Context(), guestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(view))
}

// =============================================================================
// REDEMPTION ENDPOINTS
// =============================================================================

// Redeem performs an instant self-service redemption.
// POST /api/loyalty/guests/{id}/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	guestID := loyalty.UserID(chi.URLParam(r, "id"))

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.Redeem(r.Context(), guestID, req.Jewels)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RedeemResponseDTO{
		JewelsRedeemed:   result.JewelsRedeemed,
		DiscountAmount:   result.DiscountAmount.String(),
		RemainingBalance: result.RemainingBalance,
	})
}

// CreateRedemptionRequest opens a pending manual redemption.
// POST /api/loyalty/redemption-requests
func (h *Handler) CreateRedemptionRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Engine.CreateRequest(r.Context(),
		loyalty.UserID(req.GuestID), req.Jewels, req.Reason, req.ContactPreference, req.SpecialNotes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListRedemptionRequests lists requests, optionally filtered by ?status=.
// GET /api/loyalty/redemption-requests
func (h *Handler) ListRedemptionRequests(w http.ResponseWriter, r *http.Request) {
	var status *loyalty.RequestStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := loyalty.RequestStatus(s)
		if st != loyalty.RequestPending && !st.Terminal() {
			writeError(w, http.StatusBadRequest, "Unknown status filter", nil)
			return
		}
		status = &st
	}

	reqs, err := h.Engine.ListRequests(r.Context(), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RedemptionRequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest approves a pending request (re-checks the balance).
// POST /api/loyalty/redemption-requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.processRequest(w, r, loyalty.DecisionApprove)
}

// RejectRequest rejects a pending request; no ledger effect.
// POST /api/loyalty/redemption-requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.processRequest(w, r, loyalty.DecisionReject)
}

func (h *Handler) processRequest(w http.ResponseWriter, r *http.Request, decision loyalty.Decision) {
	id := loyalty.RequestID(chi.URLParam(r, "id"))

	var body ProcessRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.AdminID == "" {
		writeError(w, http.StatusBadRequest, "admin_id is required", nil)
		return
	}

	processed, err := h.Engine.ProcessRequest(r.Context(), id, decision, body.AdminID, body.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(processed))
}

// Health is the liveness probe.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError translates loyalty errors into the HTTP taxonomy. The
// code field tells callers which rule failed.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, loyalty.ErrBelowMinimumRedemption):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Redemption below minimum", Code: "below_minimum_redemption", Details: err.Error()})
	case errors.Is(err, loyalty.ErrInsufficientBalance):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Insufficient jewel balance", Code: "insufficient_balance", Details: err.Error()})
	case errors.Is(err, loyalty.ErrRequestAlreadyProcessed):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Request already processed", Code: "request_already_processed", Details: err.Error()})
	case loyalty.IsRetryable(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Conflicting update, retry", Code: "concurrency_conflict", Details: err.Error()})
	case loyalty.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "Not found", Code: "not_found", Details: err.Error()})
	case errors.Is(err, loyalty.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid amount", Code: "invalid_amount", Details: err.Error()})
	case errors.Is(err, loyalty.ErrInvalidEntry):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid ledger entry", Code: "invalid_entry", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Internal error", Code: "internal", Details: err.Error()})
	}
}
