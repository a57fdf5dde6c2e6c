/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are
  pure data carriers.
*/
package api

import (
	"time"

	"github.com/Top-g99/luxe-staycations-sub007/loyalty"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the JSON error envelope. Code identifies which rule
// failed so callers can show the right remediation.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	JewelsEarned   int64  `json:"jewels_earned"`
	JewelsRedeemed int64  `json:"jewels_redeemed"`
	Reason         string `json:"reason"`
	Note           string `json:"note,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	RequestID      string `json:"redemption_request_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toTransactionDTO(tx loyalty.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             string(tx.ID),
		UserID:         string(tx.UserID),
		JewelsEarned:   tx.JewelsEarned,
		JewelsRedeemed: tx.JewelsRedeemed,
		Reason:         string(tx.Reason),
		Note:           tx.Note,
		RequestID:      string(tx.RequestID),
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.ExpiresAt != nil {
		dto.ExpiresAt = tx.ExpiresAt.Format(time.RFC3339)
	}
	return dto
}

// SummaryDTO is the guest-facing loyalty summary.
type SummaryDTO struct {
	UserID            string   `json:"user_id"`
	TotalEarned       int64    `json:"total_jewels_earned"`
	TotalRedeemed     int64    `json:"total_jewels_redeemed"`
	ActiveBalance     int64    `json:"active_jewels_balance"`
	Tier              string   `json:"tier"`
	NextTierThreshold *int64   `json:"next_tier_threshold,omitempty"`
	JewelsToNextTier  *int64   `json:"jewels_to_next_tier,omitempty"`
	Benefits          []string `json:"benefits"`
	UpdatedAt         string   `json:"updated_at,omitempty"`
}

func toSummaryDTO(view loyalty.SummaryView) SummaryDTO {
	dto := SummaryDTO{
		UserID:            string(view.UserID),
		TotalEarned:       view.TotalEarned,
		TotalRedeemed:     view.TotalRedeemed,
		ActiveBalance:     view.ActiveBalance,
		Tier:              string(view.Tier),
		NextTierThreshold: view.NextTierThreshold,
		JewelsToNextTier:  view.JewelsToNextTier,
		Benefits:          view.Benefits,
	}
	if dto.Benefits == nil {
		dto.Benefits = []string{}
	}
	if !view.UpdatedAt.IsZero() {
		dto.UpdatedAt = view.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// RedeemResponseDTO is the result of a self-service redemption.
type RedeemResponseDTO struct {
	JewelsRedeemed   int64  `json:"jewels_redeemed"`
	DiscountAmount   string `json:"discount_amount"` // decimal currency value
	RemainingBalance int64  `json:"remaining_balance"`
}

// RedemptionRequestDTO represents a manual redemption request.
type RedemptionRequestDTO struct {
	ID                string `json:"id"`
	GuestID           string `json:"guest_id"`
	Jewels            int64  `json:"jewels_to_redeem"`
	Reason            string `json:"redemption_reason,omitempty"`
	ContactPreference string `json:"contact_preference,omitempty"`
	SpecialNotes      string `json:"special_notes,omitempty"`
	Status            string `json:"status"`
	AdminNotes        string `json:"admin_notes,omitempty"`
	ProcessedAt       string `json:"processed_at,omitempty"`
	ProcessedBy       string `json:"processed_by,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toRequestDTO(req loyalty.RedemptionRequest) RedemptionRequestDTO {
	dto := RedemptionRequestDTO{
		ID:                string(req.ID),
		GuestID:           string(req.GuestID),
		Jewels:            req.Jewels,
		Reason:            req.Reason,
		ContactPreference: req.ContactPreference,
		SpecialNotes:      req.SpecialNotes,
		Status:            string(req.Status),
		AdminNotes:        req.AdminNotes,
		ProcessedBy:       req.ProcessedBy,
		CreatedAt:         req.CreatedAt.Format(time.RFC3339),
	}
	if req.ProcessedAt != nil {
		dto.ProcessedAt = req.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

// TierDTO is one row of the tier table (display only).
type TierDTO struct {
	Name      string   `json:"name"`
	Threshold int64    `json:"threshold"`
	Benefits  []string `json:"benefits"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateEarnRequest credits jewels with an explicit amount and reason.
type CreateEarnRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	Note      string `json:"note,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"` // RFC3339
}

// BookingCompletedRequest reports a completed booking for accrual.
type BookingCompletedRequest struct {
	GuestID   string `json:"guest_id"`
	BookingID string `json:"booking_id"`
	Spend     string `json:"spend"` // decimal currency amount
}

// RedeemRequest is the self-service redemption body.
type RedeemRequest struct {
	Jewels int64 `json:"jewels"`
}

// CreateRedemptionRequest opens a manual redemption request.
type CreateRedemptionRequest struct {
	GuestID           string `json:"guest_id"`
	Jewels            int64  `json:"jewels_to_redeem"`
	Reason            string `json:"redemption_reason,omitempty"`
	ContactPreference string `json:"contact_preference,omitempty"`
	SpecialNotes      string `json:"special_notes,omitempty"`
}

// ProcessRequestBody carries the admin's decision context.
type ProcessRequestBody struct {
	AdminID string `json:"admin_id"`
	Notes   string `json:"notes,omitempty"`
}
