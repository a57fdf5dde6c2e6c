/*
Package loyalty implements the Jewels loyalty core: an append-only
transaction ledger, a derived per-guest balance summary, a tier policy,
and the redemption engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger entry (credit XOR debit)
  - Reason: Closed tag set describing why jewels moved
  - Summary: Materialized per-guest aggregate (balance, totals, tier)
  - RedemptionRequest: Admin-approved manual redemption workflow entity

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified; corrections are new
     offsetting entries
  2. Single source of truth: every balance is replayable from the ledger
  3. Type Safety: Strong typing for IDs prevents mixing guest/request IDs
  4. Jewels are integer counts; currency values use decimal.Decimal

SEE ALSO:
  - ledger.go: Append validation and persistence interface
  - balance.go: Balance calculation from transactions
  - engine.go: Redemption rules
*/
package loyalty

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string
type RequestID string

// =============================================================================
// REASON - Closed tag set for ledger entries
// =============================================================================

type Reason string

const (
	ReasonBookingEarn        Reason = "booking-earn"        // Credit from a completed booking
	ReasonSignupBonus        Reason = "signup-bonus"        // One-time welcome credit
	ReasonManualAdjustment   Reason = "manual-adjustment"   // Admin correction (credit)
	ReasonInstantRedemption  Reason = "instant-redemption"  // Self-service debit
	ReasonRedemptionApproved Reason = "redemption-approved" // Debit from an approved manual request
	ReasonExpiryWriteoff     Reason = "expiry-writeoff"     // Reserved: explicit expiry entries
	ReasonOther              Reason = "other"               // Free-text reason carried in Note
)

// Valid reports whether r is a member of the closed tag set.
func (r Reason) Valid() bool {
	switch r {
	case ReasonBookingEarn, ReasonSignupBonus, ReasonManualAdjustment,
		ReasonInstantRedemption, ReasonRedemptionApproved,
		ReasonExpiryWriteoff, ReasonOther:
		return true
	}
	return false
}

// KnownReasons returns the full tag set, in a stable order.
func KnownReasons() []Reason {
	return []Reason{
		ReasonBookingEarn, ReasonSignupBonus, ReasonManualAdjustment,
		ReasonInstantRedemption, ReasonRedemptionApproved,
		ReasonExpiryWriteoff, ReasonOther,
	}
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

// Transaction is a single ledger entry. An entry is either a credit
// (JewelsEarned > 0, JewelsRedeemed == 0) or a debit (JewelsRedeemed > 0,
// JewelsEarned == 0), never both. Once appended it is never updated or
// deleted; corrections are new offsetting entries.
type Transaction struct {
	ID             TransactionID
	UserID         UserID
	JewelsEarned   int64
	JewelsRedeemed int64
	Reason         Reason
	Note           string // Free text; required context when Reason is "other"
	ExpiresAt      *time.Time
	RequestID      RequestID // Back-reference, set on redemption-approved debits
	CreatedAt      time.Time
}

// IsCredit reports whether the entry adds jewels.
func (t Transaction) IsCredit() bool { return t.JewelsEarned > 0 }

// IsDebit reports whether the entry removes jewels.
func (t Transaction) IsDebit() bool { return t.JewelsRedeemed > 0 }

// Validate enforces the credit-XOR-debit invariant and the closed reason set.
func (t Transaction) Validate() error {
	if t.UserID == "" {
		return &InvalidEntryError{Detail: "missing user id"}
	}
	if t.JewelsEarned < 0 || t.JewelsRedeemed < 0 {
		return &InvalidEntryError{Detail: "negative jewel amount"}
	}
	if t.JewelsEarned > 0 && t.JewelsRedeemed > 0 {
		return &InvalidEntryError{Detail: "entry cannot both earn and redeem"}
	}
	if t.JewelsEarned == 0 && t.JewelsRedeemed == 0 {
		return &InvalidEntryError{Detail: "entry must earn or redeem a positive amount"}
	}
	if !t.Reason.Valid() {
		return &InvalidEntryError{Detail: "unknown reason tag: " + string(t.Reason)}
	}
	if t.ExpiresAt != nil && t.JewelsEarned == 0 {
		return &InvalidEntryError{Detail: "expiry is only meaningful on credits"}
	}
	return nil
}

// =============================================================================
// SUMMARY - Materialized per-guest aggregate
// =============================================================================

// Summary is the cached read-side aggregate for one guest. It is updated in
// the same store transaction as every ledger append and must always be
// reproducible by replaying the guest's ledger (see Compute and Reconcile).
type Summary struct {
	UserID        UserID
	TotalEarned   int64 // Lifetime credits; never decreases, drives tier
	TotalRedeemed int64
	ActiveBalance int64 // Earned, not expired, not yet redeemed
	Tier          Tier
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// REDEMPTION REQUEST - Manual redemption workflow entity
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// RedemptionRequest is a guest-initiated, admin-approved redemption.
// "pending" is the only non-terminal state; approval creates exactly one
// debit Transaction carrying the request's ID.
type RedemptionRequest struct {
	ID                RequestID
	GuestID           UserID
	Jewels            int64 // Amount to redeem, always > 0
	Reason            string
	ContactPreference string
	SpecialNotes      string
	Status            RequestStatus
	AdminNotes        string
	ProcessedAt       *time.Time
	ProcessedBy       string
	CreatedAt         time.Time
}

// =============================================================================
// CURRENCY CONVERSION
// =============================================================================

// DiscountValue converts jewels to their currency value.
// 1 jewel = 1 currency unit of redeemable discount.
func DiscountValue(jewels int64) decimal.Decimal {
	return decimal.NewFromInt(jewels)
}

// JewelsForSpend converts booking spend to earned jewels at the given rate
// (jewels per currency unit), truncated toward zero.
func JewelsForSpend(spend, rate decimal.Decimal) int64 {
	return spend.Mul(rate).IntPart()
}
