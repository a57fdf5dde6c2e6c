/*
engine.go - Earn and redemption operations

PURPOSE:
  The Engine is the only component that creates debit ledger entries. It
  owns every redemption business rule:
  - Self-service Redeem: minimum amount, balance check, atomic debit
  - Manual workflow: CreateRequest (soft balance check, no ledger effect),
    ProcessRequest (terminal-state guard, approval-time balance re-check,
    exactly one debit per approved request)

CONCURRENCY:
  Every ledger-append + summary-update pair for a guest runs under that
  guest's mutex AND inside one store transaction. Two concurrent Redeem
  calls whose combined amount exceeds the balance therefore cannot both
  succeed: the second sees the first's debit. Cross-guest operations
  proceed fully in parallel.

  ProcessRequest additionally finalizes the request with a check-and-set
  on status, so retries and concurrent admin actions produce at most one
  ledger side effect.

SEE ALSO:
  - summary.go: ApplyCredit/ApplyDebit used inside the transactions here
  - ledger.go: Entry validation
*/
package loyalty

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RULES - Configured redemption/earn parameters
// =============================================================================

// Rules carries the configured business parameters.
type Rules struct {
	// MinimumRedemption is the self-service redemption floor, in jewels.
	MinimumRedemption int64

	// SignupBonus is the one-time welcome credit, in jewels.
	SignupBonus int64

	// EarnRate converts booking spend to jewels (jewels per currency unit).
	EarnRate decimal.Decimal

	// EarnExpiry is how long booking/signup credits stay active.
	// Zero means credits never expire.
	EarnExpiry time.Duration
}

// DefaultRules mirrors the standard program: 100-jewel minimum, 250-jewel
// welcome bonus, 1 jewel per currency unit spent, credits valid one year.
func DefaultRules() Rules {
	return Rules{
		MinimumRedemption: 100,
		SignupBonus:       250,
		EarnRate:          decimal.NewFromInt(1),
		EarnExpiry:        365 * 24 * time.Hour,
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine exposes the loyalty core's operations. Construct one at process
// startup and share it across request handlers; it holds no per-request
// state beyond the per-guest lock table.
type Engine struct {
	store     TxStore
	ledger    *Ledger
	summaries *SummaryService
	tiers     *TierPolicy
	rules     Rules
	locks     userLocks
}

func NewEngine(store TxStore, tiers *TierPolicy, rules Rules) *Engine {
	return &Engine{
		store:     store,
		ledger:    NewLedger(store),
		summaries: NewSummaryService(store, tiers),
		tiers:     tiers,
		rules:     rules,
	}
}

// Rules returns the configured parameters (read-only).
func (e *Engine) Rules() Rules { return e.rules }

// TierPolicy returns the threshold table in use.
func (e *Engine) TierPolicy() *TierPolicy { return e.tiers }

// =============================================================================
// EARN OPERATIONS
// =============================================================================

// CreateEarn appends a credit and updates the summary in one atomic unit.
// This is the entry point for booking completions, signup bonuses, and
// manual admin credits.
func (e *Engine) CreateEarn(ctx context.Context, userID UserID, amount int64, reason Reason, note string, expiresAt *time.Time) (Transaction, Summary, error) {
	entry := Transaction{
		UserID:       userID,
		JewelsEarned: amount,
		Reason:       reason,
		Note:         note,
		ExpiresAt:    expiresAt,
	}
	// Fail fast, before taking the guest lock.
	if err := entry.Validate(); err != nil {
		return Transaction{}, Summary{}, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	var (
		stored  Transaction
		summary Summary
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		stored, err = NewLedger(s).Append(ctx, entry)
		if err != nil {
			return err
		}
		summary, err = e.summaries.ApplyCredit(ctx, s, userID, amount, expiresAt, stored.CreatedAt)
		return err
	})
	if err != nil {
		return Transaction{}, Summary{}, err
	}
	return stored, summary, nil
}

// EarnFromBooking converts a completed booking's spend to jewels at the
// configured rate and credits them with the configured expiry window.
func (e *Engine) EarnFromBooking(ctx context.Context, userID UserID, bookingID string, spend decimal.Decimal) (Transaction, Summary, error) {
	amount := JewelsForSpend(spend, e.rules.EarnRate)
	if amount <= 0 {
		return Transaction{}, Summary{}, fmt.Errorf("%w: spend %s earns no jewels", ErrInvalidAmount, spend.String())
	}
	return e.CreateEarn(ctx, userID, amount, ReasonBookingEarn, "booking "+bookingID, e.earnExpiry())
}

// GrantSignupBonus credits the configured welcome bonus.
func (e *Engine) GrantSignupBonus(ctx context.Context, userID UserID) (Transaction, Summary, error) {
	if e.rules.SignupBonus <= 0 {
		return Transaction{}, Summary{}, fmt.Errorf("%w: signup bonus is not configured", ErrInvalidAmount)
	}
	return e.CreateEarn(ctx, userID, e.rules.SignupBonus, ReasonSignupBonus, "welcome to the program", e.earnExpiry())
}

func (e *Engine) earnExpiry() *time.Time {
	if e.rules.EarnExpiry <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(e.rules.EarnExpiry)
	return &t
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// SummaryView is the dashboard-facing summary: the cached aggregate plus
// tier display data.
type SummaryView struct {
	Summary
	NextTierThreshold *int64 // nil at the top tier
	JewelsToNextTier  *int64
	Benefits          []string
}

// GetSummary returns the guest's summary view. Unknown guests read as a
// zeroed summary at the base tier rather than an error.
func (e *Engine) GetSummary(ctx context.Context, userID UserID) (SummaryView, error) {
	sum, err := e.summaries.GetOrCreate(ctx, userID)
	if err != nil {
		return SummaryView{}, err
	}

	view := SummaryView{
		Summary:  sum,
		Benefits: e.tiers.BenefitsFor(sum.Tier),
	}
	if next, ok := e.tiers.NextTierThreshold(sum.Tier); ok {
		remaining := next - sum.TotalEarned
		if remaining < 0 {
			remaining = 0
		}
		view.NextTierThreshold = &next
		view.JewelsToNextTier = &remaining
	}
	return view, nil
}

// Transactions returns the guest's full ledger, oldest first. Audit surface.
func (e *Engine) Transactions(ctx context.Context, userID UserID) ([]Transaction, error) {
	return e.ledger.ListByUser(ctx, userID)
}

// Reconcile replays the guest's ledger and overwrites the cached summary.
func (e *Engine) Reconcile(ctx context.Context, userID UserID) (Summary, error) {
	unlock := e.locks.lock(userID)
	defer unlock()
	return e.summaries.Reconcile(ctx, userID)
}

// =============================================================================
// SELF-SERVICE REDEMPTION
// =============================================================================

// RedemptionResult is what a successful self-service redemption returns.
type RedemptionResult struct {
	JewelsRedeemed   int64
	DiscountAmount   decimal.Decimal // 1 jewel = 1 currency unit
	RemainingBalance int64
}

// Redeem performs an instant redemption. The read-validate-write sequence
// runs under the guest lock inside one store transaction; a failed
// validation writes nothing.
func (e *Engine) Redeem(ctx context.Context, userID UserID, jewels int64) (RedemptionResult, error) {
	if jewels <= 0 {
		return RedemptionResult{}, fmt.Errorf("%w: redemption amount must be positive", ErrInvalidAmount)
	}
	if jewels < e.rules.MinimumRedemption {
		return RedemptionResult{}, &BelowMinimumError{Requested: jewels, Minimum: e.rules.MinimumRedemption}
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	var result RedemptionResult
	err := e.store.WithTx(ctx, func(s Store) error {
		sum, err := e.summaries.load(ctx, s, userID)
		if err != nil {
			return err
		}
		if jewels > sum.ActiveBalance {
			return &InsufficientBalanceError{UserID: userID, Available: sum.ActiveBalance, Requested: jewels}
		}

		now := time.Now().UTC()
		if _, err := NewLedger(s).Append(ctx, Transaction{
			UserID:         userID,
			JewelsRedeemed: jewels,
			Reason:         ReasonInstantRedemption,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		updated, err := e.summaries.ApplyDebit(ctx, s, userID, jewels, now)
		if err != nil {
			return err
		}

		result = RedemptionResult{
			JewelsRedeemed:   jewels,
			DiscountAmount:   DiscountValue(jewels),
			RemainingBalance: updated.ActiveBalance,
		}
		return nil
	})
	if err != nil {
		return RedemptionResult{}, err
	}
	return result, nil
}

// =============================================================================
// MANUAL REDEMPTION WORKFLOW
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// CreateRequest records a pending manual redemption. The balance check here
// is a soft one - the balance can move before an admin acts - so approval
// re-validates. No ledger entry is written.
func (e *Engine) CreateRequest(ctx context.Context, guestID UserID, jewels int64, reason, contactPreference, notes string) (RedemptionRequest, error) {
	if guestID == "" {
		return RedemptionRequest{}, fmt.Errorf("%w: missing guest id", ErrInvalidAmount)
	}
	if jewels <= 0 {
		return RedemptionRequest{}, fmt.Errorf("%w: redemption amount must be positive", ErrInvalidAmount)
	}

	sum, err := e.summaries.GetOrCreate(ctx, guestID)
	if err != nil {
		return RedemptionRequest{}, err
	}
	if jewels > sum.ActiveBalance {
		return RedemptionRequest{}, &InsufficientBalanceError{UserID: guestID, Available: sum.ActiveBalance, Requested: jewels}
	}

	req := RedemptionRequest{
		ID:                RequestID(uuid.NewString()),
		GuestID:           guestID,
		Jewels:            jewels,
		Reason:            reason,
		ContactPreference: contactPreference,
		SpecialNotes:      notes,
		Status:            RequestPending,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.store.CreateRequest(ctx, req); err != nil {
		return RedemptionRequest{}, fmt.Errorf("failed to create redemption request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests oldest-first, optionally filtered by status.
func (e *Engine) ListRequests(ctx context.Context, status *RequestStatus) ([]RedemptionRequest, error) {
	return e.store.ListRequests(ctx, status)
}

// ProcessRequest approves or rejects a pending request. Approval re-checks
// the amount against the guest's current balance; if it no longer fits, the
// request stays pending for admin retry or rejection. A request can be acted
// on at most once: the terminal-state guard plus the store's check-and-set
// guarantee exactly one ledger side effect per approved request.
func (e *Engine) ProcessRequest(ctx context.Context, id RequestID, decision Decision, adminID, notes string) (RedemptionRequest, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return RedemptionRequest{}, fmt.Errorf("unknown decision %q", decision)
	}

	// Cheap pre-checks outside the lock. The authoritative re-check happens
	// inside the transaction below.
	existing, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return RedemptionRequest{}, err
	}
	if existing == nil {
		return RedemptionRequest{}, ErrRequestNotFound
	}
	if existing.Status.Terminal() {
		return RedemptionRequest{}, ErrRequestAlreadyProcessed
	}

	unlock := e.locks.lock(existing.GuestID)
	defer unlock()

	var processed RedemptionRequest
	err = e.store.WithTx(ctx, func(s Store) error {
		cur, err := s.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrRequestNotFound
		}
		if cur.Status.Terminal() {
			return ErrRequestAlreadyProcessed
		}

		now := time.Now().UTC()
		cur.AdminNotes = notes
		cur.ProcessedAt = &now
		cur.ProcessedBy = adminID

		if decision == DecisionReject {
			cur.Status = RequestRejected
			processed = *cur
			return s.FinalizeRequest(ctx, processed)
		}

		sum, err := e.summaries.load(ctx, s, cur.GuestID)
		if err != nil {
			return err
		}
		if cur.Jewels > sum.ActiveBalance {
			return &InsufficientBalanceError{UserID: cur.GuestID, Available: sum.ActiveBalance, Requested: cur.Jewels}
		}

		if _, err := NewLedger(s).Append(ctx, Transaction{
			UserID:         cur.GuestID,
			JewelsRedeemed: cur.Jewels,
			Reason:         ReasonRedemptionApproved,
			RequestID:      cur.ID,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		if _, err := e.summaries.ApplyDebit(ctx, s, cur.GuestID, cur.Jewels, now); err != nil {
			return err
		}

		cur.Status = RequestApproved
		processed = *cur
		return s.FinalizeRequest(ctx, processed)
	})
	if err != nil {
		return RedemptionRequest{}, err
	}
	return processed, nil
}

// =============================================================================
// PER-GUEST LOCK TABLE
// =============================================================================

// userLocks serializes mutations per guest. Entries are created on first use
// and kept for the process lifetime; the table is tiny relative to traffic.
type userLocks struct {
	mu sync.Mutex
	m  map[UserID]*sync.Mutex
}

func (ul *userLocks) lock(userID UserID) (unlock func()) {
	ul.mu.Lock()
	if ul.m == nil {
		ul.m = make(map[UserID]*sync.Mutex)
	}
	l, ok := ul.m[userID]
	if !ok {
		l = &sync.Mutex{}
		ul.m[userID] = l
	}
	ul.mu.Unlock()

	l.Lock()
	return l.Unlock
}
