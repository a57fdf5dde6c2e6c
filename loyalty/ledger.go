/*
ledger.go - Append-only transaction log and persistence interfaces

PURPOSE:
  The Ledger is the immutable source of truth for all jewel movements.
  Every earn, redemption, and adjustment is recorded here. Balances are
  always reproducible by replaying transactions.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. CREDIT XOR DEBIT: A single entry never both earns and redeems.
  3. AUDITABLE: Every balance change is traceable with reason and reference.

CORRECTIONS:
  Mistakes are never edited in place. An admin records a new offsetting
  entry (manual-adjustment credit or redemption debit); both remain in the
  ledger and the net effect is the correction.

SEE ALSO:
  - store/sqlite: Durable implementation
  - store/memory: Test implementation
*/
package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STORE - Persistence interface (append-only for transactions)
// =============================================================================

// Store handles persistence for the three loyalty tables.
// IMPORTANT: transactions are APPEND-ONLY. The interface deliberately has no
// way to update or delete a ledger entry.
type Store interface {
	// AppendTransaction persists a ledger entry. The ONLY transaction write.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// TransactionsByUser returns a guest's entries in insertion order.
	TransactionsByUser(ctx context.Context, userID UserID) ([]Transaction, error)

	// GetSummary returns the cached summary, or nil if the guest has none yet.
	GetSummary(ctx context.Context, userID UserID) (*Summary, error)

	// SaveSummary inserts or overwrites the cached summary row.
	SaveSummary(ctx context.Context, s Summary) error

	// CreateRequest persists a new pending redemption request.
	CreateRequest(ctx context.Context, req RedemptionRequest) error

	// GetRequest returns a request, or nil if it doesn't exist.
	GetRequest(ctx context.Context, id RequestID) (*RedemptionRequest, error)

	// ListRequests returns requests oldest-first, optionally filtered by status.
	ListRequests(ctx context.Context, status *RequestStatus) ([]RedemptionRequest, error)

	// FinalizeRequest moves a request from pending to a terminal status using
	// a check-and-set on the stored status. Returns ErrConcurrencyConflict if
	// the stored row is no longer pending.
	FinalizeRequest(ctx context.Context, req RedemptionRequest) error
}

// TxStore wraps Store with transaction support. Every ledger-append +
// summary-update pair runs inside WithTx so the two can never diverge.
type TxStore interface {
	Store

	// WithTx executes fn atomically. If fn returns an error the transaction
	// is rolled back; otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// LEDGER - Validated append + read surface over a Store
// =============================================================================

// Ledger validates entries before they reach storage and assigns the
// service-generated identifier and timestamp. Store-generated values are
// never relied on.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Append validates the entry, stamps ID/CreatedAt if unset, and persists it.
// On success the returned entry is permanently visible to subsequent reads.
func (l *Ledger) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = TransactionID(uuid.NewString())
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if err := l.store.AppendTransaction(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// ListByUser returns all entries for a guest in insertion order.
func (l *Ledger) ListByUser(ctx context.Context, userID UserID) ([]Transaction, error) {
	return l.store.TransactionsByUser(ctx, userID)
}
