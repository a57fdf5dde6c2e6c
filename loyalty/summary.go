/*
summary.go - Materialized per-guest summary maintenance

PURPOSE:
  The summary row is the fast read path for dashboards and the accumulator
  the redemption engine consults to authorize debits. ApplyCredit and
  ApplyDebit take the Store they should write through so the engine can run
  them inside the same transaction as the matching ledger append - the
  ledger and the cache are never updated in separate atomic units.

RECONCILE:
  Incremental maintenance counts a credit as active at the moment it lands;
  credits that expire later are only filtered out when the ledger is
  replayed. Reconcile recomputes the row from a full replay and overwrites
  it - the repair path, and the subject of the reconciliation invariant
  tests.
*/
package loyalty

import (
	"context"
	"fmt"
	"time"
)

// SummaryService maintains the cached Summary rows.
type SummaryService struct {
	store TxStore
	tiers *TierPolicy
}

func NewSummaryService(store TxStore, tiers *TierPolicy) *SummaryService {
	return &SummaryService{store: store, tiers: tiers}
}

// GetOrCreate returns the stored summary, or a zeroed one for guests with no
// transactions yet. The zeroed summary is not persisted; rows are created
// lazily by the first credit or debit.
func (ss *SummaryService) GetOrCreate(ctx context.Context, userID UserID) (Summary, error) {
	return ss.load(ctx, ss.store, userID)
}

func (ss *SummaryService) load(ctx context.Context, s Store, userID UserID) (Summary, error) {
	existing, err := s.GetSummary(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load summary: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}
	return Summary{UserID: userID, Tier: ss.tiers.TierFor(0)}, nil
}

// ApplyCredit folds a credit into the summary through the given store view.
// Call it inside the same transaction as the ledger append.
func (ss *SummaryService) ApplyCredit(ctx context.Context, s Store, userID UserID, amount int64, expiresAt *time.Time, now time.Time) (Summary, error) {
	sum, err := ss.load(ctx, s, userID)
	if err != nil {
		return Summary{}, err
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = now
	}

	sum.TotalEarned += amount
	if expiresAt == nil || expiresAt.After(now) {
		sum.ActiveBalance += amount
	}
	sum.Tier = ss.tiers.TierFor(sum.TotalEarned)
	sum.UpdatedAt = now

	if err := s.SaveSummary(ctx, sum); err != nil {
		return Summary{}, fmt.Errorf("failed to save summary: %w", err)
	}
	return sum, nil
}

// ApplyDebit folds a debit into the summary through the given store view.
// Call it inside the same transaction as the ledger append.
func (ss *SummaryService) ApplyDebit(ctx context.Context, s Store, userID UserID, amount int64, now time.Time) (Summary, error) {
	sum, err := ss.load(ctx, s, userID)
	if err != nil {
		return Summary{}, err
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = now
	}

	sum.TotalRedeemed += amount
	sum.ActiveBalance -= amount
	if sum.ActiveBalance < 0 {
		// The engine validates balances before every debit; a clamp here
		// means an invariant was violated upstream.
		sum.ActiveBalance = 0
	}
	sum.Tier = ss.tiers.TierFor(sum.TotalEarned)
	sum.UpdatedAt = now

	if err := s.SaveSummary(ctx, sum); err != nil {
		return Summary{}, fmt.Errorf("failed to save summary: %w", err)
	}
	return sum, nil
}

// Reconcile recomputes the summary from a full ledger replay and overwrites
// the cached row.
func (ss *SummaryService) Reconcile(ctx context.Context, userID UserID) (Summary, error) {
	var result Summary
	err := ss.store.WithTx(ctx, func(s Store) error {
		entries, err := s.TransactionsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}

		now := time.Now().UTC()
		snap := Compute(entries, now)

		existing, err := ss.load(ctx, s, userID)
		if err != nil {
			return err
		}
		created := existing.CreatedAt
		if created.IsZero() {
			created = now
		}

		result = Summary{
			UserID:        userID,
			TotalEarned:   snap.TotalEarned,
			TotalRedeemed: snap.TotalRedeemed,
			ActiveBalance: snap.ActiveBalance,
			Tier:          ss.tiers.TierFor(snap.TotalEarned),
			CreatedAt:     created,
			UpdatedAt:     now,
		}
		return s.SaveSummary(ctx, result)
	})
	if err != nil {
		return Summary{}, err
	}
	return result, nil
}
