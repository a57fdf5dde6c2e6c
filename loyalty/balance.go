/*
balance.go - Pure balance derivation from ledger entries

PURPOSE:
  Computes a guest's lifetime totals and active balance from a slice of
  ledger entries. No side effects. Re-running from a full ledger replay
  must produce exactly what the incrementally-maintained summary holds;
  divergence is a correctness bug surfaced by Reconcile.

EXPIRY MODEL:
  Expiry is a calculation-time filter: a credit whose ExpiresAt has passed
  no longer counts toward the active balance, but lifetime TotalEarned
  (which drives the tier) is unaffected. There is no scheduled write-off
  job.
*/
package loyalty

import "time"

// BalanceSnapshot is the computed state of one guest's ledger at a point
// in time.
type BalanceSnapshot struct {
	UserID        UserID
	AsOf          time.Time
	TotalEarned   int64
	TotalRedeemed int64
	ActiveBalance int64
}

// Compute derives totals from entries as of the given instant.
//
//   - TotalEarned: sum of all credits, lifetime, ignoring expiry.
//   - TotalRedeemed: sum of all debits.
//   - ActiveBalance: non-expired credits minus all debits, clamped at zero.
//
// The clamp should never engage while the redemption engine's invariants
// hold; a clamped result indicates a bug upstream.
func Compute(entries []Transaction, asOf time.Time) BalanceSnapshot {
	snap := BalanceSnapshot{AsOf: asOf}

	var activeEarned int64
	for _, e := range entries {
		if snap.UserID == "" {
			snap.UserID = e.UserID
		}
		snap.TotalEarned += e.JewelsEarned
		snap.TotalRedeemed += e.JewelsRedeemed
		if e.JewelsEarned > 0 && (e.ExpiresAt == nil || e.ExpiresAt.After(asOf)) {
			activeEarned += e.JewelsEarned
		}
	}

	snap.ActiveBalance = activeEarned - snap.TotalRedeemed
	if snap.ActiveBalance < 0 {
		snap.ActiveBalance = 0
	}
	return snap
}
