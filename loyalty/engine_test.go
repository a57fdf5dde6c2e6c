package loyalty_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Top-g99/luxe-staycations-sub007/loyalty"
	"github.com/Top-g99/luxe-staycations-sub007/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(t *testing.T) *loyalty.Engine {
	t.Helper()
	return loyalty.NewEngine(memory.New(), loyalty.DefaultTierPolicy(), loyalty.DefaultRules())
}

// earn credits the guest and fails the test on error.
func earn(t *testing.T, e *loyalty.Engine, user string, amount int64, expiresAt *time.Time) {
	t.Helper()
	_, _, err := e.CreateEarn(context.Background(), loyalty.UserID(user), amount,
		loyalty.ReasonBookingEarn, "", expiresAt)
	require.NoError(t, err)
}

func inOneYear() *time.Time {
	t := time.Now().UTC().Add(365 * 24 * time.Hour)
	return &t
}

// =============================================================================
// EARN + SUMMARY (Earn 1500 -> silver, 1500 active)
// =============================================================================

func TestEarnThenSummary(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	earn(t, e, "guest-1", 1500, inOneYear())

	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), view.ActiveBalance)
	assert.Equal(t, int64(1500), view.TotalEarned)
	assert.Equal(t, int64(0), view.TotalRedeemed)
	assert.Equal(t, loyalty.TierSilver, view.Tier)

	require.NotNil(t, view.NextTierThreshold)
	assert.Equal(t, int64(5000), *view.NextTierThreshold)
	require.NotNil(t, view.JewelsToNextTier)
	assert.Equal(t, int64(3500), *view.JewelsToNextTier)
}

func TestEarn_RejectsInvalidEntries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, _, err := e.CreateEarn(ctx, "guest-1", 0, loyalty.ReasonBookingEarn, "", nil)
	assert.True(t, loyalty.IsClientError(err), "zero amount: %v", err)

	_, _, err = e.CreateEarn(ctx, "guest-1", -5, loyalty.ReasonBookingEarn, "", nil)
	assert.True(t, loyalty.IsClientError(err), "negative amount: %v", err)

	_, _, err = e.CreateEarn(ctx, "guest-1", 100, loyalty.Reason("cashback"), "", nil)
	assert.True(t, loyalty.IsClientError(err), "unknown reason: %v", err)

	// Nothing should have reached the ledger.
	entries, err := e.Transactions(ctx, "guest-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnknownGuestReadsAsZeroedSummary(t *testing.T) {
	e := newTestEngine(t)

	view, err := e.GetSummary(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.ActiveBalance)
	assert.Equal(t, loyalty.TierBronze, view.Tier)
	assert.NotEmpty(t, view.Benefits)
}

func TestEarnFromBooking(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Default rate is 1 jewel per currency unit, truncated.
	tx, sum, err := e.EarnFromBooking(ctx, "guest-1", "bk-42", decimal.RequireFromString("349.99"))
	require.NoError(t, err)
	assert.Equal(t, int64(349), tx.JewelsEarned)
	assert.Equal(t, loyalty.ReasonBookingEarn, tx.Reason)
	assert.Contains(t, tx.Note, "bk-42")
	require.NotNil(t, tx.ExpiresAt)
	assert.Equal(t, int64(349), sum.ActiveBalance)

	// Spend too small to earn anything is rejected, not silently dropped.
	_, _, err = e.EarnFromBooking(ctx, "guest-1", "bk-43", decimal.RequireFromString("0.50"))
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)
}

func TestGrantSignupBonus(t *testing.T) {
	e := newTestEngine(t)

	tx, sum, err := e.GrantSignupBonus(context.Background(), "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), tx.JewelsEarned)
	assert.Equal(t, loyalty.ReasonSignupBonus, tx.Reason)
	assert.Equal(t, int64(250), sum.ActiveBalance)
}

// =============================================================================
// EXPIRY
// =============================================================================

func TestExpiredCreditsCountTowardTierButNotBalance(t *testing.T) {
	// GIVEN: 5000 jewels earned on a credit that has already expired
	// WHEN: The guest's summary is reconciled
	// THEN: Active balance is 0 but tier remains gold (lifetime earnings
	//       never decay)

	e := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	earn(t, e, "guest-1", 5000, &past)

	// The cached summary already reflects this: an already-expired credit
	// never enters the active balance.
	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.ActiveBalance)
	assert.Equal(t, loyalty.TierGold, view.Tier)

	sum, err := e.Reconcile(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.ActiveBalance)
	assert.Equal(t, int64(5000), sum.TotalEarned)
	assert.Equal(t, loyalty.TierGold, sum.Tier)
}

// =============================================================================
// SELF-SERVICE REDEMPTION
// =============================================================================

func TestRedeem_BelowMinimumFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1500, inOneYear())

	_, err := e.Redeem(ctx, "guest-1", 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, loyalty.ErrBelowMinimumRedemption)

	var bme *loyalty.BelowMinimumError
	require.ErrorAs(t, err, &bme)
	assert.Equal(t, int64(100), bme.Minimum)

	// Balance untouched.
	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), view.ActiveBalance)
}

func TestRedeem_ExactMinimumSucceeds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1500, inOneYear())

	res, err := e.Redeem(ctx, "guest-1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.JewelsRedeemed)
	assert.True(t, res.DiscountAmount.Equal(decimal.NewFromInt(100)),
		"got discount %s", res.DiscountAmount)
	assert.Equal(t, int64(1400), res.RemainingBalance)

	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1400), view.ActiveBalance)
}

func TestRedeem_MinimumFailsWithoutBalance(t *testing.T) {
	// Exactly the minimum still fails if the guest cannot cover it.
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 99, inOneYear())

	_, err := e.Redeem(ctx, "guest-1", 100)
	assert.ErrorIs(t, err, loyalty.ErrInsufficientBalance)
}

func TestRedeem_InsufficientBalanceFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1500, inOneYear())

	_, err := e.Redeem(ctx, "guest-1", 100)
	require.NoError(t, err)

	_, err = e.Redeem(ctx, "guest-1", 2000)
	require.Error(t, err)

	var ibe *loyalty.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, int64(1400), ibe.Available)
	assert.Equal(t, int64(2000), ibe.Requested)
	assert.Equal(t, int64(600), ibe.Shortfall())

	// Failed attempt writes nothing: balance and ledger are unchanged.
	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1400), view.ActiveBalance)

	entries, err := e.Transactions(ctx, "guest-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRedeem_NonPositiveAmount(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Redeem(context.Background(), "guest-1", 0)
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)

	_, err = e.Redeem(context.Background(), "guest-1", -100)
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)
}

func TestRedeem_ConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	// 1000 jewels, 20 goroutines each trying to redeem 100: exactly 10 can
	// succeed, and the ledger's debits must sum to exactly the balance spent.
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1000, inOneYear())

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Redeem(ctx, "guest-1", 100)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, loyalty.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 10, succeeded)

	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.ActiveBalance)
	assert.Equal(t, int64(1000), view.TotalRedeemed)

	entries, err := e.Transactions(ctx, "guest-1")
	require.NoError(t, err)
	var debited int64
	for _, tx := range entries {
		debited += tx.JewelsRedeemed
	}
	assert.Equal(t, int64(1000), debited)
}

// =============================================================================
// MANUAL REDEMPTION WORKFLOW
// =============================================================================

func TestRequestWorkflow_RejectLeavesBalanceUntouched(t *testing.T) {
	// GIVEN: A guest with a 1400 balance and a pending 500-jewel request
	// WHEN: An admin rejects it, then another admin tries to approve it
	// THEN: The balance never moves and the second action fails

	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1500, inOneYear())
	_, err := e.Redeem(ctx, "guest-1", 100)
	require.NoError(t, err)

	req, err := e.CreateRequest(ctx, "guest-1", 500, "gift", "email", "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.RequestPending, req.Status)
	assert.NotEmpty(t, req.ID)

	processed, err := e.ProcessRequest(ctx, req.ID, loyalty.DecisionReject, "admin1", "not eligible")
	require.NoError(t, err)
	assert.Equal(t, loyalty.RequestRejected, processed.Status)
	assert.Equal(t, "admin1", processed.ProcessedBy)
	assert.Equal(t, "not eligible", processed.AdminNotes)
	require.NotNil(t, processed.ProcessedAt)

	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1400), view.ActiveBalance)

	_, err = e.ProcessRequest(ctx, req.ID, loyalty.DecisionApprove, "admin2", "")
	assert.ErrorIs(t, err, loyalty.ErrRequestAlreadyProcessed)
}

func TestRequestWorkflow_ApprovalDebitsOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1500, inOneYear())

	req, err := e.CreateRequest(ctx, "guest-1", 300, "spa voucher", "phone", "weekend stay")
	require.NoError(t, err)

	processed, err := e.ProcessRequest(ctx, req.ID, loyalty.DecisionApprove, "admin1", "enjoy")
	require.NoError(t, err)
	assert.Equal(t, loyalty.RequestApproved, processed.Status)

	view, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), view.ActiveBalance)
	assert.Equal(t, int64(300), view.TotalRedeemed)

	// Exactly one debit, carrying the request's id for the audit trail.
	entries, err := e.Transactions(ctx, "guest-1")
	require.NoError(t, err)
	var debits []loyalty.Transaction
	for _, tx := range entries {
		if tx.IsDebit() {
			debits = append(debits, tx)
		}
	}
	require.Len(t, debits, 1)
	assert.Equal(t, req.ID, debits[0].RequestID)
	assert.Equal(t, loyalty.ReasonRedemptionApproved, debits[0].Reason)

	// Re-approving is rejected and writes nothing more.
	_, err = e.ProcessRequest(ctx, req.ID, loyalty.DecisionApprove, "admin1", "")
	assert.ErrorIs(t, err, loyalty.ErrRequestAlreadyProcessed)

	entries, err = e.Transactions(ctx, "guest-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRequestWorkflow_ApprovalRechecksBalance(t *testing.T) {
	// The creation-time balance check is soft: jewels spent between request
	// and approval make the approval fail, leaving the request pending.
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 500, inOneYear())

	req, err := e.CreateRequest(ctx, "guest-1", 400, "gift", "email", "")
	require.NoError(t, err)

	_, err = e.Redeem(ctx, "guest-1", 300)
	require.NoError(t, err)

	_, err = e.ProcessRequest(ctx, req.ID, loyalty.DecisionApprove, "admin1", "")
	assert.ErrorIs(t, err, loyalty.ErrInsufficientBalance)

	// Still pending: the admin can reject it instead.
	pending := loyalty.RequestPending
	reqs, err := e.ListRequests(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, req.ID, reqs[0].ID)

	_, err = e.ProcessRequest(ctx, req.ID, loyalty.DecisionReject, "admin1", "balance spent")
	require.NoError(t, err)
}

func TestCreateRequest_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 200, inOneYear())

	_, err := e.CreateRequest(ctx, "", 100, "gift", "email", "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)

	_, err = e.CreateRequest(ctx, "guest-1", 0, "gift", "email", "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)

	_, err = e.CreateRequest(ctx, "guest-1", 5000, "gift", "email", "")
	assert.ErrorIs(t, err, loyalty.ErrInsufficientBalance)
}

func TestProcessRequest_UnknownRequestAndDecision(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ProcessRequest(ctx, "no-such-request", loyalty.DecisionApprove, "admin1", "")
	assert.ErrorIs(t, err, loyalty.ErrRequestNotFound)

	_, err = e.ProcessRequest(ctx, "no-such-request", loyalty.Decision("defer"), "admin1", "")
	assert.Error(t, err)
}

func TestListRequests_StatusFilter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	earn(t, e, "guest-1", 1000, inOneYear())

	r1, err := e.CreateRequest(ctx, "guest-1", 100, "gift", "email", "")
	require.NoError(t, err)
	r2, err := e.CreateRequest(ctx, "guest-1", 200, "upgrade", "email", "")
	require.NoError(t, err)

	_, err = e.ProcessRequest(ctx, r1.ID, loyalty.DecisionApprove, "admin1", "")
	require.NoError(t, err)

	all, err := e.ListRequests(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := loyalty.RequestPending
	got, err := e.ListRequests(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r2.ID, got[0].ID)

	approved := loyalty.RequestApproved
	got, err = e.ListRequests(ctx, &approved)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r1.ID, got[0].ID)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcileMatchesCachedSummary(t *testing.T) {
	// After an arbitrary mix of operations, replaying the ledger must land on
	// exactly the cached aggregates.
	e := newTestEngine(t)
	ctx := context.Background()

	earn(t, e, "guest-1", 2000, inOneYear())
	_, err := e.Redeem(ctx, "guest-1", 350)
	require.NoError(t, err)
	earn(t, e, "guest-1", 125, nil)
	req, err := e.CreateRequest(ctx, "guest-1", 400, "gift", "email", "")
	require.NoError(t, err)
	_, err = e.ProcessRequest(ctx, req.ID, loyalty.DecisionApprove, "admin1", "")
	require.NoError(t, err)

	cached, err := e.GetSummary(ctx, "guest-1")
	require.NoError(t, err)

	replayed, err := e.Reconcile(ctx, "guest-1")
	require.NoError(t, err)

	assert.Equal(t, cached.TotalEarned, replayed.TotalEarned)
	assert.Equal(t, cached.TotalRedeemed, replayed.TotalRedeemed)
	assert.Equal(t, cached.ActiveBalance, replayed.ActiveBalance)
	assert.Equal(t, cached.Tier, replayed.Tier)

	assert.Equal(t, int64(2125), replayed.TotalEarned)
	assert.Equal(t, int64(750), replayed.TotalRedeemed)
	assert.Equal(t, int64(1375), replayed.ActiveBalance)
	assert.Equal(t, loyalty.TierSilver, replayed.Tier)
}
