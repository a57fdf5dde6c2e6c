/*
Package memory provides an in-memory loyalty.TxStore for tests and demos.

Data lives in plain slices/maps guarded by a mutex. WithTx gets rollback
semantics by snapshotting state before the callback and restoring it on
error - good enough for a single-process test store, not a durability
layer.
*/
package memory

import (
	"context"
	"sync"

	"github.com/Top-g99/luxe-staycations-sub007/loyalty"
)

// Store implements loyalty.TxStore in memory.
type Store struct {
	mu           sync.Mutex
	transactions []loyalty.Transaction
	summaries    map[loyalty.UserID]loyalty.Summary
	requests     map[loyalty.RequestID]loyalty.RedemptionRequest
	requestOrder []loyalty.RequestID
}

func New() *Store {
	return &Store{
		summaries: make(map[loyalty.UserID]loyalty.Summary),
		requests:  make(map[loyalty.RequestID]loyalty.RedemptionRequest),
	}
}

// =============================================================================
// loyalty.Store
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendTransaction(tx)
	return nil
}

func (s *Store) appendTransaction(tx loyalty.Transaction) {
	s.transactions = append(s.transactions, tx)
}

func (s *Store) TransactionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionsByUser(userID), nil
}

func (s *Store) transactionsByUser(userID loyalty.UserID) []loyalty.Transaction {
	var out []loyalty.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (s *Store) GetSummary(ctx context.Context, userID loyalty.UserID) (*loyalty.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSummary(userID), nil
}

func (s *Store) getSummary(userID loyalty.UserID) *loyalty.Summary {
	sum, ok := s.summaries[userID]
	if !ok {
		return nil
	}
	return &sum
}

func (s *Store) SaveSummary(ctx context.Context, sum loyalty.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.UserID] = sum
	return nil
}

func (s *Store) CreateRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createRequest(req)
	return nil
}

func (s *Store) createRequest(req loyalty.RedemptionRequest) {
	s.requests[req.ID] = req
	s.requestOrder = append(s.requestOrder, req.ID)
}

func (s *Store) GetRequest(ctx context.Context, id loyalty.RequestID) (*loyalty.RedemptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRequest(id), nil
}

func (s *Store) getRequest(id loyalty.RequestID) *loyalty.RedemptionRequest {
	req, ok := s.requests[id]
	if !ok {
		return nil
	}
	return &req
}

func (s *Store) ListRequests(ctx context.Context, status *loyalty.RequestStatus) ([]loyalty.RedemptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRequests(status), nil
}

func (s *Store) listRequests(status *loyalty.RequestStatus) []loyalty.RedemptionRequest {
	var out []loyalty.RedemptionRequest
	for _, id := range s.requestOrder {
		req := s.requests[id]
		if status == nil || req.Status == *status {
			out = append(out, req)
		}
	}
	return out
}

func (s *Store) FinalizeRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeRequest(req)
}

func (s *Store) finalizeRequest(req loyalty.RedemptionRequest) error {
	existing, ok := s.requests[req.ID]
	if !ok {
		return loyalty.ErrRequestNotFound
	}
	// Check-and-set: only a stored pending row may be finalized.
	if existing.Status != loyalty.RequestPending {
		return loyalty.ErrConcurrencyConflict
	}
	s.requests[req.ID] = req
	return nil
}

// =============================================================================
// loyalty.TxStore
// =============================================================================

// WithTx executes fn under the store mutex. State is snapshotted first and
// restored if fn fails, giving all-or-nothing semantics.
func (s *Store) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.clone()
	if err := fn(&txView{store: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type state struct {
	transactions []loyalty.Transaction
	summaries    map[loyalty.UserID]loyalty.Summary
	requests     map[loyalty.RequestID]loyalty.RedemptionRequest
	requestOrder []loyalty.RequestID
}

func (s *Store) clone() state {
	snap := state{
		transactions: append([]loyalty.Transaction(nil), s.transactions...),
		summaries:    make(map[loyalty.UserID]loyalty.Summary, len(s.summaries)),
		requests:     make(map[loyalty.RequestID]loyalty.RedemptionRequest, len(s.requests)),
		requestOrder: append([]loyalty.RequestID(nil), s.requestOrder...),
	}
	for k, v := range s.summaries {
		snap.summaries[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	return snap
}

func (s *Store) restore(snap state) {
	s.transactions = snap.transactions
	s.summaries = snap.summaries
	s.requests = snap.requests
	s.requestOrder = snap.requestOrder
}

// txView routes Store calls to the locked store without re-locking.
type txView struct {
	store *Store
}

func (t *txView) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	t.store.appendTransaction(tx)
	return nil
}

func (t *txView) TransactionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	return t.store.transactionsByUser(userID), nil
}

func (t *txView) GetSummary(ctx context.Context, userID loyalty.UserID) (*loyalty.Summary, error) {
	return t.store.getSummary(userID), nil
}

func (t *txView) SaveSummary(ctx context.Context, sum loyalty.Summary) error {
	t.store.summaries[sum.UserID] = sum
	return nil
}

func (t *txView) CreateRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	t.store.createRequest(req)
	return nil
}

func (t *txView) GetRequest(ctx context.Context, id loyalty.RequestID) (*loyalty.RedemptionRequest, error) {
	return t.store.getRequest(id), nil
}

func (t *txView) ListRequests(ctx context.Context, status *loyalty.RequestStatus) ([]loyalty.RedemptionRequest, error) {
	return t.store.listRequests(status), nil
}

func (t *txView) FinalizeRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	return t.store.finalizeRequest(req)
}
