/*
Package sqlite provides the SQLite-backed implementation of loyalty.TxStore.

PURPOSE:
  Durable persistence for the three loyalty tables. In production the same
  patterns apply to a hosted PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements exist for loyalty_transactions
  - A CHECK constraint enforces the credit-XOR-debit invariant at the
    storage layer as a second line of defense behind Transaction.Validate

KEY TABLES:
  loyalty_transactions:   Immutable ledger of all jewel movements
  user_loyalty_summaries: Materialized per-guest aggregate
  redemption_requests:    Manual redemption workflow state

CONCURRENCY:
  WAL mode for reader/writer concurrency, plus a process-level mutex so a
  WithTx unit is never interleaved with another writer. FinalizeRequest
  additionally uses a status check-and-set so a request leaves pending at
  most once, regardless of callers.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  defer store.Close()
  engine := loyalty.NewEngine(store, loyalty.DefaultTierPolicy(), loyalty.DefaultRules())
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Top-g99/luxe-staycations-sub007/loyalty"
)

// Store implements loyalty.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger (append-only)
	CREATE TABLE IF NOT EXISTS loyalty_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		jewels_earned INTEGER NOT NULL DEFAULT 0,
		jewels_redeemed INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL,
		note TEXT,
		expires_at TEXT,
		request_id TEXT,
		created_at TEXT NOT NULL,
		CHECK (jewels_earned >= 0 AND jewels_redeemed >= 0),
		CHECK ((jewels_earned > 0) != (jewels_redeemed > 0))
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON loyalty_transactions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_request
		ON loyalty_transactions(request_id) WHERE request_id IS NOT NULL;

	-- Materialized per-guest aggregate
	CREATE TABLE IF NOT EXISTS user_loyalty_summaries (
		user_id TEXT PRIMARY KEY,
		total_jewels_earned INTEGER NOT NULL DEFAULT 0,
		total_jewels_redeemed INTEGER NOT NULL DEFAULT 0,
		active_jewels_balance INTEGER NOT NULL DEFAULT 0,
		tier TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Manual redemption workflow
	CREATE TABLE IF NOT EXISTS redemption_requests (
		id TEXT PRIMARY KEY,
		guest_id TEXT NOT NULL,
		jewels_to_redeem INTEGER NOT NULL,
		redemption_reason TEXT,
		contact_preference TEXT,
		special_notes TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		admin_notes TEXT,
		processed_at TEXT,
		processed_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_guest
		ON redemption_requests(guest_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON redemption_requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx so the row-level helpers
// can run inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER (loyalty.Store interface)
// =============================================================================

// AppendTransaction adds a ledger entry. There is no update or delete.
func (s *Store) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, q queryer, tx loyalty.Transaction) error {
	query := `
		INSERT INTO loyalty_transactions
		(id, user_id, jewels_earned, jewels_redeemed, reason, note, expires_at, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.JewelsEarned,
		tx.JewelsRedeemed,
		tx.Reason,
		nullString(tx.Note),
		nullTime(tx.ExpiresAt),
		nullString(string(tx.RequestID)),
		tx.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "CHECK constraint failed") {
			return &loyalty.InvalidEntryError{Detail: err.Error()}
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// TransactionsByUser returns a guest's ledger in insertion order.
func (s *Store) TransactionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	return transactionsByUser(ctx, s.db, userID)
}

func transactionsByUser(ctx context.Context, q queryer, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	query := `
		SELECT id, user_id, jewels_earned, jewels_redeemed, reason, note, expires_at, request_id, created_at
		FROM loyalty_transactions
		WHERE user_id = ?
		ORDER BY rowid ASC
	`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []loyalty.Transaction
	for rows.Next() {
		var (
			tx        loyalty.Transaction
			note      sql.NullString
			expiresAt sql.NullString
			requestID sql.NullString
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.JewelsEarned, &tx.JewelsRedeemed,
			&tx.Reason, &note, &expiresAt, &requestID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.Note = note.String
		tx.RequestID = loyalty.RequestID(requestID.String)
		tx.CreatedAt = parseTime(createdAt)
		if expiresAt.Valid {
			t := parseTime(expiresAt.String)
			tx.ExpiresAt = &t
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// SUMMARIES
// =============================================================================

// GetSummary returns the cached summary row, or nil if the guest has none.
func (s *Store) GetSummary(ctx context.Context, userID loyalty.UserID) (*loyalty.Summary, error) {
	return getSummary(ctx, s.db, userID)
}

func getSummary(ctx context.Context, q queryer, userID loyalty.UserID) (*loyalty.Summary, error) {
	var (
		sum                  loyalty.Summary
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, total_jewels_earned, total_jewels_redeemed, active_jewels_balance, tier, created_at, updated_at
		FROM user_loyalty_summaries WHERE user_id = ?`,
		userID,
	).Scan(&sum.UserID, &sum.TotalEarned, &sum.TotalRedeemed, &sum.ActiveBalance, &sum.Tier, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	sum.CreatedAt = parseTime(createdAt)
	sum.UpdatedAt = parseTime(updatedAt)
	return &sum, nil
}

// SaveSummary inserts or overwrites the cached row.
func (s *Store) SaveSummary(ctx context.Context, sum loyalty.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSummary(ctx, s.db, sum)
}

func saveSummary(ctx context.Context, q queryer, sum loyalty.Summary) error {
	query := `
		INSERT INTO user_loyalty_summaries
		(user_id, total_jewels_earned, total_jewels_redeemed, active_jewels_balance, tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_jewels_earned = excluded.total_jewels_earned,
			total_jewels_redeemed = excluded.total_jewels_redeemed,
			active_jewels_balance = excluded.active_jewels_balance,
			tier = excluded.tier,
			updated_at = excluded.updated_at
	`

	_, err := q.ExecContext(ctx, query,
		sum.UserID,
		sum.TotalEarned,
		sum.TotalRedeemed,
		sum.ActiveBalance,
		sum.Tier,
		sum.CreatedAt.Format(time.RFC3339Nano),
		sum.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// =============================================================================
// REDEMPTION REQUESTS
// =============================================================================

// CreateRequest persists a new pending request.
func (s *Store) CreateRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createRequest(ctx, s.db, req)
}

func createRequest(ctx context.Context, q queryer, req loyalty.RedemptionRequest) error {
	query := `
		INSERT INTO redemption_requests
		(id, guest_id, jewels_to_redeem, redemption_reason, contact_preference, special_notes,
		 status, admin_notes, processed_at, processed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		req.ID,
		req.GuestID,
		req.Jewels,
		nullString(req.Reason),
		nullString(req.ContactPreference),
		nullString(req.SpecialNotes),
		req.Status,
		nullString(req.AdminNotes),
		nullTime(req.ProcessedAt),
		nullString(req.ProcessedBy),
		req.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// GetRequest returns a request by ID, or nil if absent.
func (s *Store) GetRequest(ctx context.Context, id loyalty.RequestID) (*loyalty.RedemptionRequest, error) {
	return getRequest(ctx, s.db, id)
}

const requestColumns = `id, guest_id, jewels_to_redeem, redemption_reason, contact_preference,
	special_notes, status, admin_notes, processed_at, processed_by, created_at`

func getRequest(ctx context.Context, q queryer, id loyalty.RequestID) (*loyalty.RedemptionRequest, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM redemption_requests WHERE id = ?`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests oldest-first, optionally filtered by status.
func (s *Store) ListRequests(ctx context.Context, status *loyalty.RequestStatus) ([]loyalty.RedemptionRequest, error) {
	return listRequests(ctx, s.db, status)
}

func listRequests(ctx context.Context, q queryer, status *loyalty.RequestStatus) ([]loyalty.RedemptionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM redemption_requests`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY rowid ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var reqs []loyalty.RedemptionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRequest(row scannable) (*loyalty.RedemptionRequest, error) {
	var (
		req                                        loyalty.RedemptionRequest
		reason, contact, notes, adminNotes, procBy sql.NullString
		processedAt                                sql.NullString
		createdAt                                  string
	)
	err := row.Scan(&req.ID, &req.GuestID, &req.Jewels, &reason, &contact, &notes,
		&req.Status, &adminNotes, &processedAt, &procBy, &createdAt)
	if err != nil {
		return nil, err
	}

	req.Reason = reason.String
	req.ContactPreference = contact.String
	req.SpecialNotes = notes.String
	req.AdminNotes = adminNotes.String
	req.ProcessedBy = procBy.String
	req.CreatedAt = parseTime(createdAt)
	if processedAt.Valid {
		t := parseTime(processedAt.String)
		req.ProcessedAt = &t
	}
	return &req, nil
}

// FinalizeRequest moves a request out of pending with a check-and-set on the
// stored status. Zero rows affected means another writer finalized it first.
func (s *Store) FinalizeRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return finalizeRequest(ctx, s.db, req)
}

func finalizeRequest(ctx context.Context, q queryer, req loyalty.RedemptionRequest) error {
	if !req.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", req.Status)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE redemption_requests
		SET status = ?, admin_notes = ?, processed_at = ?, processed_by = ?
		WHERE id = ? AND status = 'pending'`,
		req.Status,
		nullString(req.AdminNotes),
		nullTime(req.ProcessedAt),
		nullString(req.ProcessedBy),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := getRequest(ctx, q, req.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return loyalty.ErrRequestNotFound
		}
		return loyalty.ErrConcurrencyConflict
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (loyalty.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store mutex is held
// for the whole unit so no other writer interleaves.
func (s *Store) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes loyalty.Store calls through an open *sql.Tx. It takes no
// locks; WithTx already holds the store mutex.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) TransactionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	return transactionsByUser(ctx, ts.tx, userID)
}

func (ts *txStore) GetSummary(ctx context.Context, userID loyalty.UserID) (*loyalty.Summary, error) {
	return getSummary(ctx, ts.tx, userID)
}

func (ts *txStore) SaveSummary(ctx context.Context, sum loyalty.Summary) error {
	return saveSummary(ctx, ts.tx, sum)
}

func (ts *txStore) CreateRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	return createRequest(ctx, ts.tx, req)
}

func (ts *txStore) GetRequest(ctx context.Context, id loyalty.RequestID) (*loyalty.RedemptionRequest, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequests(ctx context.Context, status *loyalty.RequestStatus) ([]loyalty.RedemptionRequest, error) {
	return listRequests(ctx, ts.tx, status)
}

func (ts *txStore) FinalizeRequest(ctx context.Context, req loyalty.RedemptionRequest) error {
	return finalizeRequest(ctx, ts.tx, req)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for tests/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"loyalty_transactions", "user_loyalty_summaries", "redemption_requests"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
