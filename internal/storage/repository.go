package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kwitansi/internal/core"
	"kwitansi/internal/ports"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser stores a staff account with an already hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, fullName, passwordHash string) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, full_name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, fullName, passwordHash, r.stamp())
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ports.ErrConflict
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, _ := res.LastInsertId()
	return core.User{ID: id, Username: username, FullName: fullName}, nil
}

// UserByUsername returns the user and its password hash.
func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, string, error) {
	var u core.User
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, password_hash FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.FullName, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", ports.ErrNotFound
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user: %w", err)
	}
	return u, hash, nil
}

func (r *SQLiteRepository) ListCustomers(ctx context.Context, p ports.ListParams) (core.Page[core.Customer], error) {
	where, args := "", []any{}
	if q := strings.TrimSpace(p.Search); q != "" {
		where = ` WHERE name LIKE ? OR email LIKE ?`
		like := "%" + q + "%"
		args = append(args, like, like)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return core.Page[core.Customer]{}, fmt.Errorf("count customers: %w", err)
	}
	state := pageState(p, total)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, phone, address FROM customers`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, state.PageSize, state.Offset())...)
	if err != nil {
		return core.Page[core.Customer]{}, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address); err != nil {
			return core.Page[core.Customer]{}, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return core.Page[core.Customer]{}, fmt.Errorf("iterate customers: %w", err)
	}
	return core.NewPage(out, total, state.Page, state.PageSize), nil
}

func (r *SQLiteRepository) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	return r.customerWhere(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) FindCustomerByEmail(ctx context.Context, email string) (core.Customer, error) {
	return r.customerWhere(ctx, `email = ?`, strings.TrimSpace(email))
}

func (r *SQLiteRepository) customerWhere(ctx context.Context, cond string, arg any) (core.Customer, error) {
	var c core.Customer
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, address FROM customers WHERE `+cond, arg).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Customer{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (name, email, phone, address, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, strings.TrimSpace(c.Email), c.Phone, c.Address, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Customer{}, ports.ErrConflict
		}
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	c.Email = strings.TrimSpace(c.Email)
	return c, nil
}

// upsertCustomer refreshes the contact details of the customer with the
// same email, or inserts a new one, and returns its id.
func (r *SQLiteRepository) upsertCustomer(ctx context.Context, q dbtx, c core.Customer) (int64, error) {
	now := r.stamp()
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address,
			updated_at = excluded.updated_at
		RETURNING id`,
		c.Name, strings.TrimSpace(c.Email), c.Phone, c.Address, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert customer: %w", err)
	}
	return id, nil
}

const receiptColumns = `
	r.id, r.receipt_number, r.token, r.order_details, r.receipt_date,
	r.total_amount, r.paid_amount, r.is_paid, r.created_at, r.updated_at,
	c.id, c.name, c.email, c.phone, c.address,
	u.id, u.username, u.full_name`

const receiptJoins = `
	FROM receipts r
	JOIN customers c ON c.id = r.customer_id
	LEFT JOIN users u ON u.id = r.created_by`

func (r *SQLiteRepository) ListReceipts(ctx context.Context, p ports.ListParams) (core.Page[core.Receipt], error) {
	where, args := "", []any{}
	if q := strings.TrimSpace(p.Search); q != "" {
		where = ` WHERE r.receipt_number LIKE ? OR c.name LIKE ? OR c.email LIKE ?`
		like := "%" + q + "%"
		args = append(args, like, like, like)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+receiptJoins+where, args...).Scan(&total); err != nil {
		return core.Page[core.Receipt]{}, fmt.Errorf("count receipts: %w", err)
	}
	state := pageState(p, total)

	rows, err := r.db.QueryContext(ctx,
		`SELECT`+receiptColumns+receiptJoins+where+` ORDER BY r.id DESC LIMIT ? OFFSET ?`,
		append(args, state.PageSize, state.Offset())...)
	if err != nil {
		return core.Page[core.Receipt]{}, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []core.Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return core.Page[core.Receipt]{}, err
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return core.Page[core.Receipt]{}, fmt.Errorf("iterate receipts: %w", err)
	}
	return core.NewPage(out, total, state.Page, state.PageSize), nil
}

// GetReceipt loads a receipt with its items. Access control is the
// caller's concern.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	rc, err := scanReceipt(r.db.QueryRowContext(ctx, `SELECT`+receiptColumns+receiptJoins+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Receipt{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT name, unit_price, quantity, total FROM receipt_items WHERE receipt_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("list receipt items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it core.ReceiptItem
		if err := rows.Scan(&it.Name, &it.UnitPrice, &it.Quantity, &it.Total); err != nil {
			return core.Receipt{}, fmt.Errorf("scan receipt item: %w", err)
		}
		rc.Items = append(rc.Items, it)
	}
	return rc, rows.Err()
}

// CreateReceipt stores a prepared draft. The customer is matched by email.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, d core.ReceiptDraft, createdBy *core.User, token string) (int64, error) {
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		customerID, err := r.upsertCustomer(ctx, tx, d.Customer())
		if err != nil {
			return err
		}

		// numbers stay with a receipt when its date moves, so the
		// sequence follows the highest number issued for the day
		prefix := core.ReceiptNumberPrefix(date.Time)
		var seq int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(CAST(substr(receipt_number, ?) AS INTEGER)), 0) + 1
			FROM receipts WHERE receipt_number LIKE ?`,
			len(prefix)+1, prefix+"%").Scan(&seq); err != nil {
			return fmt.Errorf("next receipt sequence: %w", err)
		}

		var userID sql.NullInt64
		if createdBy != nil && createdBy.ID > 0 {
			userID = sql.NullInt64{Int64: createdBy.ID, Valid: true}
		}
		now := r.stamp()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO receipts (receipt_number, token, customer_id, order_details, receipt_date,
				total_amount, paid_amount, is_paid, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			core.ReceiptNumber(date.Time, seq), token, customerID, d.OrderDetails, date.String(),
			int64(d.TotalAmount), int64(d.PaidAmount()), d.IsPaid, userID, now, now)
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		id, _ = res.LastInsertId()
		return insertItems(ctx, tx, id, d.Items)
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Receipt saved to SQLite",
		"id", id,
		"total_amount", int64(d.TotalAmount),
		"items", len(d.Items),
		"is_paid", d.IsPaid)
	return id, nil
}

// UpdateReceipt replaces the receipt contents and queues it for ledger sync.
func (r *SQLiteRepository) UpdateReceipt(ctx context.Context, id int64, d core.ReceiptDraft) error {
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		customerID, err := r.upsertCustomer(ctx, tx, d.Customer())
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE receipts SET customer_id = ?, order_details = ?, receipt_date = ?,
				total_amount = ?, paid_amount = ?, is_paid = ?, updated_at = ?,
				version = version + 1, sync_status = 'pending'
			WHERE id = ?`,
			customerID, d.OrderDetails, date.String(), int64(d.TotalAmount), int64(d.PaidAmount()),
			d.IsPaid, r.stamp(), id)
		if err != nil {
			return fmt.Errorf("update receipt: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ports.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_items WHERE receipt_id = ?`, id); err != nil {
			return fmt.Errorf("clear receipt items: %w", err)
		}
		return insertItems(ctx, tx, id, d.Items)
	})
}

// MarkPaid settles the full amount.
func (r *SQLiteRepository) MarkPaid(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE receipts SET is_paid = 1, paid_amount = total_amount, updated_at = ?,
			version = version + 1, sync_status = 'pending'
		WHERE id = ?`, r.stamp(), id)
	if err != nil {
		return fmt.Errorf("mark receipt paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// DailyPaidTotals sums paid amounts per receipt date within [from, to].
func (r *SQLiteRepository) DailyPaidTotals(ctx context.Context, from, to time.Time) (map[string]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT receipt_date, COALESCE(SUM(paid_amount), 0)
		FROM receipts
		WHERE receipt_date BETWEEN ? AND ?
		GROUP BY receipt_date`,
		from.Format(core.DateLayout), to.Format(core.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("daily paid totals: %w", err)
	}
	defer rows.Close()

	out := map[string]core.Money{}
	for rows.Next() {
		var day string
		var total int64
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		out[day] = core.Money(total)
	}
	return out, rows.Err()
}

// CountReceipts counts receipts dated in the given month.
func (r *SQLiteRepository) CountReceipts(ctx context.Context, year int, month time.Month) (int, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM receipts WHERE receipt_date >= ? AND receipt_date < ?`,
		first.Format(core.DateLayout), next.Format(core.DateLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return n, nil
}

// PendingSyncReceipt is the minimal data needed to queue a ledger sync.
type PendingSyncReceipt struct {
	ID        int64
	Version   int64
	UpdatedAt time.Time
}

// GetPendingSyncReceipts returns receipts whose latest version has not
// reached the ledger, oldest first.
func (r *SQLiteRepository) GetPendingSyncReceipts(ctx context.Context, limit int) ([]PendingSyncReceipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, updated_at FROM receipts
		WHERE sync_status != 'synced'
		ORDER BY updated_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync receipts: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncReceipt
	for rows.Next() {
		var p PendingSyncReceipt
		var updated string
		if err := rows.Scan(&p.ID, &p.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan pending receipt: %w", err)
		}
		p.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReceiptVersion returns the current version of a receipt.
func (r *SQLiteRepository) ReceiptVersion(ctx context.Context, id int64) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM receipts WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ports.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get receipt version: %w", err)
	}
	return v, nil
}

// MarkSynced records that version reached the ledger. A newer local edit
// keeps the receipt pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE receipts SET synced_version = ?, synced_at = ?,
			sync_status = CASE WHEN version = ? THEN 'synced' ELSE sync_status END
		WHERE id = ?`, version, r.stamp(), version, id)
	if err != nil {
		return fmt.Errorf("mark receipt synced: %w", err)
	}
	slog.InfoContext(ctx, "Receipt marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError flags a receipt whose ledger sync failed. The sweep
// retries it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE receipts SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark receipt sync error: %w", err)
	}
	slog.WarnContext(ctx, "Receipt marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

func insertItems(ctx context.Context, tx *sql.Tx, receiptID int64, items []core.ReceiptItem) error {
	for i, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO receipt_items (receipt_id, position, name, unit_price, quantity, total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			receiptID, i, it.Name, int64(it.UnitPrice), it.Quantity, int64(it.Total)); err != nil {
			return fmt.Errorf("insert receipt item %d: %w", i, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (core.Receipt, error) {
	var (
		rc                 core.Receipt
		date               string
		created, updated   string
		userID             sql.NullInt64
		username, fullName sql.NullString
	)
	err := s.Scan(
		&rc.ID, &rc.ReceiptNumber, &rc.Token, &rc.OrderDetails, &date,
		&rc.TotalAmount, &rc.PaidAmount, &rc.IsPaid, &created, &updated,
		&rc.Customer.ID, &rc.Customer.Name, &rc.Customer.Email, &rc.Customer.Phone, &rc.Customer.Address,
		&userID, &username, &fullName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Receipt{}, err
		}
		return core.Receipt{}, fmt.Errorf("scan receipt: %w", err)
	}
	rc.Date, _ = core.ParseDate(date)
	rc.CreatedAt, _ = time.Parse(timeLayout, created)
	rc.UpdatedAt, _ = time.Parse(timeLayout, updated)
	if userID.Valid {
		rc.CreatedBy = &core.User{ID: userID.Int64, Username: username.String, FullName: fullName.String}
	}
	return rc, nil
}

func pageState(p ports.ListParams, total int) core.PageState {
	s := core.PageState{Page: p.Page, PageSize: p.Limit}
	if s.PageSize < 1 {
		s.PageSize = core.DefaultPageSize
	}
	return s.Clamp(core.LastPage(total, s.PageSize))
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
