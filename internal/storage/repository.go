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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"meterlog/internal/bills"
	"meterlog/internal/core"
)

// SQLiteRepository implements bills.Store and bills.UserStore over a local
// SQLite database. Bill rows live in two tables, one per utility kind.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const billColumns = "id, user_id, month, previous_reading, current_reading, consumption, rate, amount, created_at"

// List implements bills.Store. orderBy is checked against the sortable
// column whitelist before it reaches the query text.
func (r *SQLiteRepository) List(ctx context.Context, userID string, kind core.BillKind, orderBy string, desc bool) ([]core.Bill, error) {
	if !kind.IsValid() {
		return nil, core.ErrInvalidKind
	}
	if !bills.SortableColumns[orderBy] {
		return nil, bills.StoreErrorf("unsortable column %q", orderBy)
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? ORDER BY %s %s",
		billColumns, kind.Table(), orderBy, direction)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, bills.StoreErrorf("list %s: %v", kind.Table(), err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		b, err := scanBill(rows, kind)
		if err != nil {
			return nil, bills.StoreErrorf("scan %s row: %v", kind.Table(), err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, bills.StoreErrorf("iterate %s rows: %v", kind.Table(), err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, kind core.BillKind, id string) (core.Bill, error) {
	if !kind.IsValid() {
		return core.Bill{}, core.ErrInvalidKind
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", billColumns, kind.Table())
	row := r.db.QueryRowContext(ctx, query, id)
	b, err := scanBill(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, bills.ErrNotFound
	}
	if err != nil {
		return core.Bill{}, bills.StoreErrorf("get %s %s: %v", kind.Table(), id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Kind.Table(), billColumns)
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.Month, b.PreviousReading, b.CurrentReading,
		b.Consumption, b.Rate, b.Amount, b.CreatedAt)
	if err != nil {
		return core.Bill{}, bills.StoreErrorf("insert %s: %v", b.Kind.Table(), err)
	}

	slog.InfoContext(ctx, "Bill saved",
		"table", b.Kind.Table(),
		"id", b.ID,
		"month", b.Month,
		"consumption", b.Consumption,
		"amount", b.Amount)
	return b, nil
}

// Update replaces the mutable fields of one row. Owner and creation time
// never change.
func (r *SQLiteRepository) Update(ctx context.Context, b core.Bill) error {
	if err := b.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET month = ?, previous_reading = ?, current_reading = ?,
		consumption = ?, rate = ?, amount = ? WHERE id = ?`, b.Kind.Table())
	res, err := r.db.ExecContext(ctx, query,
		b.Month, b.PreviousReading, b.CurrentReading, b.Consumption, b.Rate, b.Amount, b.ID)
	if err != nil {
		return bills.StoreErrorf("update %s %s: %v", b.Kind.Table(), b.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bills.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, kind core.BillKind, id string) error {
	if !kind.IsValid() {
		return core.ErrInvalidKind
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", kind.Table()), id)
	if err != nil {
		return bills.StoreErrorf("delete %s %s: %v", kind.Table(), id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bills.ErrNotFound
	}
	slog.InfoContext(ctx, "Bill deleted", "table", kind.Table(), "id", id)
	return nil
}

// MarkSynced records a successful spreadsheet export for a bill row.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind core.BillKind, id string) error {
	if !kind.IsValid() {
		return core.ErrInvalidKind
	}
	query := fmt.Sprintf(
		"UPDATE %s SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP WHERE id = ?", kind.Table())
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return bills.StoreErrorf("mark %s %s synced: %v", kind.Table(), id, err)
	}
	return nil
}

// MarkSyncError flags a bill row whose export failed so the backup sweep
// does not retry it on every pass.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, kind core.BillKind, id string) error {
	if !kind.IsValid() {
		return core.ErrInvalidKind
	}
	query := fmt.Sprintf("UPDATE %s SET sync_status = 'error' WHERE id = ?", kind.Table())
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return bills.StoreErrorf("mark %s %s sync error: %v", kind.Table(), id, err)
	}
	return nil
}

// ListPendingSync returns bills not yet exported, oldest first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, kind core.BillKind, limit int) ([]core.Bill, error) {
	if !kind.IsValid() {
		return nil, core.ErrInvalidKind
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE sync_status = 'pending' ORDER BY created_at ASC LIMIT ?",
		billColumns, kind.Table())
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, bills.StoreErrorf("list pending %s: %v", kind.Table(), err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		b, err := scanBill(rows, kind)
		if err != nil {
			return nil, bills.StoreErrorf("scan %s row: %v", kind.Table(), err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, bills.StoreErrorf("iterate %s rows: %v", kind.Table(), err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u bills.User) (bills.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return bills.User{}, bills.ErrEmailTaken
		}
		return bills.User{}, bills.StoreErrorf("create user: %v", err)
	}
	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email)
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (bills.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (bills.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner, kind core.BillKind) (core.Bill, error) {
	b := core.Bill{Kind: kind}
	err := row.Scan(&b.ID, &b.UserID, &b.Month, &b.PreviousReading, &b.CurrentReading,
		&b.Consumption, &b.Rate, &b.Amount, &b.CreatedAt)
	return b, err
}

func scanUser(row rowScanner) (bills.User, error) {
	var u bills.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return bills.User{}, bills.ErrNotFound
	}
	if err != nil {
		return bills.User{}, bills.StoreErrorf("scan user: %v", err)
	}
	return u, nil
}
