package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/billed-app/billed/internal/core/domain"
)

const billColumns = `id, email, type, name, amount, date, vat, pct, commentary, comment_admin, file_url, file_name, storage_key, status`

type BillRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *BillRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS bills (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	amount INTEGER,
	date TEXT NOT NULL DEFAULT '',
	vat TEXT NOT NULL DEFAULT '',
	pct INTEGER NOT NULL DEFAULT 20,
	commentary TEXT NOT NULL DEFAULT '',
	comment_admin TEXT NOT NULL DEFAULT '',
	file_url TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL DEFAULT '',
	storage_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bills_email ON bills(email);
CREATE INDEX IF NOT EXISTS idx_bills_date ON bills(date DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *BillRepository) Create(ctx context.Context, bill *domain.Bill) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO bills (`+billColumns+`, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		bill.ID, bill.Email, bill.Type, bill.Name, nullableAmount(bill.Amount), bill.Date, bill.VAT, bill.Pct,
		bill.Commentary, bill.CommentAdmin, bill.FileURL, bill.FileName, bill.StorageKey, string(bill.Status),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *BillRepository) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+billColumns+`
FROM bills
WHERE id = $1
`, id)

	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBillNotFound, "get bill", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan bill: %w", err)
	}
	return bill, nil
}

func (r *BillRepository) Update(ctx context.Context, bill *domain.Bill) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE bills
SET email = $2, type = $3, name = $4, amount = $5, date = $6, vat = $7, pct = $8,
	commentary = $9, comment_admin = $10, file_url = $11, file_name = $12, status = $13, updated_at = $14
WHERE id = $1
`,
		bill.ID, bill.Email, bill.Type, bill.Name, nullableAmount(bill.Amount), bill.Date, bill.VAT, bill.Pct,
		bill.Commentary, bill.CommentAdmin, bill.FileURL, bill.FileName, string(bill.Status), r.now(),
	)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bill rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrBillNotFound, "update bill", fmt.Errorf("id=%s", bill.ID))
	}
	return nil
}

func (r *BillRepository) List(ctx context.Context, email string) ([]domain.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+billColumns+`
FROM bills
WHERE ($1 = '' OR email = $1)
ORDER BY date DESC, created_at ASC
`, email)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*domain.Bill, error) {
	var bill domain.Bill
	var amount sql.NullInt64
	var status string
	err := row.Scan(
		&bill.ID, &bill.Email, &bill.Type, &bill.Name, &amount, &bill.Date, &bill.VAT, &bill.Pct,
		&bill.Commentary, &bill.CommentAdmin, &bill.FileURL, &bill.FileName, &bill.StorageKey, &status,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		n := int(amount.Int64)
		bill.Amount = &n
	}
	bill.Status = domain.BillStatus(status)
	return &bill, nil
}

func nullableAmount(amount *int) sql.NullInt64 {
	if amount == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*amount), Valid: true}
}
