package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"listou/internal/receipt/models"
	txcontext "listou/pkg/platform/tx"
)

// uniqueViolation is the Postgres error code raised by the
// (owner_id, access_key) unique constraint.
const uniqueViolation = "23505"

// PostgresStore persists receipts in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE receipts (
//	    id             UUID PRIMARY KEY,
//	    owner_id       UUID NOT NULL,
//	    access_key     CHAR(44) NOT NULL,
//	    issuer_name    TEXT NOT NULL,
//	    issuer_cnpj    TEXT NOT NULL,
//	    issue_date     DATE NOT NULL,
//	    total_value    NUMERIC(12,2) NOT NULL,
//	    discount_value NUMERIC(12,2) NOT NULL DEFAULT 0,
//	    paid_value     NUMERIC(12,2) NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    UNIQUE (owner_id, access_key)
//	);
//
//	CREATE TABLE receipt_items (
//	    id               UUID PRIMARY KEY,
//	    receipt_id       UUID NOT NULL REFERENCES receipts (id),
//	    description      TEXT NOT NULL,
//	    description_norm TEXT NOT NULL,
//	    quantity         NUMERIC(12,3) NOT NULL,
//	    unit             TEXT NOT NULL DEFAULT '',
//	    unit_value       NUMERIC(12,2) NOT NULL,
//	    total_value      NUMERIC(12,2) NOT NULL,
//	    category         TEXT NOT NULL DEFAULT ''
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed receipt store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Exists(ctx context.Context, ownerID uuid.UUID, accessKey string) (bool, error) {
	var id uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id FROM receipts WHERE owner_id = $1 AND access_key = $2`,
		ownerID, accessKey,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check access key: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) SaveReceipt(ctx context.Context, receipt *models.Receipt) (uuid.UUID, error) {
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO receipts (id, owner_id, access_key, issuer_name, issuer_cnpj,
			issue_date, total_value, discount_value, paid_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		receipt.ID, receipt.OwnerID, receipt.AccessKey, receipt.IssuerName,
		receipt.IssuerCNPJ, receipt.IssueDate, receipt.TotalValue,
		receipt.DiscountValue, receipt.PaidValue, receipt.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return uuid.Nil, ErrDuplicate
		}
		return uuid.Nil, fmt.Errorf("insert receipt: %w", err)
	}
	return receipt.ID, nil
}

func (s *PostgresStore) SaveLineItems(ctx context.Context, receiptID uuid.UUID, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(items))
	descriptions := make([]string, len(items))
	norms := make([]string, len(items))
	quantities := make([]float64, len(items))
	units := make([]string, len(items))
	unitValues := make([]float64, len(items))
	totals := make([]float64, len(items))
	categories := make([]string, len(items))
	for i, item := range items {
		id := item.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		ids[i] = id
		descriptions[i] = item.Description
		norms[i] = item.DescriptionNorm
		quantities[i] = item.Quantity
		units[i] = item.Unit
		unitValues[i] = item.UnitValue
		totals[i] = item.TotalValue
		categories[i] = item.Category
	}

	// Batch insert with unnest instead of per-row round trips.
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO receipt_items (id, receipt_id, description, description_norm,
			quantity, unit, unit_value, total_value, category)
		SELECT unnest($2::uuid[]), $1, unnest($3::text[]), unnest($4::text[]),
			unnest($5::numeric[]), unnest($6::text[]), unnest($7::numeric[]),
			unnest($8::numeric[]), unnest($9::text[])`,
		receiptID, pq.Array(ids), pq.Array(descriptions), pq.Array(norms),
		pq.Array(quantities), pq.Array(units), pq.Array(unitValues),
		pq.Array(totals), pq.Array(categories),
	)
	if err != nil {
		return fmt.Errorf("insert receipt items: %w", err)
	}
	return nil
}

// SaveWithItems writes header and items in one transaction so a failed item
// insert can never strand a header row.
func (s *PostgresStore) SaveWithItems(ctx context.Context, receipt *models.Receipt, items []models.LineItem) (uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin save receipt: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	txCtx := txcontext.WithTx(ctx, tx)
	id, err := s.SaveReceipt(txCtx, receipt)
	if err != nil {
		return uuid.Nil, err
	}
	for i := range items {
		items[i].ReceiptID = id
	}
	if err := s.SaveLineItems(txCtx, id, items); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit save receipt: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, owner_id, access_key, issuer_name, issuer_cnpj,
			to_char(issue_date, 'YYYY-MM-DD'), total_value, discount_value,
			paid_value, created_at
		FROM receipts
		WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.AccessKey, &r.IssuerName,
			&r.IssuerCNPJ, &r.IssueDate, &r.TotalValue, &r.DiscountValue,
			&r.PaidValue, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Receipt, []models.LineItem, error) {
	var r models.Receipt
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, owner_id, access_key, issuer_name, issuer_cnpj,
			to_char(issue_date, 'YYYY-MM-DD'), total_value, discount_value,
			paid_value, created_at
		FROM receipts
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&r.ID, &r.OwnerID, &r.AccessKey, &r.IssuerName, &r.IssuerCNPJ,
		&r.IssueDate, &r.TotalValue, &r.DiscountValue, &r.PaidValue, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get receipt: %w", err)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, receipt_id, description, description_norm, quantity, unit,
			unit_value, total_value, category
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY description`,
		id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("get receipt items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.Description,
			&item.DescriptionNorm, &item.Quantity, &item.Unit, &item.UnitValue,
			&item.TotalValue, &item.Category); err != nil {
			return nil, nil, fmt.Errorf("scan receipt item: %w", err)
		}
		items = append(items, item)
	}
	return &r, items, rows.Err()
}

// DeleteReceipt removes children then the header inside one transaction.
func (s *PostgresStore) DeleteReceipt(ctx context.Context, ownerID, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete receipt: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM receipt_items
		WHERE receipt_id IN (SELECT id FROM receipts WHERE id = $1 AND owner_id = $2)`,
		id, ownerID,
	); err != nil {
		return fmt.Errorf("delete receipt items: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM receipts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
