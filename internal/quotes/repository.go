package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/internal/documents"
	"github.com/meridianhq/meridian/internal/platform/db"
	"github.com/meridianhq/meridian/internal/platform/httpx"
)

// Repository persists quotes and their line items. Reads are keyed by id
// (tenant scoped) or by access token (public path).
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error)
	GetByToken(ctx context.Context, token string) (*Quote, error)
	Create(ctx context.Context, q Quote) error
	InsertLine(ctx context.Context, line LineItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to documents.Status) (bool, error)
	MarkApproved(ctx context.Context, id uuid.UUID, invoiceRef, invoiceURL string, at time.Time) (bool, error)
	MarkConverted(ctx context.Context, id uuid.UUID) error
	GenerateNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, tenant_id, order_id, quote_number, status, subtotal, deposit_percent,
	deposit_amount, total_amount, customer_message, valid_until, access_token,
	invoice_ref, invoice_url, approved_at, created_at, updated_at`

func (r *repository) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM quotes WHERE id = $1 AND tenant_id = $2`, quoteColumns),
		id, tenantID)
	return r.scanWithLines(ctx, row)
}

func (r *repository) GetByToken(ctx context.Context, token string) (*Quote, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM quotes WHERE access_token = $1`, quoteColumns),
		token)
	return r.scanWithLines(ctx, row)
}

func (r *repository) Create(ctx context.Context, q Quote) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quotes (id, tenant_id, order_id, quote_number, status, subtotal, deposit_percent,
			deposit_amount, total_amount, customer_message, valid_until, access_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		q.ID, q.TenantID, q.OrderID, q.QuoteNumber, q.Status, q.Subtotal, q.DepositPercent,
		q.DepositAmount, q.TotalAmount, q.CustomerMessage, q.ValidUntil, q.AccessToken)
	if err != nil {
		return fmt.Errorf("quotes: insert: %w", err)
	}
	return nil
}

func (r *repository) InsertLine(ctx context.Context, line LineItem) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quote_line_items (id, quote_id, description, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		line.ID, line.QuoteID, line.Description, line.Quantity, line.UnitPrice, line.Position)
	if err != nil {
		return fmt.Errorf("quotes: insert line: %w", err)
	}
	return nil
}

// UpdateStatus transitions status only when the row still holds the expected
// current status; the returned bool reports whether the write applied. This
// re-verifies check-then-act decisions at the moment of the write.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to documents.Status) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("quotes: update status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) MarkApproved(ctx context.Context, id uuid.UUID, invoiceRef, invoiceURL string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes
		SET status = $2, invoice_ref = $3, invoice_url = $4, approved_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6`,
		id, documents.StatusApproved, invoiceRef, invoiceURL, at, documents.StatusSent)
	if err != nil {
		return false, fmt.Errorf("quotes: mark approved: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) MarkConverted(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quotes SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		id, documents.StatusConverted, documents.StatusApproved)
	if err != nil {
		return fmt.Errorf("quotes: mark converted: %w", err)
	}
	return nil
}

// GenerateNumber produces Q-{YYMM}-{SEQ} from the per-tenant sequence table.
func (r *repository) GenerateNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (tenant_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, tenantID, "Q", date.Format("200601")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("quotes: next sequence: %w", err)
	}
	return fmt.Sprintf("Q-%s-%04d", date.Format("0601"), seq), nil
}

func (r *repository) scanWithLines(ctx context.Context, row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.TenantID, &q.OrderID, &q.QuoteNumber, &q.Status, &q.Subtotal, &q.DepositPercent,
		&q.DepositAmount, &q.TotalAmount, &q.CustomerMessage, &q.ValidUntil, &q.AccessToken,
		&q.InvoiceRef, &q.InvoiceURL, &q.ApprovedAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, quote_id, description, quantity, unit_price, position
		FROM quote_line_items WHERE quote_id = $1 ORDER BY position, id`, q.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Position); err != nil {
			return nil, err
		}
		q.Lines = append(q.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &q, nil
}
