package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/internal/platform/httpx"
)

// Repository exposes the order reads and the projection write used by the
// document lifecycle engines. Every read is tenant scoped; there is no
// cross-tenant access path.
type Repository interface {
	GetForTenant(ctx context.Context, tenantID, orderID uuid.UUID) (*Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*Order, error)
	UpdateProjection(ctx context.Context, orderID uuid.UUID, status OrderStatus, total, deposit int64, invoiceRef, invoiceURL string) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to OrderStatus) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, tenant_id, order_number, order_type, status, total_amount, deposit_amount,
	customer_name, customer_email, customer_phone, event_date, event_time, inquiry_details,
	invoice_ref, invoice_url, created_at, updated_at`

func (r *repository) GetForTenant(ctx context.Context, tenantID, orderID uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 AND tenant_id = $2`, orderColumns),
		orderID, tenantID)
	return scanOrder(row)
}

func (r *repository) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns),
		orderID)
	return scanOrder(row)
}

func (r *repository) UpdateProjection(ctx context.Context, orderID uuid.UUID, status OrderStatus, total, deposit int64, invoiceRef, invoiceURL string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, total_amount = $3, deposit_amount = $4,
		    invoice_ref = $5, invoice_url = $6, updated_at = NOW()
		WHERE id = $1`,
		orderID, status, total, deposit, invoiceRef, invoiceURL)
	if err != nil {
		return fmt.Errorf("orders: update projection: %w", err)
	}
	return nil
}

// UpdateStatus advances status only when the row still holds the expected
// current status. A zero-row update is not an error; a concurrent writer won.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to OrderStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		orderID, from, to)
	if err != nil {
		return fmt.Errorf("orders: update status: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.Type, &o.Status, &o.TotalAmount, &o.DepositAmount,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.EventDate, &o.EventTime, &o.InquiryDetails,
		&o.InvoiceRef, &o.InvoiceURL, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
