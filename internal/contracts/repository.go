package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/internal/documents"
	"github.com/meridianhq/meridian/internal/platform/httpx"
)

// Repository persists contracts. Reads are keyed by id (tenant scoped) or by
// access token (public path).
type Repository interface {
	GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Contract, error)
	GetByToken(ctx context.Context, token string) (*Contract, error)
	Create(ctx context.Context, c Contract) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to documents.Status) (bool, error)
	MarkSigned(ctx context.Context, id uuid.UUID, signerName, signerIP string, at time.Time) (bool, error)
	GenerateNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const contractColumns = `id, tenant_id, order_id, contract_number, status, event_date, venue,
	guest_count, start_time, body, payment_schedule, access_token, valid_until,
	signer_name, signer_ip, signed_at, created_at, updated_at`

func (r *repository) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Contract, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM contracts WHERE id = $1 AND tenant_id = $2`, contractColumns),
		id, tenantID)
	return scanContract(row)
}

func (r *repository) GetByToken(ctx context.Context, token string) (*Contract, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM contracts WHERE access_token = $1`, contractColumns),
		token)
	return scanContract(row)
}

func (r *repository) Create(ctx context.Context, c Contract) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contracts (id, tenant_id, order_id, contract_number, status, event_date, venue,
			guest_count, start_time, body, payment_schedule, access_token, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.TenantID, c.OrderID, c.ContractNumber, c.Status, c.EventDate, c.Venue,
		c.GuestCount, c.StartTime, c.Body, c.PaymentSchedule, c.AccessToken, c.ValidUntil)
	if err != nil {
		return fmt.Errorf("contracts: insert: %w", err)
	}
	return nil
}

// UpdateStatus transitions status only when the row still holds the expected
// current status; the returned bool reports whether the write applied.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to documents.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contracts SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("contracts: update status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSigned records the signature atomically against a still-sent row so
// concurrent signers cannot overwrite each other's metadata.
func (r *repository) MarkSigned(ctx context.Context, id uuid.UUID, signerName, signerIP string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts
		SET status = $2, signer_name = $3, signer_ip = $4, signed_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6`,
		id, documents.StatusSigned, signerName, signerIP, at, documents.StatusSent)
	if err != nil {
		return false, fmt.Errorf("contracts: mark signed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GenerateNumber produces C-{YYMM}-{SEQ} from the per-tenant sequence table.
func (r *repository) GenerateNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (tenant_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, tenantID, "C", date.Format("200601")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("contracts: next sequence: %w", err)
	}
	return fmt.Sprintf("C-%s-%04d", date.Format("0601"), seq), nil
}

func scanContract(row pgx.Row) (*Contract, error) {
	var c Contract
	err := row.Scan(
		&c.ID, &c.TenantID, &c.OrderID, &c.ContractNumber, &c.Status, &c.EventDate, &c.Venue,
		&c.GuestCount, &c.StartTime, &c.Body, &c.PaymentSchedule, &c.AccessToken, &c.ValidUntil,
		&c.SignerName, &c.SignerIP, &c.SignedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
