package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/shared"
)

// Projector moves an order forward after a quote approval or contract
// signature and copies the document's monetary fields onto it.
type Projector struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewProjector constructs a Projector.
func NewProjector(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Projector {
	return &Projector{repo: repo, audit: audit, logger: logger}
}

// ApplyDocumentApproval sets the order to pending_payment and overwrites its
// total, deposit, and invoice fields. The status is only advanced when the
// order is still in inquiry or pending_payment; an order that has already
// progressed to deposit_paid or beyond keeps its state and the skip is
// recorded in the audit log. The returned bool reports whether the projection
// was applied.
func (p *Projector) ApplyDocumentApproval(ctx context.Context, orderID uuid.UUID, total, deposit int64, invoiceRef, invoiceURL string) (bool, error) {
	order, err := p.repo.Get(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("orders: load for projection: %w", err)
	}

	if order.Status != OrderStatusInquiry && order.Status != OrderStatusPendingPayment {
		p.logger.Warn("projection skipped, order already progressed",
			slog.String("order_id", orderID.String()),
			slog.String("status", string(order.Status)))
		if p.audit != nil {
			_ = p.audit.Record(ctx, shared.AuditLog{
				TenantID: order.TenantID,
				Actor:    "customer",
				Action:   "projection_skipped",
				Entity:   "order",
				EntityID: orderID.String(),
				Meta:     map[string]any{"status": string(order.Status)},
			})
		}
		return false, nil
	}

	if err := p.repo.UpdateProjection(ctx, orderID, OrderStatusPendingPayment, total, deposit, invoiceRef, invoiceURL); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyContractSignature moves the order to confirmed once its wedding
// contract is signed. Orders that already reached confirmed or a terminal
// state keep their status; the skip is audited like the approval path.
func (p *Projector) ApplyContractSignature(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, err := p.repo.Get(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("orders: load for projection: %w", err)
	}

	switch order.Status {
	case OrderStatusInquiry, OrderStatusPendingPayment, OrderStatusDepositPaid:
	default:
		p.logger.Warn("projection skipped, order already progressed",
			slog.String("order_id", orderID.String()),
			slog.String("status", string(order.Status)))
		if p.audit != nil {
			_ = p.audit.Record(ctx, shared.AuditLog{
				TenantID: order.TenantID,
				Actor:    "customer",
				Action:   "projection_skipped",
				Entity:   "order",
				EntityID: orderID.String(),
				Meta:     map[string]any{"status": string(order.Status)},
			})
		}
		return false, nil
	}

	if err := p.repo.UpdateStatus(ctx, orderID, order.Status, OrderStatusConfirmed); err != nil {
		return false, err
	}
	return true, nil
}

// PendingFromOtherQuote reports whether the order is already awaiting payment
// on an invoice created by a different quote. Used as the approval guard
// against two quotes on one order both producing invoices.
func (p *Projector) PendingFromOtherQuote(ctx context.Context, orderID uuid.UUID, invoiceRef string) (bool, error) {
	order, err := p.repo.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != OrderStatusPendingPayment {
		return false, nil
	}
	return order.InvoiceRef != nil && *order.InvoiceRef != "" && *order.InvoiceRef != invoiceRef, nil
}
