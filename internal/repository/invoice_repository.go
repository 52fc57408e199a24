package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"detention-service/internal/model"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice together with its line items. A taken invoice
// number surfaces as ErrDuplicateKey.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return translate(conn(ctx, r.db).Create(invoice).Error)
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := conn(ctx, r.db).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	query := conn(ctx, r.db).Model(&model.Invoice{})

	if filter.OwnerID != uuid.Nil {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(200)
	}

	var invoices []model.Invoice
	err := query.
		Order("created_at DESC").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Find(&invoices).Error
	if err != nil {
		return nil, translate(err)
	}
	return invoices, nil
}

func (r *InvoiceRepository) UpdateTransition(ctx context.Context, invoice *model.Invoice, expected model.InvoiceStatus) error {
	result := conn(ctx, r.db).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, expected).
		Updates(map[string]interface{}{
			"status":  invoice.Status,
			"sent_at": nullable(invoice.SentAt),
			"paid_at": nullable(invoice.PaidAt),
		})
	return expectOne(result)
}

// Lock takes a row lock on the invoice for the rest of the surrounding
// transaction. ErrStaleState means the invoice is gone or no longer expected.
func (r *InvoiceRepository) Lock(ctx context.Context, id uuid.UUID, expected model.InvoiceStatus) error {
	var locked model.Invoice
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ? AND status = ?", id, expected).
		Take(&locked).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStaleState
		}
		return translate(err)
	}
	return nil
}

// Delete removes the invoice while the stored status still equals expected.
// Line items go with it through the cascading foreign key.
func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID, expected model.InvoiceStatus) error {
	result := conn(ctx, r.db).
		Where("id = ? AND status = ?", id, expected).
		Delete(&model.Invoice{})
	return expectOne(result)
}

func (r *InvoiceRepository) LogStatusChange(ctx context.Context, entry *model.InvoiceStatusLog) error {
	return translate(conn(ctx, r.db).Create(entry).Error)
}

func (r *InvoiceRepository) RecordDelivery(ctx context.Context, delivery *model.InvoiceDelivery) error {
	return translate(conn(ctx, r.db).Create(delivery).Error)
}

func (r *InvoiceRepository) ListDeliveries(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceDelivery, error) {
	var deliveries []model.InvoiceDelivery
	err := conn(ctx, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&deliveries).Error
	if err != nil {
		return nil, translate(err)
	}
	return deliveries, nil
}
