package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"detention-service/internal/model"
	"detention-service/internal/repository"
)

type InvoiceRepository struct {
	s *Store
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	defer r.s.lock(ctx)()

	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if _, exists := r.s.st.invoices[invoice.ID]; exists {
		return repository.ErrDuplicateKey
	}
	for _, existing := range r.s.st.invoices {
		if existing.InvoiceNumber == invoice.InvoiceNumber {
			return repository.ErrDuplicateKey
		}
	}
	now := r.s.timestamp()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	for i := range invoice.LineItems {
		invoice.LineItems[i].InvoiceID = invoice.ID
	}
	r.s.st.invoices[invoice.ID] = copyInvoice(*invoice)
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	defer r.s.lock(ctx)()

	invoice, ok := r.s.st.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	invoice = copyInvoice(invoice)
	return &invoice, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	defer r.s.lock(ctx)()

	var invoices []model.Invoice
	for _, invoice := range r.s.st.invoices {
		if filter.OwnerID != uuid.Nil && invoice.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, invoice.Status) {
			continue
		}
		if filter.DateFrom != nil && invoice.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && invoice.CreatedAt.After(*filter.DateTo) {
			continue
		}
		invoices = append(invoices, copyInvoice(invoice))
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return paginate(invoices, filter.Limit, filter.Offset), nil
}

func (r *InvoiceRepository) UpdateTransition(ctx context.Context, invoice *model.Invoice, expected model.InvoiceStatus) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.invoices[invoice.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleState
	}
	stored.Status = invoice.Status
	stored.SentAt = invoice.SentAt
	stored.PaidAt = invoice.PaidAt
	stored.UpdatedAt = r.s.timestamp()
	r.s.st.invoices[invoice.ID] = stored
	invoice.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *InvoiceRepository) Lock(ctx context.Context, id uuid.UUID, expected model.InvoiceStatus) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.invoices[id]
	if !ok || stored.Status != expected {
		return repository.ErrStaleState
	}
	return nil
}

func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID, expected model.InvoiceStatus) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.invoices[id]
	if !ok || stored.Status != expected {
		return repository.ErrStaleState
	}
	delete(r.s.st.invoices, id)
	return nil
}

func (r *InvoiceRepository) LogStatusChange(ctx context.Context, entry *model.InvoiceStatusLog) error {
	defer r.s.lock(ctx)()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.timestamp()
	r.s.st.invoiceLogs = append(r.s.st.invoiceLogs, *entry)
	return nil
}

func (r *InvoiceRepository) RecordDelivery(ctx context.Context, delivery *model.InvoiceDelivery) error {
	defer r.s.lock(ctx)()

	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	delivery.CreatedAt = r.s.timestamp()
	r.s.st.deliveries = append(r.s.st.deliveries, *delivery)
	return nil
}

func (r *InvoiceRepository) ListDeliveries(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceDelivery, error) {
	defer r.s.lock(ctx)()

	var out []model.InvoiceDelivery
	for _, delivery := range r.s.st.deliveries {
		if delivery.InvoiceID == invoiceID {
			out = append(out, delivery)
		}
	}
	return out, nil
}

func (r *InvoiceRepository) StatusLog(ctx context.Context, invoiceID uuid.UUID) []model.InvoiceStatusLog {
	defer r.s.lock(ctx)()

	var out []model.InvoiceStatusLog
	for _, entry := range r.s.st.invoiceLogs {
		if entry.InvoiceID == invoiceID {
			out = append(out, entry)
		}
	}
	return out
}
