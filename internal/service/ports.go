package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"detention-service/internal/model"
)

type EventStore interface {
	Create(ctx context.Context, event *model.DetentionEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.DetentionEvent, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.DetentionEvent, error)
	List(ctx context.Context, filter model.EventFilter) ([]model.DetentionEvent, error)
	UpdateTransition(ctx context.Context, event *model.DetentionEvent, expected model.EventStatus) error
	LogStatusChange(ctx context.Context, entry *model.EventStatusLog) error
}

type InvoiceStore interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error)
	UpdateTransition(ctx context.Context, invoice *model.Invoice, expected model.InvoiceStatus) error
	Lock(ctx context.Context, id uuid.UUID, expected model.InvoiceStatus) error
	Delete(ctx context.Context, id uuid.UUID, expected model.InvoiceStatus) error
	LogStatusChange(ctx context.Context, entry *model.InvoiceStatusLog) error
	RecordDelivery(ctx context.Context, delivery *model.InvoiceDelivery) error
	ListDeliveries(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceDelivery, error)
}

type InvitationStore interface {
	Create(ctx context.Context, invitation *model.FleetInvitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FleetInvitation, error)
	GetByCode(ctx context.Context, code string) (*model.FleetInvitation, error)
	ListByFleet(ctx context.Context, fleetID uuid.UUID) ([]model.FleetInvitation, error)
	UpdatePending(ctx context.Context, invitation *model.FleetInvitation) error
	MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	RevertAccepted(ctx context.Context, id, userID uuid.UUID) error
}

type FleetStore interface {
	Create(ctx context.Context, fleet *model.Fleet) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Fleet, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MemberStore interface {
	Create(ctx context.Context, member *model.FleetMember) error
	Get(ctx context.Context, fleetID, userID uuid.UUID) (*model.FleetMember, error)
	ListByFleet(ctx context.Context, fleetID uuid.UUID) ([]model.FleetMember, error)
}

type ContactStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.SavedContact, error)
	RecordUsage(ctx context.Context, contact *model.SavedContact, at time.Time) error
}

// Transactor runs fn atomically. Stores called with the context handed to fn
// take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks detention-service/internal/service DocumentRenderer,Mailer

// DocumentRenderer produces the customer-facing document of an invoice.
type DocumentRenderer interface {
	Render(ctx context.Context, invoice model.Invoice) (model.Document, error)
}

// Mailer hands an e-mail to the delivery pipeline.
type Mailer interface {
	Send(ctx context.Context, msg model.EmailMessage) error
}
