package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
)

func (s InvoiceStatus) Valid() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent || s == InvoiceStatusPaid
}

// Invoice is an immutable financial record. TotalAmount and LineItems are a
// snapshot taken at aggregation time and are never recomputed.
type Invoice struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	OwnerID          uuid.UUID         `gorm:"type:uuid;not null" json:"owner_id"`
	FleetID          *uuid.UUID        `gorm:"type:uuid" json:"fleet_id"`
	InvoiceNumber    string            `gorm:"type:varchar(32);not null;uniqueIndex" json:"invoice_number"`
	RecipientEmail   string            `gorm:"type:varchar(255)" json:"recipient_email"`
	RecipientName    string            `gorm:"type:varchar(255)" json:"recipient_name"`
	RecipientCompany string            `gorm:"type:varchar(255)" json:"recipient_company"`
	TotalAmount      decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status           InvoiceStatus     `gorm:"type:invoice_status;not null;default:'draft'" json:"status"`
	Notes            string            `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	SentAt           *time.Time        `json:"sent_at"`
	PaidAt           *time.Time        `json:"paid_at"`
	LineItems        []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// EventIDs returns the referenced events in invoice order.
func (i Invoice) EventIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(i.LineItems))
	for _, item := range i.LineItems {
		ids = append(ids, item.EventID)
	}
	return ids
}

type InvoiceLineItem struct {
	InvoiceID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"invoice_id"`
	EventID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"event_id"`
	Position         int             `gorm:"not null" json:"position"`
	FacilityID       uuid.UUID       `gorm:"type:uuid;not null" json:"facility_id"`
	ArrivalTime      time.Time       `gorm:"not null" json:"arrival_time"`
	DepartureTime    time.Time       `gorm:"not null" json:"departure_time"`
	DetentionMinutes int             `gorm:"not null" json:"detention_minutes"`
	HourlyRate       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"hourly_rate"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
}

func (InvoiceLineItem) TableName() string {
	return "invoice_line_items"
}

type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

type InvoiceDelivery struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	InvoiceID   uuid.UUID      `gorm:"type:uuid;not null" json:"invoice_id"`
	Recipient   string         `gorm:"type:varchar(255);not null" json:"recipient"`
	DocumentURI string         `gorm:"type:text" json:"document_uri"`
	Status      DeliveryStatus `gorm:"type:varchar(16);not null" json:"status"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (InvoiceDelivery) TableName() string {
	return "invoice_deliveries"
}

type InvoiceFilter struct {
	OwnerID  uuid.UUID
	Statuses []InvoiceStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
