package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCompleted EventStatus = "completed"
	EventStatusInvoiced  EventStatus = "invoiced"
	EventStatusPaid      EventStatus = "paid"
	EventStatusCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusCompleted, EventStatusInvoiced, EventStatusPaid, EventStatusCancelled:
		return true
	}
	return false
}

// DetentionEvent is one wait at a facility. DepartureTime is set if and only if
// the status is not active.
type DetentionEvent struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID              uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
	FleetID             *uuid.UUID      `gorm:"type:uuid" json:"fleet_id"`
	FacilityID          uuid.UUID       `gorm:"type:uuid;not null" json:"facility_id"`
	InvoiceID           *uuid.UUID      `gorm:"type:uuid" json:"invoice_id"`
	ArrivalTime         time.Time       `gorm:"not null" json:"arrival_time"`
	DepartureTime       *time.Time      `json:"departure_time"`
	GracePeriodMinutes  int             `gorm:"not null" json:"grace_period_minutes"`
	HourlyRate          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"hourly_rate"`
	TotalElapsedMinutes int             `gorm:"not null;default:0" json:"total_elapsed_minutes"`
	DetentionMinutes    int             `gorm:"not null;default:0" json:"detention_minutes"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	Status              EventStatus     `gorm:"type:detention_event_status;not null;default:'active'" json:"status"`
	Notes               string          `gorm:"type:text" json:"notes"`
	CancelReason        string          `gorm:"type:text" json:"cancel_reason,omitempty"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DetentionEvent) TableName() string {
	return "detention_events"
}

func (e DetentionEvent) BelongsTo(userID uuid.UUID) bool {
	return e.UserID == userID
}

type EventFilter struct {
	UserID   uuid.UUID
	FleetID  *uuid.UUID
	Statuses []EventStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
