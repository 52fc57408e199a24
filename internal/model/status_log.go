package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventStatusLog struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	EventID   uuid.UUID    `gorm:"type:uuid;not null" json:"event_id"`
	OldStatus *EventStatus `gorm:"type:detention_event_status" json:"old_status"`
	NewStatus EventStatus  `gorm:"type:detention_event_status;not null" json:"new_status"`
	Note      string       `gorm:"type:text" json:"note"`
	ChangedBy *uuid.UUID   `gorm:"type:uuid" json:"changed_by"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (EventStatusLog) TableName() string {
	return "detention_event_status_log"
}

func (l *EventStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type InvoiceStatusLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	InvoiceID uuid.UUID      `gorm:"type:uuid;not null" json:"invoice_id"`
	OldStatus *InvoiceStatus `gorm:"type:invoice_status" json:"old_status"`
	NewStatus InvoiceStatus  `gorm:"type:invoice_status;not null" json:"new_status"`
	Note      string         `gorm:"type:text" json:"note"`
	ChangedBy *uuid.UUID     `gorm:"type:uuid" json:"changed_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (InvoiceStatusLog) TableName() string {
	return "invoice_status_log"
}

func (l *InvoiceStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
