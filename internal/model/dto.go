package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventView pairs a stored event with a live calculation. For active events the
// calculation runs against the current time and is not persisted.
type EventView struct {
	Event               DetentionEvent  `json:"event"`
	TotalElapsedMinutes int             `json:"total_elapsed_minutes"`
	DetentionMinutes    int             `json:"detention_minutes"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Live                bool            `json:"live"`
}

type InvoiceRecord struct {
	Invoice    Invoice           `json:"invoice"`
	Deliveries []InvoiceDelivery `json:"deliveries"`
}

// Document is the handle returned by the rendering collaborator.
type Document struct {
	URI         string `json:"uri"`
	ContentType string `json:"content_type"`
}

type EmailMessage struct {
	To          string            `json:"to"`
	ToName      string            `json:"to_name,omitempty"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Attachment  *Document         `json:"attachment,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

type InvitationBrief struct {
	ID        uuid.UUID `json:"id"`
	FleetID   uuid.UUID `json:"fleet_id"`
	Email     string    `json:"email"`
	Role      FleetRole `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`
}
