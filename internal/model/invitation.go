package model

import (
	"time"

	"github.com/google/uuid"
)

type FleetInvitation struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	FleetID        uuid.UUID  `gorm:"type:uuid;not null" json:"fleet_id"`
	Email          string     `gorm:"type:varchar(255);not null" json:"email"`
	Role           FleetRole  `gorm:"type:varchar(16);not null" json:"role"`
	InvitedBy      uuid.UUID  `gorm:"type:uuid;not null" json:"invited_by"`
	InvitationCode string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"invitation_code"`
	ExpiresAt      time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at"`
	AcceptedBy     *uuid.UUID `gorm:"type:uuid" json:"accepted_by"`
	CancelledAt    *time.Time `json:"cancelled_at"`
	ResendCount    int        `gorm:"not null;default:0" json:"resend_count"`
	LastSentAt     time.Time  `gorm:"not null" json:"last_sent_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FleetInvitation) TableName() string {
	return "fleet_invitations"
}

func (i FleetInvitation) IsAccepted() bool {
	return i.AcceptedAt != nil
}

func (i FleetInvitation) IsCancelled() bool {
	return i.CancelledAt != nil
}

func (i FleetInvitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

func (i FleetInvitation) State(now time.Time) string {
	switch {
	case i.IsAccepted():
		return "accepted"
	case i.IsCancelled():
		return "cancelled"
	case i.IsExpired(now):
		return "expired"
	default:
		return "pending"
	}
}

// Brief omits the invitation code so listings never leak it.
func (i FleetInvitation) Brief(now time.Time) InvitationBrief {
	return InvitationBrief{
		ID:        i.ID,
		FleetID:   i.FleetID,
		Email:     i.Email,
		Role:      i.Role,
		ExpiresAt: i.ExpiresAt,
		Status:    i.State(now),
	}
}
