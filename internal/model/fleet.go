package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FleetRole string

const (
	FleetRoleAdmin  FleetRole = "admin"
	FleetRoleDriver FleetRole = "driver"
)

func (r FleetRole) Valid() bool {
	return r == FleetRoleAdmin || r == FleetRoleDriver
}

type MemberStatus string

const (
	MemberStatusPending   MemberStatus = "pending"
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
	MemberStatusRemoved   MemberStatus = "removed"
)

type Fleet struct {
	ID                        uuid.UUID        `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	OwnerID                   uuid.UUID        `gorm:"type:uuid;not null" json:"owner_id"`
	Name                      string           `gorm:"type:varchar(255);not null" json:"name"`
	DefaultHourlyRate         *decimal.Decimal `gorm:"type:numeric(10,2)" json:"default_hourly_rate"`
	DefaultGracePeriodMinutes *int             `json:"default_grace_period_minutes"`
	CreatedAt                 time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Fleet) TableName() string {
	return "fleets"
}

type FleetMember struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	FleetID             uuid.UUID        `gorm:"type:uuid;not null" json:"fleet_id"`
	UserID              uuid.UUID        `gorm:"type:uuid;not null" json:"user_id"`
	Email               string           `gorm:"type:varchar(255)" json:"email"`
	Role                FleetRole        `gorm:"type:varchar(16);not null" json:"role"`
	Status              MemberStatus     `gorm:"type:varchar(16);not null" json:"status"`
	InvitationID        *uuid.UUID       `gorm:"type:uuid" json:"invitation_id"`
	HourlyRateOverride  *decimal.Decimal `gorm:"type:numeric(10,2)" json:"hourly_rate_override"`
	GracePeriodOverride *int             `json:"grace_period_override"`
	JoinedAt            *time.Time       `json:"joined_at"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FleetMember) TableName() string {
	return "fleet_members"
}

func (m FleetMember) IsActive() bool {
	return m.Status == MemberStatusActive
}

func (m FleetMember) IsAdmin() bool {
	return m.IsActive() && m.Role == FleetRoleAdmin
}
