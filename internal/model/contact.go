package model

import (
	"time"

	"github.com/google/uuid"
)

type SavedContact struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	Email      string     `gorm:"type:varchar(255);not null" json:"email"`
	Name       string     `gorm:"type:varchar(255)" json:"name"`
	Company    string     `gorm:"type:varchar(255)" json:"company"`
	UseCount   int        `gorm:"not null;default:0" json:"use_count"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SavedContact) TableName() string {
	return "saved_contacts"
}
