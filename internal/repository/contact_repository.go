package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"detention-service/internal/model"
)

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.SavedContact, error) {
	var contacts []model.SavedContact
	if err := conn(ctx, r.db).Where("user_id = ?", userID).Find(&contacts).Error; err != nil {
		return nil, translate(err)
	}
	return contacts, nil
}

// RecordUsage inserts the contact with a use count of one, or bumps the count
// and last-used time of the existing (user, email) row. Blank name and company
// keep the stored values.
func (r *ContactRepository) RecordUsage(ctx context.Context, contact *model.SavedContact, at time.Time) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	contact.UseCount = 1
	contact.LastUsedAt = &at

	return translate(conn(ctx, r.db).
		Clauses(clause.Returning{}, clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "email"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"use_count":    gorm.Expr("saved_contacts.use_count + 1"),
				"last_used_at": at,
				"name":         gorm.Expr("COALESCE(NULLIF(EXCLUDED.name, ''), saved_contacts.name)"),
				"company":      gorm.Expr("COALESCE(NULLIF(EXCLUDED.company, ''), saved_contacts.company)"),
			}),
		}).
		Create(contact).Error)
}
