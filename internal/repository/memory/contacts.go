package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"detention-service/internal/model"
)

type ContactRepository struct {
	s *Store
}

func (r *ContactRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.SavedContact, error) {
	defer r.s.lock(ctx)()

	var out []model.SavedContact
	for _, contact := range r.s.st.contacts {
		if contact.UserID == userID {
			out = append(out, contact)
		}
	}
	return out, nil
}

func (r *ContactRepository) RecordUsage(ctx context.Context, contact *model.SavedContact, at time.Time) error {
	defer r.s.lock(ctx)()

	for id, existing := range r.s.st.contacts {
		if existing.UserID != contact.UserID || !strings.EqualFold(existing.Email, contact.Email) {
			continue
		}
		existing.UseCount++
		existing.LastUsedAt = &at
		if contact.Name != "" {
			existing.Name = contact.Name
		}
		if contact.Company != "" {
			existing.Company = contact.Company
		}
		existing.UpdatedAt = r.s.timestamp()
		r.s.st.contacts[id] = existing
		*contact = existing
		return nil
	}

	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	contact.UseCount = 1
	contact.LastUsedAt = &at
	contact.CreatedAt = r.s.timestamp()
	contact.UpdatedAt = contact.CreatedAt
	r.s.st.contacts[contact.ID] = *contact
	return nil
}
