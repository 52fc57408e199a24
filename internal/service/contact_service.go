package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"detention-service/internal/billing"
	"detention-service/internal/model"
)

type ContactService struct {
	contacts ContactStore
	validate *validator.Validate
	now      func() time.Time
}

func NewContactService(contacts ContactStore) *ContactService {
	return &ContactService{
		contacts: contacts,
		validate: validator.New(),
		now:      time.Now,
	}
}

// List returns the caller's saved contacts matching query, most used first.
func (s *ContactService) List(ctx context.Context, principal model.Principal, query string) ([]model.SavedContact, error) {
	contacts, err := s.contacts.ListByUser(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return billing.SortByUsage(billing.FilterByQuery(contacts, query)), nil
}

type RecordContactInput struct {
	Email   string
	Name    string
	Company string
}

func (s *ContactService) RecordUsage(ctx context.Context, principal model.Principal, input RecordContactInput) (*model.SavedContact, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, invalidInput("contact email %q is malformed", input.Email)
	}

	contact := &model.SavedContact{
		UserID:  principal.UserID,
		Email:   email,
		Name:    strings.TrimSpace(input.Name),
		Company: strings.TrimSpace(input.Company),
	}
	if err := s.contacts.RecordUsage(ctx, contact, s.now().UTC()); err != nil {
		return nil, err
	}
	return contact, nil
}
