package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"detention-service/internal/billing"
	"detention-service/internal/model"
	"detention-service/internal/repository"
)

type InvitationRepository struct {
	s *Store
}

func (r *InvitationRepository) Create(ctx context.Context, invitation *model.FleetInvitation) error {
	defer r.s.lock(ctx)()

	if invitation.ID == uuid.Nil {
		invitation.ID = uuid.New()
	}
	for _, existing := range r.s.st.invitations {
		if existing.ID == invitation.ID || existing.InvitationCode == invitation.InvitationCode {
			return repository.ErrDuplicateKey
		}
	}
	now := r.s.timestamp()
	invitation.CreatedAt = now
	invitation.UpdatedAt = now
	r.s.st.invitations[invitation.ID] = *invitation
	return nil
}

func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FleetInvitation, error) {
	defer r.s.lock(ctx)()

	invitation, ok := r.s.st.invitations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &invitation, nil
}

func (r *InvitationRepository) GetByCode(ctx context.Context, code string) (*model.FleetInvitation, error) {
	defer r.s.lock(ctx)()

	code = billing.NormalizeCode(code)
	for _, invitation := range r.s.st.invitations {
		if invitation.InvitationCode == code {
			return &invitation, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InvitationRepository) ListByFleet(ctx context.Context, fleetID uuid.UUID) ([]model.FleetInvitation, error) {
	defer r.s.lock(ctx)()

	var out []model.FleetInvitation
	for _, invitation := range r.s.st.invitations {
		if invitation.FleetID == fleetID {
			out = append(out, invitation)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InvitationRepository) UpdatePending(ctx context.Context, invitation *model.FleetInvitation) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.invitations[invitation.ID]
	if !ok || stored.IsAccepted() || stored.IsCancelled() {
		return repository.ErrStaleState
	}
	for id, other := range r.s.st.invitations {
		if id != invitation.ID && other.InvitationCode == invitation.InvitationCode {
			return repository.ErrDuplicateKey
		}
	}
	stored.InvitationCode = invitation.InvitationCode
	stored.ExpiresAt = invitation.ExpiresAt
	stored.ResendCount = invitation.ResendCount
	stored.LastSentAt = invitation.LastSentAt
	stored.CancelledAt = invitation.CancelledAt
	stored.UpdatedAt = r.s.timestamp()
	r.s.st.invitations[invitation.ID] = stored
	return nil
}

func (r *InvitationRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.invitations[id]
	if !ok || stored.IsAccepted() || stored.IsCancelled() {
		return repository.ErrStaleState
	}
	stored.AcceptedAt = &at
	stored.AcceptedBy = &userID
	stored.UpdatedAt = r.s.timestamp()
	r.s.st.invitations[id] = stored
	return nil
}

func (r *InvitationRepository) RevertAccepted(ctx context.Context, id, userID uuid.UUID) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.invitations[id]
	if !ok || stored.AcceptedBy == nil || *stored.AcceptedBy != userID {
		return repository.ErrStaleState
	}
	stored.AcceptedAt = nil
	stored.AcceptedBy = nil
	stored.UpdatedAt = r.s.timestamp()
	r.s.st.invitations[id] = stored
	return nil
}

type FleetRepository struct {
	s *Store
}

func (r *FleetRepository) Create(ctx context.Context, fleet *model.Fleet) error {
	defer r.s.lock(ctx)()

	if fleet.ID == uuid.Nil {
		fleet.ID = uuid.New()
	}
	if _, exists := r.s.st.fleets[fleet.ID]; exists {
		return repository.ErrDuplicateKey
	}
	now := r.s.timestamp()
	fleet.CreatedAt = now
	fleet.UpdatedAt = now
	r.s.st.fleets[fleet.ID] = *fleet
	return nil
}

func (r *FleetRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Fleet, error) {
	defer r.s.lock(ctx)()

	fleet, ok := r.s.st.fleets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &fleet, nil
}

func (r *FleetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.fleets[id]; !ok {
		return repository.ErrStaleState
	}
	delete(r.s.st.fleets, id)
	for memberID, member := range r.s.st.members {
		if member.FleetID == id {
			delete(r.s.st.members, memberID)
		}
	}
	return nil
}

type MemberRepository struct {
	s *Store
}

func (r *MemberRepository) Create(ctx context.Context, member *model.FleetMember) error {
	defer r.s.lock(ctx)()

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	for _, existing := range r.s.st.members {
		if existing.FleetID == member.FleetID && existing.UserID == member.UserID {
			return repository.ErrDuplicateKey
		}
	}
	now := r.s.timestamp()
	member.CreatedAt = now
	member.UpdatedAt = now
	r.s.st.members[member.ID] = *member
	return nil
}

func (r *MemberRepository) Get(ctx context.Context, fleetID, userID uuid.UUID) (*model.FleetMember, error) {
	defer r.s.lock(ctx)()

	for _, member := range r.s.st.members {
		if member.FleetID == fleetID && member.UserID == userID {
			return &member, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *MemberRepository) ListByFleet(ctx context.Context, fleetID uuid.UUID) ([]model.FleetMember, error) {
	defer r.s.lock(ctx)()

	var out []model.FleetMember
	for _, member := range r.s.st.members {
		if member.FleetID == fleetID {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
