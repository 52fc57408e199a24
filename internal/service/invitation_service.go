package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"detention-service/internal/billing"
	"detention-service/internal/model"
	"detention-service/internal/repository"
)

type InvitationSettings struct {
	TTL          time.Duration
	CodeLength   int
	CodeAttempts int
}

type InvitationService struct {
	invitations InvitationStore
	members     MemberStore
	access      fleetAccess
	mailer      Mailer

	gen      *billing.Generator
	settings InvitationSettings
	runner   atomicRunner
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

func NewInvitationService(
	invitations InvitationStore,
	fleets FleetStore,
	members MemberStore,
	tx Transactor,
	mailer Mailer,
	settings InvitationSettings,
	log zerolog.Logger,
) *InvitationService {
	if settings.CodeAttempts <= 0 {
		settings.CodeAttempts = 1
	}
	log = log.With().Str("component", "invitation_service").Logger()
	return &InvitationService{
		invitations: invitations,
		members:     members,
		access:      fleetAccess{fleets: fleets, members: members},
		mailer:      mailer,
		gen:         billing.NewGenerator(),
		settings:    settings,
		runner:      atomicRunner{tx: tx, log: log},
		validate:    validator.New(),
		log:         log,
		now:         time.Now,
	}
}

type CreateInvitationInput struct {
	FleetID uuid.UUID
	Email   string
	Role    model.FleetRole
}

func (s *InvitationService) Create(ctx context.Context, principal model.Principal, input CreateInvitationInput) (*model.FleetInvitation, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, invalidInput("invitee email %q is malformed", input.Email)
	}
	if !input.Role.Valid() {
		return nil, invalidInput("role must be admin or driver")
	}

	fleet, err := s.access.requireAdmin(ctx, principal, input.FleetID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invitation := &model.FleetInvitation{
		ID:         uuid.New(),
		FleetID:    fleet.ID,
		Email:      email,
		Role:       input.Role,
		InvitedBy:  principal.UserID,
		ExpiresAt:  now.Add(s.settings.TTL),
		LastSentAt: now,
	}

	err = s.withFreshCode(invitation, func() error {
		return s.invitations.Create(ctx, invitation)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, fleet, invitation)
	return invitation, nil
}

// Resend extends the expiry of a pending invitation and e-mails it again.
// Expired invitations may be resent. regenerateCode issues a new code.
func (s *InvitationService) Resend(ctx context.Context, principal model.Principal, invitationID uuid.UUID, regenerateCode bool) (*model.FleetInvitation, error) {
	invitation, fleet, err := s.getManaged(ctx, principal, invitationID)
	if err != nil {
		return nil, err
	}
	if err := unusable(invitation); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invitation.ExpiresAt = now.Add(s.settings.TTL)
	invitation.ResendCount++
	invitation.LastSentAt = now

	update := func() error { return s.invitations.UpdatePending(ctx, invitation) }
	if regenerateCode {
		err = s.withFreshCode(invitation, update)
	} else {
		err = update()
	}
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, s.raceOutcome(ctx, invitation.ID)
		}
		return nil, err
	}

	s.notify(ctx, fleet, invitation)
	return invitation, nil
}

func (s *InvitationService) Cancel(ctx context.Context, principal model.Principal, invitationID uuid.UUID) error {
	invitation, _, err := s.getManaged(ctx, principal, invitationID)
	if err != nil {
		return err
	}
	if err := unusable(invitation); err != nil {
		return err
	}

	now := s.now().UTC()
	invitation.CancelledAt = &now
	if err := s.invitations.UpdatePending(ctx, invitation); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return s.raceOutcome(ctx, invitation.ID)
		}
		return err
	}
	return nil
}

// Accept redeems a code for the calling user. Exactly one caller can win for a
// given invitation; the conditional write on the invitation decides who.
func (s *InvitationService) Accept(ctx context.Context, principal model.Principal, code string) (*model.FleetMember, error) {
	code = billing.NormalizeCode(code)
	if code == "" {
		return nil, ErrInvitationNotFound
	}

	invitation, err := s.invitations.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}

	now := s.now().UTC()
	if err := unusable(invitation); err != nil {
		return nil, err
	}
	if invitation.IsExpired(now) {
		return nil, ErrInvitationExpired
	}

	member := &model.FleetMember{
		ID:           uuid.New(),
		FleetID:      invitation.FleetID,
		UserID:       principal.UserID,
		Email:        strings.ToLower(strings.TrimSpace(principal.Email)),
		Role:         invitation.Role,
		Status:       model.MemberStatusActive,
		InvitationID: &invitation.ID,
		JoinedAt:     &now,
	}

	u := &unit{name: "accept invitation " + invitation.ID.String()}
	u.add("mark invitation accepted",
		func(ctx context.Context) error {
			return s.invitations.MarkAccepted(ctx, invitation.ID, principal.UserID, now)
		},
		func(ctx context.Context) error {
			return s.invitations.RevertAccepted(ctx, invitation.ID, principal.UserID)
		},
	)
	u.add("insert fleet member",
		func(ctx context.Context) error {
			if err := s.members.Create(ctx, member); err != nil {
				if errors.Is(err, repository.ErrDuplicateKey) {
					return fmt.Errorf("%w: user is already a member of fleet %s", ErrConflict, invitation.FleetID)
				}
				return err
			}
			return nil
		},
		nil,
	)

	if err := s.runner.run(ctx, u); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, s.raceOutcome(ctx, invitation.ID)
		}
		return nil, err
	}
	return member, nil
}

func (s *InvitationService) ListByFleet(ctx context.Context, principal model.Principal, fleetID uuid.UUID) ([]model.InvitationBrief, error) {
	if _, err := s.access.requireAdmin(ctx, principal, fleetID); err != nil {
		return nil, err
	}
	invitations, err := s.invitations.ListByFleet(ctx, fleetID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	briefs := make([]model.InvitationBrief, 0, len(invitations))
	for _, inv := range invitations {
		briefs = append(briefs, inv.Brief(now))
	}
	return briefs, nil
}

func (s *InvitationService) getManaged(ctx context.Context, principal model.Principal, invitationID uuid.UUID) (*model.FleetInvitation, *model.Fleet, error) {
	invitation, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvitationNotFound
		}
		return nil, nil, err
	}
	fleet, err := s.access.requireAdmin(ctx, principal, invitation.FleetID)
	if err != nil {
		return nil, nil, err
	}
	return invitation, fleet, nil
}

// withFreshCode assigns a new code to invitation and runs write, retrying with
// another code while write reports a duplicate key.
func (s *InvitationService) withFreshCode(invitation *model.FleetInvitation, write func() error) error {
	for attempt := 1; attempt <= s.settings.CodeAttempts; attempt++ {
		code, err := s.gen.InvitationCode(s.settings.CodeLength)
		if err != nil {
			return err
		}
		invitation.InvitationCode = code

		err = write()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}
		s.log.Debug().Int("attempt", attempt).Msg("invitation code collision, regenerating")
	}
	return fmt.Errorf("%w after %d attempts", ErrInvitationCodeUnavailable, s.settings.CodeAttempts)
}

// raceOutcome explains a lost conditional write by re-reading the invitation.
func (s *InvitationService) raceOutcome(ctx context.Context, invitationID uuid.UUID) error {
	current, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return err
	}
	if err := unusable(current); err != nil {
		return err
	}
	return fmt.Errorf("%w: invitation %s changed concurrently", ErrConflict, invitationID)
}

func (s *InvitationService) notify(ctx context.Context, fleet *model.Fleet, invitation *model.FleetInvitation) {
	if s.mailer == nil {
		return
	}
	msg := model.EmailMessage{
		To:      invitation.Email,
		Subject: "You are invited to join " + fleet.Name,
		Body: fmt.Sprintf("Use invitation code %s to join %s as %s. The code expires on %s.",
			invitation.InvitationCode, fleet.Name, invitation.Role, invitation.ExpiresAt.Format(time.RFC1123)),
		Metadata: map[string]string{
			"invitation_id": invitation.ID.String(),
			"fleet_id":      fleet.ID.String(),
		},
		RequestedAt: s.now().UTC(),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn().
			Err(err).
			Str("invitation_id", invitation.ID.String()).
			Msg("failed to send invitation email")
	}
}

func unusable(invitation *model.FleetInvitation) error {
	switch {
	case invitation.IsCancelled():
		return ErrInvitationCancelled
	case invitation.IsAccepted():
		return ErrInvitationAlreadyAccepted
	default:
		return nil
	}
}
