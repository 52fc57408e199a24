package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"detention-service/internal/model"
	"detention-service/internal/repository"
)

// fleetAccess answers who may act on a fleet. The owner is always an admin.
type fleetAccess struct {
	fleets  FleetStore
	members MemberStore
}

func (a fleetAccess) fleet(ctx context.Context, fleetID uuid.UUID) (*model.Fleet, error) {
	fleet, err := a.fleets.GetByID(ctx, fleetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fleet, nil
}

func (a fleetAccess) requireAdmin(ctx context.Context, principal model.Principal, fleetID uuid.UUID) (*model.Fleet, error) {
	fleet, err := a.fleet(ctx, fleetID)
	if err != nil {
		return nil, err
	}
	if fleet.OwnerID == principal.UserID {
		return fleet, nil
	}
	member, err := a.members.Get(ctx, fleetID, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return fleet, nil
}

func (a fleetAccess) requireMember(ctx context.Context, principal model.Principal, fleetID uuid.UUID) (*model.Fleet, error) {
	fleet, err := a.fleet(ctx, fleetID)
	if err != nil {
		return nil, err
	}
	if fleet.OwnerID == principal.UserID {
		return fleet, nil
	}
	member, err := a.members.Get(ctx, fleetID, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}
	if !member.IsActive() {
		return nil, ErrPermissionDenied
	}
	return fleet, nil
}

type FleetService struct {
	fleets  FleetStore
	members MemberStore
	access  fleetAccess
	runner  atomicRunner
	now     func() time.Time
}

func NewFleetService(fleets FleetStore, members MemberStore, tx Transactor, log zerolog.Logger) *FleetService {
	log = log.With().Str("component", "fleet_service").Logger()
	return &FleetService{
		fleets:  fleets,
		members: members,
		access:  fleetAccess{fleets: fleets, members: members},
		runner:  atomicRunner{tx: tx, log: log},
		now:     time.Now,
	}
}

type CreateFleetInput struct {
	Name                      string
	DefaultHourlyRate         *decimal.Decimal
	DefaultGracePeriodMinutes *int
}

// Create registers a fleet owned by the caller, who also becomes its first
// active admin member.
func (s *FleetService) Create(ctx context.Context, principal model.Principal, input CreateFleetInput) (*model.Fleet, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidInput("fleet name is required")
	}
	if input.DefaultHourlyRate != nil && !input.DefaultHourlyRate.IsPositive() {
		return nil, invalidInput("default hourly rate must be positive")
	}
	if input.DefaultGracePeriodMinutes != nil && *input.DefaultGracePeriodMinutes < 0 {
		return nil, invalidInput("default grace period must not be negative")
	}

	now := s.now().UTC()
	fleet := &model.Fleet{
		ID:                        uuid.New(),
		OwnerID:                   principal.UserID,
		Name:                      name,
		DefaultHourlyRate:         input.DefaultHourlyRate,
		DefaultGracePeriodMinutes: input.DefaultGracePeriodMinutes,
	}
	owner := &model.FleetMember{
		ID:       uuid.New(),
		FleetID:  fleet.ID,
		UserID:   principal.UserID,
		Email:    strings.ToLower(principal.Email),
		Role:     model.FleetRoleAdmin,
		Status:   model.MemberStatusActive,
		JoinedAt: &now,
	}

	u := &unit{name: "create fleet " + fleet.ID.String()}
	u.add("insert fleet",
		func(ctx context.Context) error { return s.fleets.Create(ctx, fleet) },
		func(ctx context.Context) error { return s.fleets.Delete(ctx, fleet.ID) },
	)
	u.add("insert owner membership",
		func(ctx context.Context) error { return s.members.Create(ctx, owner) },
		nil,
	)
	if err := s.runner.run(ctx, u); err != nil {
		return nil, err
	}
	return fleet, nil
}

func (s *FleetService) Get(ctx context.Context, principal model.Principal, fleetID uuid.UUID) (*model.Fleet, error) {
	return s.access.requireMember(ctx, principal, fleetID)
}

func (s *FleetService) ListMembers(ctx context.Context, principal model.Principal, fleetID uuid.UUID) ([]model.FleetMember, error) {
	if _, err := s.access.requireMember(ctx, principal, fleetID); err != nil {
		return nil, err
	}
	return s.members.ListByFleet(ctx, fleetID)
}
