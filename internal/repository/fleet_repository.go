package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"detention-service/internal/model"
)

type FleetRepository struct {
	db *gorm.DB
}

func NewFleetRepository(db *gorm.DB) *FleetRepository {
	return &FleetRepository{db: db}
}

func (r *FleetRepository) Create(ctx context.Context, fleet *model.Fleet) error {
	return translate(conn(ctx, r.db).Create(fleet).Error)
}

func (r *FleetRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Fleet, error) {
	var fleet model.Fleet
	if err := conn(ctx, r.db).Where("id = ?", id).First(&fleet).Error; err != nil {
		return nil, translate(err)
	}
	return &fleet, nil
}

func (r *FleetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(conn(ctx, r.db).Where("id = ?", id).Delete(&model.Fleet{}))
}

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create fails with ErrDuplicateKey when the user already belongs to the fleet.
func (r *MemberRepository) Create(ctx context.Context, member *model.FleetMember) error {
	return translate(conn(ctx, r.db).Create(member).Error)
}

func (r *MemberRepository) Get(ctx context.Context, fleetID, userID uuid.UUID) (*model.FleetMember, error) {
	var member model.FleetMember
	err := conn(ctx, r.db).
		Where("fleet_id = ? AND user_id = ?", fleetID, userID).
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (r *MemberRepository) ListByFleet(ctx context.Context, fleetID uuid.UUID) ([]model.FleetMember, error) {
	var members []model.FleetMember
	err := conn(ctx, r.db).
		Where("fleet_id = ?", fleetID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, translate(err)
	}
	return members, nil
}
