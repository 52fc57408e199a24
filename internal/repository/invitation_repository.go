package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"detention-service/internal/billing"
	"detention-service/internal/model"
)

type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(ctx context.Context, invitation *model.FleetInvitation) error {
	return translate(conn(ctx, r.db).Create(invitation).Error)
}

func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FleetInvitation, error) {
	var invitation model.FleetInvitation
	if err := conn(ctx, r.db).Where("id = ?", id).First(&invitation).Error; err != nil {
		return nil, translate(err)
	}
	return &invitation, nil
}

// GetByCode matches codes case-insensitively. Codes are stored upper-case.
func (r *InvitationRepository) GetByCode(ctx context.Context, code string) (*model.FleetInvitation, error) {
	var invitation model.FleetInvitation
	err := conn(ctx, r.db).
		Where("invitation_code = ?", billing.NormalizeCode(code)).
		First(&invitation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invitation, nil
}

func (r *InvitationRepository) ListByFleet(ctx context.Context, fleetID uuid.UUID) ([]model.FleetInvitation, error) {
	var invitations []model.FleetInvitation
	err := conn(ctx, r.db).
		Where("fleet_id = ?", fleetID).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, translate(err)
	}
	return invitations, nil
}

// UpdatePending rewrites the resend and cancel fields of an invitation that is
// neither accepted nor cancelled yet.
func (r *InvitationRepository) UpdatePending(ctx context.Context, invitation *model.FleetInvitation) error {
	result := conn(ctx, r.db).
		Model(&model.FleetInvitation{}).
		Where("id = ? AND accepted_at IS NULL AND cancelled_at IS NULL", invitation.ID).
		Updates(map[string]interface{}{
			"invitation_code": invitation.InvitationCode,
			"expires_at":      invitation.ExpiresAt,
			"resend_count":    invitation.ResendCount,
			"last_sent_at":    invitation.LastSentAt,
			"cancelled_at":    nullable(invitation.CancelledAt),
		})
	return expectOne(result)
}

func (r *InvitationRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	result := conn(ctx, r.db).
		Model(&model.FleetInvitation{}).
		Where("id = ? AND accepted_at IS NULL AND cancelled_at IS NULL", id).
		Updates(map[string]interface{}{
			"accepted_at": at,
			"accepted_by": userID,
		})
	return expectOne(result)
}

// RevertAccepted clears an acceptance made by userID.
func (r *InvitationRepository) RevertAccepted(ctx context.Context, id, userID uuid.UUID) error {
	result := conn(ctx, r.db).
		Model(&model.FleetInvitation{}).
		Where("id = ? AND accepted_by = ?", id, userID).
		Updates(map[string]interface{}{
			"accepted_at": gorm.Expr("NULL"),
			"accepted_by": gorm.Expr("NULL"),
		})
	return expectOne(result)
}
