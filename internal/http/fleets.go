package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"detention-service/internal/model"
	"detention-service/internal/service"
)

func (h *Handler) createFleet(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req struct {
		Name                      string           `json:"name" binding:"required"`
		DefaultHourlyRate         *decimal.Decimal `json:"default_hourly_rate"`
		DefaultGracePeriodMinutes *int             `json:"default_grace_period_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	fleet, err := h.fleets.Create(c.Request.Context(), principal, service.CreateFleetInput{
		Name:                      req.Name,
		DefaultHourlyRate:         req.DefaultHourlyRate,
		DefaultGracePeriodMinutes: req.DefaultGracePeriodMinutes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(fleet))
}

func (h *Handler) getFleet(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "fleet")
	if !ok {
		return
	}

	fleet, err := h.fleets.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(fleet))
}

func (h *Handler) listMembers(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "fleet")
	if !ok {
		return
	}

	members, err := h.fleets.ListMembers(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": members}))
}

func (h *Handler) createInvitation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	fleetID, ok := pathID(c, "id", "fleet")
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	role := model.FleetRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = model.FleetRoleDriver
	}

	invitation, err := h.invitations.Create(c.Request.Context(), principal, service.CreateInvitationInput{
		FleetID: fleetID,
		Email:   req.Email,
		Role:    role,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(invitation))
}

func (h *Handler) listInvitations(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	fleetID, ok := pathID(c, "id", "fleet")
	if !ok {
		return
	}

	items, err := h.invitations.ListByFleet(c.Request.Context(), principal, fleetID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": items}))
}

func (h *Handler) resendInvitation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invitation")
	if !ok {
		return
	}

	var req struct {
		RegenerateCode bool `json:"regenerate_code"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	invitation, err := h.invitations.Resend(c.Request.Context(), principal, id, req.RegenerateCode)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(invitation))
}

func (h *Handler) cancelInvitation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invitation")
	if !ok {
		return
	}

	if err := h.invitations.Cancel(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"status": "cancelled"}))
}

func (h *Handler) acceptInvitation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	member, err := h.invitations.Accept(c.Request.Context(), principal, req.Code)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(member))
}
