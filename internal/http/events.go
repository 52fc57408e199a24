package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"detention-service/internal/model"
	"detention-service/internal/service"
)

func (h *Handler) startEvent(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req struct {
		FacilityID         string           `json:"facility_id" binding:"required"`
		FleetID            string           `json:"fleet_id"`
		ArrivalTime        *time.Time       `json:"arrival_time"`
		HourlyRate         *decimal.Decimal `json:"hourly_rate"`
		GracePeriodMinutes *int             `json:"grace_period_minutes"`
		Notes              string           `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	facilityID, err := uuid.Parse(strings.TrimSpace(req.FacilityID))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid facility_id"))
		return
	}
	input := service.StartEventInput{
		FacilityID:         facilityID,
		ArrivalTime:        req.ArrivalTime,
		HourlyRate:         req.HourlyRate,
		GracePeriodMinutes: req.GracePeriodMinutes,
		Notes:              req.Notes,
	}
	if raw := strings.TrimSpace(req.FleetID); raw != "" {
		fleetID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid fleet_id"))
			return
		}
		input.FleetID = &fleetID
	}

	event, err := h.events.Start(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(event))
}

func (h *Handler) listEvents(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	page, err := parsePageQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	opts := service.ListEventsOptions{
		DateFrom: page.DateFrom,
		DateTo:   page.DateTo,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, val := range splitCSV(c.Query("status")) {
		status := model.EventStatus(strings.ToLower(val))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, errorResponse("invalid status "+val))
			return
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	if raw := strings.TrimSpace(c.Query("fleet_id")); raw != "" {
		fleetID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid fleet_id"))
			return
		}
		opts.FleetID = &fleetID
	}

	views, err := h.events.List(c.Request.Context(), principal, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": views}))
}

func (h *Handler) getEvent(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "event")
	if !ok {
		return
	}

	view, err := h.events.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(view))
}

func (h *Handler) completeEvent(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "event")
	if !ok {
		return
	}

	var req struct {
		DepartureTime *time.Time `json:"departure_time"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	event, err := h.events.Complete(c.Request.Context(), principal, id, req.DepartureTime)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(event))
}

func (h *Handler) cancelEvent(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "event")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	event, err := h.events.Cancel(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(event))
}
