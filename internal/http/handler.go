package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"detention-service/internal/billing"
	"detention-service/internal/http/middleware"
	"detention-service/internal/model"
	"detention-service/internal/service"
)

type Handler struct {
	events      *service.EventService
	invoices    *service.InvoiceService
	fleets      *service.FleetService
	invitations *service.InvitationService
	contacts    *service.ContactService
	log         zerolog.Logger
}

type Services struct {
	Events      *service.EventService
	Invoices    *service.InvoiceService
	Fleets      *service.FleetService
	Invitations *service.InvitationService
	Contacts    *service.ContactService
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		events:      services.Events,
		invoices:    services.Invoices,
		fleets:      services.Fleets,
		invitations: services.Invitations,
		contacts:    services.Contacts,
		log:         log.With().Str("component", "http").Logger(),
	}
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return model.Principal{}, false
	}
	return principal, true
}

func pathID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid "+label+" id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var ineligible *service.IneligibleEventError
	var transition *billing.TransitionError

	switch {
	case errors.As(err, &ineligible):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    err.Error(),
			"event_id": ineligible.EventID,
			"reason":   ineligible.Reason,
		})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNoEventsSelected):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrInvitationNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"current":   transition.Current,
			"requested": transition.Requested,
		})
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, billing.ErrInvalidStateTransition),
		errors.Is(err, billing.ErrInvoiceNotDeletable),
		errors.Is(err, service.ErrInvitationExpired),
		errors.Is(err, service.ErrInvitationAlreadyAccepted),
		errors.Is(err, service.ErrInvitationCancelled):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvoiceNumberUnavailable),
		errors.Is(err, service.ErrInvitationCodeUnavailable),
		errors.Is(err, service.ErrDeliveryUnavailable),
		errors.Is(err, service.ErrDeliveryFailed):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	case errors.Is(err, service.ErrReconciliationRequired):
		h.log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Str("path", c.FullPath()).Msg("write left inconsistent state")
		c.JSON(http.StatusInternalServerError, errorResponse("reconciliation required"))
	default:
		h.log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

type pageQuery struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

func parsePageQuery(c *gin.Context) (pageQuery, error) {
	var q pageQuery
	if dateFrom := strings.TrimSpace(c.Query("date_from")); dateFrom != "" {
		ts, err := time.Parse(time.RFC3339, dateFrom)
		if err != nil {
			return q, err
		}
		q.DateFrom = &ts
	}
	if dateTo := strings.TrimSpace(c.Query("date_to")); dateTo != "" {
		ts, err := time.Parse(time.RFC3339, dateTo)
		if err != nil {
			return q, err
		}
		q.DateTo = &ts
	}
	if limit := strings.TrimSpace(c.Query("limit")); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			q.Limit = v
		}
	}
	if offset := strings.TrimSpace(c.Query("offset")); offset != "" {
		if v, err := strconv.Atoi(offset); err == nil {
			q.Offset = v
		}
	}
	return q, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
