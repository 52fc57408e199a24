package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"detention-service/internal/model"
	"detention-service/internal/service"
)

type recipientPayload struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`
}

func (h *Handler) createInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req struct {
		EventIDs  []string         `json:"event_ids"`
		Recipient recipientPayload `json:"recipient"`
		Notes     string           `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.EventIDs))
	for _, raw := range req.EventIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid event id "+raw))
			return
		}
		ids = append(ids, id)
	}

	invoice, err := h.invoices.Create(c.Request.Context(), principal, service.CreateInvoiceInput{
		EventIDs: ids,
		Recipient: service.Recipient{
			Email:   req.Recipient.Email,
			Name:    req.Recipient.Name,
			Company: req.Recipient.Company,
		},
		Notes: req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(invoice))
}

func (h *Handler) listInvoices(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	page, err := parsePageQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	opts := service.ListInvoicesOptions{
		DateFrom: page.DateFrom,
		DateTo:   page.DateTo,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, val := range splitCSV(c.Query("status")) {
		status := model.InvoiceStatus(strings.ToLower(val))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, errorResponse("invalid status "+val))
			return
		}
		opts.Statuses = append(opts.Statuses, status)
	}

	invoices, err := h.invoices.List(c.Request.Context(), principal, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": invoices}))
}

func (h *Handler) getInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invoice")
	if !ok {
		return
	}

	record, err := h.invoices.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) sendInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invoice")
	if !ok {
		return
	}

	record, err := h.invoices.Send(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) deliverInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invoice")
	if !ok {
		return
	}

	delivery, err := h.invoices.Deliver(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(delivery))
}

func (h *Handler) payInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoices.MarkPaid(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(invoice))
}

func (h *Handler) deleteInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "invoice")
	if !ok {
		return
	}

	if err := h.invoices.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"status": "deleted"}))
}
