package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detention-service/internal/service"
)

func (h *Handler) listContacts(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	contacts, err := h.contacts.List(c.Request.Context(), principal, c.Query("q"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": contacts}))
}

func (h *Handler) recordContactUsage(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req struct {
		Email   string `json:"email" binding:"required"`
		Name    string `json:"name"`
		Company string `json:"company"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	contact, err := h.contacts.RecordUsage(c.Request.Context(), principal, service.RecordContactInput{
		Email:   req.Email,
		Name:    req.Name,
		Company: req.Company,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(contact))
}
