package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"detention-service/internal/http/middleware"
)

// HealthFunc reports whether the storage backend is reachable.
type HealthFunc func(ctx context.Context) error

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, health HealthFunc, env string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(handler.log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/events", handler.startEvent)
		protected.GET("/events", handler.listEvents)
		protected.GET("/events/:id", handler.getEvent)
		protected.POST("/events/:id/complete", handler.completeEvent)
		protected.POST("/events/:id/cancel", handler.cancelEvent)

		protected.POST("/invoices", handler.createInvoice)
		protected.GET("/invoices", handler.listInvoices)
		protected.GET("/invoices/:id", handler.getInvoice)
		protected.POST("/invoices/:id/send", handler.sendInvoice)
		protected.POST("/invoices/:id/deliver", handler.deliverInvoice)
		protected.POST("/invoices/:id/pay", handler.payInvoice)
		protected.DELETE("/invoices/:id", handler.deleteInvoice)

		protected.POST("/fleets", handler.createFleet)
		protected.GET("/fleets/:id", handler.getFleet)
		protected.GET("/fleets/:id/members", handler.listMembers)
		protected.POST("/fleets/:id/invitations", handler.createInvitation)
		protected.GET("/fleets/:id/invitations", handler.listInvitations)
		protected.POST("/invitations/accept", handler.acceptInvitation)
		protected.POST("/invitations/:id/resend", handler.resendInvitation)
		protected.DELETE("/invitations/:id", handler.cancelInvitation)

		protected.GET("/contacts", handler.listContacts)
		protected.POST("/contacts/usage", handler.recordContactUsage)
	}

	return router
}
