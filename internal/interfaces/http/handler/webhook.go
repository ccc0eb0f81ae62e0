package handler

import (
	"github.com/fieldbridge/backend/internal/application/orchestration"
	"github.com/fieldbridge/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// WebhookHandler receives lifecycle notifications from the ITSM system
type WebhookHandler struct {
	BaseHandler
	orchestrator *orchestration.Orchestrator
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(orchestrator *orchestration.Orchestrator) *WebhookHandler {
	return &WebhookHandler{orchestrator: orchestrator}
}

// RegisterRoutes registers webhook routes on the given group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/itsm", h.HandleITSM)
}

// ITSMWebhookRequest is the payload the ITSM system posts on ticket
// lifecycle changes. Events are identified by correlation ID, by ticket
// reference, or both; at least one must be present.
type ITSMWebhookRequest struct {
	CorrelationID string `json:"correlation_id" binding:"required_without=TicketRef,max=128"`
	EventType     string `json:"event_type" binding:"required"`
	TicketRef     string `json:"ticket_ref" binding:"required_without=CorrelationID,max=128"`
	Actor         string `json:"actor"`
	Detail        string `json:"detail"`
}

// HandleITSM processes one ITSM event. Deliveries are deduplicated on
// (correlation ID, event type), so ITSM-side redelivery is safe.
func (h *WebhookHandler) HandleITSM(c *gin.Context) {
	var req ITSMWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, middleware.FormatValidationError(err))
		return
	}

	err := h.orchestrator.HandleITSMEvent(c.Request.Context(), orchestration.ITSMEvent{
		CorrelationID: req.CorrelationID,
		EventType:     req.EventType,
		TicketRef:     req.TicketRef,
		Actor:         req.Actor,
		Detail:        req.Detail,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"processed": true})
}
