package handler

import (
	"github.com/fieldbridge/backend/internal/application/orchestration"
	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/fieldbridge/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestHandler handles service request endpoints
type RequestHandler struct {
	BaseHandler
	orchestrator *orchestration.Orchestrator
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(orchestrator *orchestration.Orchestrator) *RequestHandler {
	return &RequestHandler{orchestrator: orchestrator}
}

// RegisterRoutes registers request routes on the given group. The :id
// segment accepts either the request UUID or the caller's correlation ID,
// so callers who only hold their own key never need ours.
func (h *RequestHandler) RegisterRoutes(rg *gin.RouterGroup) {
	requests := rg.Group("/requests")
	{
		requests.POST("", h.Submit)
		requests.GET("", h.List)
		requests.GET("/:id", h.GetByID)
		requests.GET("/:id/transitions", h.Transitions)
		requests.POST("/:id/decision", h.Decide)
		requests.POST("/:id/retry", h.Retry)
		requests.GET("/correlation/:correlation_id", h.GetByCorrelationID)
	}
}

// SubmitRequest is the body for submitting a service request. Callers may
// omit the correlation ID; the server then generates one and returns it.
type SubmitRequest struct {
	CorrelationID string                 `json:"correlation_id" binding:"omitempty,max=128"`
	Kind          string                 `json:"kind" binding:"required,oneof=APPOINTMENT WORK_ORDER ACCOUNT_CREATION"`
	Payload       request.RequestPayload `json:"payload" binding:"required"`
}

// DecisionRequest is the body for a review decision
type DecisionRequest struct {
	Approve    bool   `json:"approve"`
	ResourceID string `json:"resource_id" binding:"max=100"`
	Reason     string `json:"reason" binding:"max=1000"`
}

// ListRequestsQuery holds list query parameters
type ListRequestsQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	State    string `form:"state"`
	Kind     string `form:"kind"`
	Category string `form:"category"`
}

// Submit registers a new request, or replays an earlier submission with
// the same correlation ID. New submissions get 201, replays 200, and a
// correlation ID reused with a different payload gets 409.
func (h *RequestHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, middleware.FormatValidationError(err))
		return
	}

	resp, created, err := h.orchestrator.Submit(c.Request.Context(), orchestration.SubmitCommand{
		CorrelationID: req.CorrelationID,
		Kind:          request.RequestKind(req.Kind),
		Payload:       req.Payload,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if created {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// List returns a page of requests matching the filter
func (h *RequestHandler) List(c *gin.Context) {
	var query ListRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, middleware.FormatValidationError(err))
		return
	}

	filter := orchestration.ListFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
		Category: query.Category,
	}
	if query.State != "" {
		state := request.RequestState(query.State)
		if !state.IsValid() {
			h.BadRequest(c, "Unknown state filter")
			return
		}
		filter.State = &state
	}
	if query.Kind != "" {
		kind := request.RequestKind(query.Kind)
		if !kind.IsValid() {
			h.BadRequest(c, "Unknown kind filter")
			return
		}
		filter.Kind = &kind
	}

	page, err := h.orchestrator.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// resolveRequestID turns the :id path segment into a request UUID,
// treating anything that does not parse as a UUID as a correlation ID.
func (h *RequestHandler) resolveRequestID(c *gin.Context) (uuid.UUID, bool) {
	param := c.Param("id")
	if id, err := uuid.Parse(param); err == nil {
		return id, true
	}
	resp, err := h.orchestrator.GetByCorrelationID(c.Request.Context(), param)
	if err != nil {
		h.HandleError(c, err)
		return uuid.Nil, false
	}
	return resp.ID, true
}

// GetByID returns one request
func (h *RequestHandler) GetByID(c *gin.Context) {
	id, ok := h.resolveRequestID(c)
	if !ok {
		return
	}

	resp, err := h.orchestrator.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetByCorrelationID returns one request by its correlation ID
func (h *RequestHandler) GetByCorrelationID(c *gin.Context) {
	correlationID := c.Param("correlation_id")
	if correlationID == "" {
		h.BadRequest(c, "Correlation ID is required")
		return
	}

	resp, err := h.orchestrator.GetByCorrelationID(c.Request.Context(), correlationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Transitions returns the audit trail for one request
func (h *RequestHandler) Transitions(c *gin.Context) {
	id, ok := h.resolveRequestID(c)
	if !ok {
		return
	}

	records, err := h.orchestrator.Transitions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// Decide applies a review decision to a pending request
func (h *RequestHandler) Decide(c *gin.Context) {
	id, ok := h.resolveRequestID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, middleware.FormatValidationError(err))
		return
	}

	resp, err := h.orchestrator.Decide(c.Request.Context(), orchestration.DecideCommand{
		RequestID:  id,
		Approve:    req.Approve,
		Actor:      getActor(c),
		ResourceID: req.ResourceID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Retry manually re-dispatches a failed request
func (h *RequestHandler) Retry(c *gin.Context) {
	id, ok := h.resolveRequestID(c)
	if !ok {
		return
	}

	resp, err := h.orchestrator.Retry(c.Request.Context(), id, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
