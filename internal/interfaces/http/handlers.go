package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains the subject and approval handlers
type Handlers struct {
	approvalService service.ApprovalService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(approvalService service.ApprovalService, logger Logger) *Handlers {
	return &Handlers{
		approvalService: approvalService,
		logger:          logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// CreateSubject handles POST /api/subjects
func (h *Handlers) CreateSubject(c *gin.Context) {
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		badRequest(c, "invalid request body")
		return
	}

	subject, err := h.approvalService.CreateSubject(c.Request.Context(), req)
	if err != nil {
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: subject})
}

// GetSubject handles GET /api/subjects/:id
func (h *Handlers) GetSubject(c *gin.Context) {
	res, err := h.approvalService.GetSubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toSubjectResponse(res)})
}

// SubmitSubject handles POST /api/subjects/:id/submit
func (h *Handlers) SubmitSubject(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.approvalService.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.logger.Error("Submit failed", "subject_id", c.Param("id"), "error", err)
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toSubjectResponse(res)})
}

// Decide handles POST /api/subjects/:id/decisions
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.approvalService.Decide(c.Request.Context(), entity.Decision{
		SubjectID: c.Param("id"),
		ActorID:   req.ActorID,
		Level:     req.Level,
		Action:    req.Action,
		Comments:  req.Comments,
	})
	if err != nil {
		h.logger.Error("Decision failed", "subject_id", c.Param("id"), "actor_id", req.ActorID, "error", err)
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toSubjectResponse(res)})
}

// ListPending handles GET /api/approvals/pending
func (h *Handlers) ListPending(c *gin.Context) {
	subjects, err := h.approvalService.ListPending(c.Request.Context(), c.Query("approver"))
	if err != nil {
		writeProblem(c, err)
		return
	}
	if subjects == nil {
		subjects = []*entity.Subject{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: subjects})
}

// Verify handles POST /api/admin/verify
func (h *Handlers) Verify(c *gin.Context) {
	rep, err := h.approvalService.VerifyAll(c.Request.Context())
	if err != nil {
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: VerifyResponse{Checked: rep.Checked, Divergent: rep.Divergent}})
}
