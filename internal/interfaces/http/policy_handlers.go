package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// PolicyHandlers serves approval policy management
type PolicyHandlers struct {
	policyService service.PolicyService
	logger        Logger
}

// NewPolicyHandlers creates policy handlers
func NewPolicyHandlers(policyService service.PolicyService, logger Logger) *PolicyHandlers {
	return &PolicyHandlers{
		policyService: policyService,
		logger:        logger,
	}
}

// List handles GET /api/policies
func (h *PolicyHandlers) List(c *gin.Context) {
	policies, err := h.policyService.List(c.Request.Context())
	if err != nil {
		writeProblem(c, err)
		return
	}
	if policies == nil {
		policies = []*entity.Policy{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: policies})
}

// Get handles GET /api/policies/:id
func (h *PolicyHandlers) Get(c *gin.Context) {
	p, err := h.policyService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: p})
}

// Create handles POST /api/policies
func (h *PolicyHandlers) Create(c *gin.Context) {
	var req service.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	p, err := h.policyService.Create(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Policy create failed", "error", err)
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: p})
}

// Update handles PUT /api/policies/:id
func (h *PolicyHandlers) Update(c *gin.Context) {
	var req service.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	p, err := h.policyService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.logger.Error("Policy update failed", "policy_id", c.Param("id"), "error", err)
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: p})
}

// Deactivate handles DELETE /api/policies/:id. The policy is kept, inactive.
func (h *PolicyHandlers) Deactivate(c *gin.Context) {
	p, err := h.policyService.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: p})
}

// Match handles POST /api/policies/match
func (h *PolicyHandlers) Match(c *gin.Context) {
	var req service.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	preview, err := h.policyService.Preview(c.Request.Context(), req)
	if err != nil {
		writeProblem(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: preview})
}
