package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moogar0880/problems"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
	"github.com/garyjia/travel-approval/internal/domain/workflow"
)

// statusFor maps a service error to its HTTP status and problem type
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, workflow.ErrGuardFailed):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, workflow.ErrUnauthorizedApprover):
		return http.StatusForbidden, "unauthorized_approver"
	case errors.Is(err, workflow.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, report.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, entity.ErrInvalidArgument):
		return http.StatusBadRequest, "validation_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeProblem aborts the request with an RFC 7807 body. Internal errors are not echoed.
func writeProblem(c *gin.Context, err error) {
	status, kind := statusFor(err)
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Request.URL.Path).
		WithType(kind)
	if status != http.StatusInternalServerError {
		problem = problem.WithDetail(err.Error())
	}

	c.Header("Content-Type", problems.ProblemMediaType)
	c.AbortWithStatusJSON(status, problem)
}

func badRequest(c *gin.Context, detail string) {
	problem := problems.NewStatusProblem(http.StatusBadRequest).
		WithInstance(c.Request.URL.Path).
		WithType("validation_error").
		WithDetail(detail)

	c.Header("Content-Type", problems.ProblemMediaType)
	c.AbortWithStatusJSON(http.StatusBadRequest, problem)
}
