package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/gin-gonic/gin"
)

// parseIDParam reads a positive numeric path parameter, answering 400 and
// returning 0 when it is not one.
func parseIDParam(c *gin.Context, param string) uint {
	idStr := strings.TrimSpace(c.Param(param))
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID must be a positive integer",
		})
		return 0
	}
	return uint(id)
}

// handleServiceError maps service failures onto HTTP statuses.
// Anything unclassified is a 500 whose cause only goes to the log.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "validation_error",
		})
		return
	}

	var ruleErr *services.BusinessRuleError
	errors.As(err, &ruleErr)
	ruleDetails := func() interface{} {
		if ruleErr == nil {
			return nil
		}
		return gin.H{"rule": ruleErr.Rule, "context": ruleErr.Context}
	}

	switch {
	case services.IsCapacity(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: rootMessage(err, ruleErr), Details: ruleDetails(), Code: "capacity_error"})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: rootMessage(err, ruleErr), Details: ruleDetails(), Code: "validation_error"})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: rootMessage(err, ruleErr), Code: "not_found"})
	case services.IsUnauthorized(err):
		var permErr *services.PermissionError
		resp := ErrorResponse{Message: "Access denied", Code: "forbidden"}
		if errors.As(err, &permErr) {
			resp.Details = gin.H{"resource": permErr.Resource, "action": permErr.Action, "reason": permErr.Reason}
		} else {
			resp.Message = rootMessage(err, ruleErr)
		}
		c.JSON(http.StatusForbidden, resp)
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: rootMessage(err, ruleErr), Details: ruleDetails(), Code: "conflict"})
	case services.IsState(err):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: rootMessage(err, ruleErr), Details: ruleDetails(), Code: "state_error"})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

// rootMessage prefers the rule's own message and otherwise the classified
// sentinel's text, never the wrapped chain.
func rootMessage(err error, ruleErr *services.BusinessRuleError) string {
	if ruleErr != nil && ruleErr.Message != "" {
		return ruleErr.Message
	}
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "Request could not be completed"
}

var publicErrors = []error{
	services.ErrValidationFailed,
	services.ErrInvalidAnswer,
	services.ErrInvalidExamConfig,
	services.ErrExamNotFound,
	services.ErrQuestionSetNotFound,
	services.ErrQuestionNotFound,
	services.ErrClassNotFound,
	services.ErrSubmissionNotFound,
	services.ErrUserNotFound,
	services.ErrNotEnrolled,
	services.ErrExamAccessDenied,
	services.ErrUnauthorized,
	services.ErrExamNotPublished,
	services.ErrExamNotStarted,
	services.ErrExamExpired,
	services.ErrNoAssignedSet,
	services.ErrAlreadySubmitted,
	services.ErrRegenerationInProgress,
	services.ErrExamNotAssigned,
	services.ErrSubmissionsExist,
	services.ErrAnswersNotReleased,
	services.ErrInsufficientQuestions,
	services.ErrEmptyRoster,
	services.ErrInvalidRosterEntry,
}
