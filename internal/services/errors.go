package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Validation
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrInvalidExamConfig = errors.New("invalid exam configuration")

	// Not found
	ErrExamNotFound        = errors.New("exam not found")
	ErrQuestionSetNotFound = errors.New("question set not found for this student")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrClassNotFound       = errors.New("class not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrNoEnrollment        = errors.New("student is not enrolled in any class")

	// Authorization
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrExamAccessDenied = errors.New("access denied to exam")
	ErrNotEnrolled      = errors.New("student is not enrolled in the exam's class")

	// State
	ErrExamNotPublished       = errors.New("exam is not published")
	ErrExamNotStarted         = errors.New("exam has not started yet")
	ErrExamExpired            = errors.New("exam has expired")
	ErrNoAssignedSet          = errors.New("no question set assigned to this student")
	ErrAlreadySubmitted       = errors.New("exam already submitted")
	ErrRegenerationInProgress = errors.New("question set generation already in progress")
	ErrExamNotAssigned        = errors.New("exam is not assigned to a class")
	ErrSubmissionsExist       = errors.New("exam already has submissions")
	ErrExamEnded              = errors.New("exam was ended by the instructor")
	ErrAnswersNotReleased     = errors.New("answers have not been released")

	// Capacity
	ErrInsufficientQuestions = errors.New("not enough questions in pool")
	ErrEmptyRoster           = errors.New("class roster is empty")
	ErrInvalidRosterEntry    = errors.New("roster entry has no email")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	cause   error
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// Unwrap exposes the sentinel the rule was raised for.
func (bre *BusinessRuleError) Unwrap() error {
	return bre.cause
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func (pe *PermissionError) Unwrap() error {
	return ErrExamAccessDenied
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// NewBusinessRuleError wraps cause with the rule name and some context.
// errors.Is(err, cause) keeps working on the result.
func NewBusinessRuleError(cause error, rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
		cause:   cause,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrQuestionSetNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrClassNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrNoEnrollment)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrExamAccessDenied) ||
		errors.Is(err, ErrNotEnrolled)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrInvalidAnswer) ||
		errors.Is(err, ErrInvalidExamConfig) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsState checks if error is an exam lifecycle gate
func IsState(err error) bool {
	return errors.Is(err, ErrExamNotPublished) ||
		errors.Is(err, ErrExamNotStarted) ||
		errors.Is(err, ErrExamExpired) ||
		errors.Is(err, ErrNoAssignedSet) ||
		errors.Is(err, ErrExamNotAssigned) ||
		errors.Is(err, ErrAnswersNotReleased) ||
		IsConflict(err)
}

// IsCapacity checks if error is about the pool or roster being too small
func IsCapacity(err error) bool {
	return errors.Is(err, ErrInsufficientQuestions) ||
		errors.Is(err, ErrEmptyRoster) ||
		errors.Is(err, ErrInvalidRosterEntry)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrRegenerationInProgress) ||
		errors.Is(err, ErrSubmissionsExist) ||
		errors.Is(err, ErrExamEnded)
}
