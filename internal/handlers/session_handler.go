package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// SessionHandler serves the student side: papers, submission and results
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	gradingService services.GradingService
}

func NewSessionHandler(sessionService services.SessionService, gradingService services.GradingService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		gradingService: gradingService,
	}
}

// GetQuestions returns the caller's question paper for an exam
// @Router /exams/{id}/questions [get]
func (h *SessionHandler) GetQuestions(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	paper, err := h.sessionService.GetQuestionsForStudent(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

// SubmitTest grades the caller's answers. Scores stay hidden until released.
// @Param body body services.SubmitRequest true "Answers and proctoring counters"
// @Router /exams/submit-test [post]
func (h *SessionHandler) SubmitTest(c *gin.Context) {
	var req services.SubmitRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting test", "exam_id", req.ExamID, "answers", len(req.Answers), "reason", req.Reason)
	submission, err := h.gradingService.Submit(c.Request.Context(), p, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	summary, err := h.sessionService.Summarize(c.Request.Context(), submission)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "Test submitted successfully", Data: summary})
}

// GetAssignedExams lists the open exams the caller still has to take
// @Router /students/me/exams [get]
func (h *SessionHandler) GetAssignedExams(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	exams, err := h.sessionService.GetAssignedExams(c.Request.Context(), p)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": exams})
}

// GetAttendedTests lists the caller's submissions
// @Router /students/me/tests [get]
func (h *SessionHandler) GetAttendedTests(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	tests, err := h.sessionService.GetAttendedTests(c.Request.Context(), p)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tests})
}

// GetTestAnswers returns the answer review; staff may pass student_email
// @Param student_email query string false "Student to review"
// @Router /exams/{id}/my-answers [get]
func (h *SessionHandler) GetTestAnswers(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	review, err := h.sessionService.GetTestAnswers(c.Request.Context(), p, id, c.Query("student_email"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exam_id": id, "answers": review})
}
