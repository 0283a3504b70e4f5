package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExamHandler struct {
	BaseHandler
	examService   services.ExamService
	exportService services.ExportService
}

func NewExamHandler(examService services.ExamService, exportService services.ExportService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler:   NewBaseHandler(logger),
		examService:   examService,
		exportService: exportService,
	}
}

type EndTestRequest struct {
	StudentEmail string `json:"student_email"`
}

// CreateExam creates an unpublished exam
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req services.CreateExamRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	exam, err := h.examService.CreateExam(c.Request.Context(), p, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam retrieves an exam by ID
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetExam(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ListMyExams lists the caller's exams; super-admins see every exam
// @Router /exams [get]
func (h *ExamHandler) ListMyExams(c *gin.Context) {
	var req services.ListExamsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	exams, total, err := h.examService.ListExams(c.Request.Context(), p, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: exams, Total: total, Limit: req.Limit, Offset: req.Offset})
}

// DeleteExam removes an exam together with its sets
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting exam", "exam_id", id)
	if err := h.examService.DeleteExam(c.Request.Context(), p, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted successfully"})
}

// AssignExam publishes the exam to a class and generates the students' sets
// @Param body body services.AssignExamRequest true "Class and window"
// @Router /exams/{id}/assign [post]
func (h *ExamHandler) AssignExam(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.AssignExamRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Assigning exam", "exam_id", id, "class_id", req.ClassID)
	exam, err := h.examService.AssignExam(c.Request.Context(), p, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam assigned successfully", Data: exam})
}

// UpdateExam changes the exam's details. Changing the set layout of an
// assigned exam rebuilds its sets.
// @Param body body services.UpdateExamRequest true "Fields to change"
// @Router /exams/{id} [patch]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.UpdateExamRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	exam, err := h.examService.UpdateExam(c.Request.Context(), p, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ScheduleExam moves the exam window
// @Param body body services.ScheduleExamRequest true "New window"
// @Router /exams/{id}/schedule [patch]
func (h *ExamHandler) ScheduleExam(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.ScheduleExamRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Scheduling exam", "exam_id", id, "start_time", req.StartTime, "end_time", req.EndTime)
	exam, err := h.examService.ScheduleExam(c.Request.Context(), p, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam scheduled successfully", Data: exam})
}

// @Param body body models.SecuritySettings true "Client security flags"
// @Router /exams/{id}/security [patch]
func (h *ExamHandler) UpdateSecuritySettings(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var settings models.SecuritySettings
	if !h.bindJSON(c, &settings) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	exam, err := h.examService.UpdateSecuritySettings(c.Request.Context(), p, id, settings)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Security settings updated", Data: exam.SecuritySettings.Data()})
}

// RegenerateSets rebuilds every set from the current roster
// @Router /exams/{id}/regenerate-sets [post]
func (h *ExamHandler) RegenerateSets(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Regenerating question sets", "exam_id", id)
	result, err := h.examService.RegenerateSets(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question sets regenerated", Data: result})
}

// ToggleScoreRelease flips whether students can see their scores
// @Router /exams/{id}/toggle-score-release [post]
func (h *ExamHandler) ToggleScoreRelease(c *gin.Context) {
	h.toggle(c, "score_released", h.examService.ToggleScoreRelease)
}

// ToggleAnswerRelease flips whether students can review correct answers
// @Router /exams/{id}/toggle-answer-release [post]
func (h *ExamHandler) ToggleAnswerRelease(c *gin.Context) {
	h.toggle(c, "answers_released", h.examService.ToggleAnswerRelease)
}

func (h *ExamHandler) toggle(c *gin.Context, field string, fn func(context.Context, models.Principal, uint) (bool, error)) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	value, err := fn(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exam_id": id, field: value})
}

// EndTest force-completes one student's set, or the whole exam when no email is given
// @Param body body EndTestRequest false "Student to end"
// @Router /exams/{id}/end [post]
func (h *ExamHandler) EndTest(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req EndTestRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Ending test", "exam_id", id, "student_email", req.StudentEmail)
	result, err := h.examService.EndTest(c.Request.Context(), p, id, req.StudentEmail)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetQuestionSetsDebug reports per-set question counts
// @Router /exams/{id}/question-sets [get]
func (h *ExamHandler) GetQuestionSetsDebug(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	debug, err := h.examService.GetQuestionSetsDebug(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, debug)
}

// ExportResults downloads the exam's submissions as a spreadsheet
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /exams/{id}/results/export [get]
func (h *ExamHandler) ExportResults(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	data, err := h.exportService.ExportResults(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}
