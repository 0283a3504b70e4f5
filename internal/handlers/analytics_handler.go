package handlers

import (
	"net/http"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, logger utils.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
	}
}

// @Router /exams/{id}/analysis [get]
func (h *AnalyticsHandler) GetExamAnalysis(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	analysis, err := h.analyticsService.GetExamAnalysis(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// @Router /exams/{id}/participants [get]
func (h *AnalyticsHandler) GetExamParticipants(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	participants, err := h.analyticsService.GetExamParticipants(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exam_id": id, "participants": participants})
}

// @Router /exams/{id}/monitoring [get]
func (h *AnalyticsHandler) GetMonitoringData(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	entries, err := h.analyticsService.GetMonitoringData(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exam_id": id, "students": entries})
}

// GetStudentPerformance summarises the caller's own results
// @Router /students/me/performance [get]
func (h *AnalyticsHandler) GetStudentPerformance(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	perf, err := h.analyticsService.GetStudentPerformance(c.Request.Context(), p)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, perf)
}

// GetAllStudentsForAnalysis ranks the students of the caller's classes
// @Router /analytics/students [get]
func (h *AnalyticsHandler) GetAllStudentsForAnalysis(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	ranking, err := h.analyticsService.GetAllStudentsForAnalysis(c.Request.Context(), p)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"students": ranking, "total": len(ranking)})
}

// @Router /analytics/students/{student_id} [get]
func (h *AnalyticsHandler) GetStudentDetailedAnalysis(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("student_id"))
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid student_id"})
		return
	}
	p, ok := h.principal(c)
	if !ok {
		return
	}

	analysis, err := h.analyticsService.GetStudentDetailedAnalysis(c.Request.Context(), p, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}
