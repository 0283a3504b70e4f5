package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/middleware"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// DependencyCheck reports whether a backing service is reachable
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HandlerManager struct {
	examHandler      *ExamHandler
	sessionHandler   *SessionHandler
	analyticsHandler *AnalyticsHandler
	checks           []DependencyCheck
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	checks ...DependencyCheck,
) *HandlerManager {
	return &HandlerManager{
		examHandler:      NewExamHandler(serviceManager.Exam(), serviceManager.Export(), logger),
		sessionHandler:   NewSessionHandler(serviceManager.Session(), serviceManager.Grading(), logger),
		analyticsHandler: NewAnalyticsHandler(serviceManager.Analytics(), logger),
		checks:           checks,
	}
}

// SetupRoutes sets up all API routes. auth must store the caller's Principal.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", hm.HealthCheck)

	v1 := router.Group("/api/v1", auth)
	{
		exams := v1.Group("/exams")
		{
			// Student routes
			exams.POST("/submit-test", hm.sessionHandler.SubmitTest)
			exams.GET("/:id/questions", hm.sessionHandler.GetQuestions)
			exams.GET("/:id/my-answers", hm.sessionHandler.GetTestAnswers)

			// Instructor routes
			staff := exams.Group("", middleware.RequireStaff())
			staff.POST("", hm.examHandler.CreateExam)
			staff.GET("", hm.examHandler.ListMyExams)
			staff.GET("/:id", hm.examHandler.GetExam)
			staff.PATCH("/:id", hm.examHandler.UpdateExam)
			staff.DELETE("/:id", hm.examHandler.DeleteExam)
			staff.PATCH("/:id/schedule", hm.examHandler.ScheduleExam)
			staff.PATCH("/:id/security", hm.examHandler.UpdateSecuritySettings)
			staff.POST("/:id/assign", hm.examHandler.AssignExam)
			staff.POST("/:id/regenerate-sets", hm.examHandler.RegenerateSets)
			staff.POST("/:id/toggle-score-release", hm.examHandler.ToggleScoreRelease)
			staff.POST("/:id/toggle-answer-release", hm.examHandler.ToggleAnswerRelease)
			staff.POST("/:id/end", hm.examHandler.EndTest)
			staff.GET("/:id/question-sets", hm.examHandler.GetQuestionSetsDebug)
			staff.GET("/:id/results/export", hm.examHandler.ExportResults)

			staff.GET("/:id/analysis", hm.analyticsHandler.GetExamAnalysis)
			staff.GET("/:id/participants", hm.analyticsHandler.GetExamParticipants)
			staff.GET("/:id/monitoring", hm.analyticsHandler.GetMonitoringData)
		}

		analytics := v1.Group("/analytics", middleware.RequireStaff())
		{
			analytics.GET("/students", hm.analyticsHandler.GetAllStudentsForAnalysis)
			analytics.GET("/students/:student_id", hm.analyticsHandler.GetStudentDetailedAnalysis)
		}

		me := v1.Group("/students/me")
		{
			me.GET("/exams", hm.sessionHandler.GetAssignedExams)
			me.GET("/tests", hm.sessionHandler.GetAttendedTests)
			me.GET("/performance", hm.analyticsHandler.GetStudentPerformance)
		}
	}
}

// HealthCheck answers 503 when any dependency check fails
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(gin.H, len(hm.checks))
	for _, check := range hm.checks {
		if err := check.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[check.Name] = "unhealthy"
			continue
		}
		deps[check.Name] = "healthy"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       overall,
		"service":      "exam-service",
		"dependencies": deps,
	})
}
