package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/middleware"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var (
	teacher = models.Principal{UserID: "t1", Email: "t1@example.com", Role: models.RoleTeacher}
	pupil   = models.Principal{UserID: "s1", Email: "s1@example.com", Role: models.RoleStudent}
)

// fakeAuth trusts the X-Test-User header so tests can pick the caller
func fakeAuth(c *gin.Context) {
	switch c.GetHeader("X-Test-User") {
	case "teacher":
		middleware.SetPrincipal(c, teacher)
	case "student":
		middleware.SetPrincipal(c, pupil)
	default:
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}

func setupRouter(sm *mockServiceManager, checks ...DependencyCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	NewHandlerManager(sm, logger, checks...).SetupRoutes(r, fakeAuth)
	return r
}

func doRequest(r *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation list", services.ValidationErrors{*services.NewValidationError("title", "is required", "")}, http.StatusBadRequest, "validation_error"},
		{"invalid config", fmt.Errorf("create: %w", services.ErrInvalidExamConfig), http.StatusBadRequest, "validation_error"},
		{"pool too small", services.NewBusinessRuleError(services.ErrInsufficientQuestions, "pool_size", "pool has 2 questions", nil), http.StatusBadRequest, "capacity_error"},
		{"empty roster", services.ErrEmptyRoster, http.StatusBadRequest, "capacity_error"},
		{"not found", services.ErrExamNotFound, http.StatusNotFound, "not_found"},
		{"no set", services.ErrQuestionSetNotFound, http.StatusNotFound, "not_found"},
		{"permission", services.NewPermissionError("t2", 1, "exam", "assign", "not the exam owner"), http.StatusForbidden, "forbidden"},
		{"not enrolled", services.ErrNotEnrolled, http.StatusForbidden, "forbidden"},
		{"not started", services.ErrExamNotStarted, http.StatusForbidden, "state_error"},
		{"expired", services.ErrExamExpired, http.StatusForbidden, "state_error"},
		{"already submitted", services.ErrAlreadySubmitted, http.StatusConflict, "conflict"},
		{"regeneration running", services.ErrRegenerationInProgress, http.StatusConflict, "conflict"},
		{"exam ended", services.NewBusinessRuleError(services.ErrExamEnded, "exam_ended", "an ended exam cannot be rescheduled", nil), http.StatusConflict, "conflict"},
		{"submissions exist", services.NewBusinessRuleError(services.ErrSubmissionsExist, "sets_in_use", "exam already has submissions", nil), http.StatusConflict, "conflict"},
		{"store failure", errors.New("pq: connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := newMockServiceManager()
			sm.exam.On("GetExam", mock.Anything, teacher, uint(7)).Return(nil, tt.err)

			w := doRequest(setupRouter(sm), http.MethodGet, "/api/v1/exams/7", "teacher", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			} else {
				assert.Equal(t, "Internal server error", body["message"])
				assert.NotContains(t, w.Body.String(), "pq:")
			}
		})
	}
}

func TestCreateExam(t *testing.T) {
	sm := newMockServiceManager()
	sm.exam.On("CreateExam", mock.Anything, teacher, mock.MatchedBy(func(req *services.CreateExamRequest) bool {
		return req.Title == "Physics - Midterm" && req.SetCount == 2 && req.QuestionsPerSet == 3
	})).Return(&models.Exam{ID: 11, Title: "Physics - Midterm"}, nil)

	r := setupRouter(sm)
	w := doRequest(r, http.MethodPost, "/api/v1/exams", "teacher", map[string]interface{}{
		"title":             "Physics - Midterm",
		"set_count":         2,
		"questions_per_set": 3,
		"duration_minutes":  30,
		"pool_question_ids": []uint{1, 2, 3},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(11), decode(t, w)["id"])
	sm.exam.AssertExpectations(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams", bytes.NewBufferString("{"))
	req.Header.Set("X-Test-User", "teacher")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffRoutesRejectStudents(t *testing.T) {
	sm := newMockServiceManager()
	r := setupRouter(sm)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/exams"},
		{http.MethodPost, "/api/v1/exams/1/assign"},
		{http.MethodPost, "/api/v1/exams/1/regenerate-sets"},
		{http.MethodGet, "/api/v1/exams/1/monitoring"},
		{http.MethodGet, "/api/v1/exams/1/results/export"},
		{http.MethodPatch, "/api/v1/exams/1"},
		{http.MethodPatch, "/api/v1/exams/1/schedule"},
		{http.MethodPatch, "/api/v1/exams/1/security"},
		{http.MethodGet, "/api/v1/analytics/students"},
		{http.MethodGet, "/api/v1/analytics/students/u-s1"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := doRequest(r, route.method, route.path, "student", nil)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}

	w := doRequest(r, http.MethodGet, "/api/v1/students/me/exams", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidIDParam(t *testing.T) {
	r := setupRouter(newMockServiceManager())
	for _, id := range []string{"abc", "0", "-4"} {
		w := doRequest(r, http.MethodGet, "/api/v1/exams/"+id+"/questions", "student", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
}

func TestAssignAndRegenerate(t *testing.T) {
	sm := newMockServiceManager()
	hours := 2
	sm.exam.On("AssignExam", mock.Anything, teacher, uint(3), &services.AssignExamRequest{ClassID: 9, ExpiringHours: &hours}).
		Return(&models.Exam{ID: 3, IsPublished: true}, nil)
	sm.exam.On("RegenerateSets", mock.Anything, teacher, uint(3)).
		Return(&services.RegenerationResult{ExamID: 3, TotalStudents: 4, SetCount: 2, Version: 2}, nil)

	r := setupRouter(sm)
	w := doRequest(r, http.MethodPost, "/api/v1/exams/3/assign", "teacher", map[string]interface{}{"class_id": 9, "expiring_hours": 2})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/exams/3/regenerate-sets", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["total_students"])

	sm.exam.AssertExpectations(t)
}

func TestUpdateAndScheduleExam(t *testing.T) {
	sm := newMockServiceManager()
	sm.exam.On("UpdateExam", mock.Anything, teacher, uint(3), mock.MatchedBy(func(req *services.UpdateExamRequest) bool {
		return req.Title != nil && *req.Title == "Retake" && req.SetCount == nil
	})).Return(&models.Exam{ID: 3, Title: "Retake"}, nil)
	sm.exam.On("ScheduleExam", mock.Anything, teacher, uint(3), mock.MatchedBy(func(req *services.ScheduleExamRequest) bool {
		return req.EndTime.Sub(req.StartTime) == 2*time.Hour
	})).Return(nil, services.ErrExamNotAssigned)
	settings := models.SecuritySettings{DisableRightClick: true, EnableWebcam: true}
	sm.exam.On("UpdateSecuritySettings", mock.Anything, teacher, uint(3), settings).
		Return(&models.Exam{ID: 3, SecuritySettings: datatypes.NewJSONType(settings)}, nil)

	r := setupRouter(sm)
	w := doRequest(r, http.MethodPatch, "/api/v1/exams/3", "teacher", map[string]string{"title": "Retake"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Retake", decode(t, w)["title"])

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w = doRequest(r, http.MethodPatch, "/api/v1/exams/3/schedule", "teacher", map[string]time.Time{
		"start_time": start,
		"end_time":   start.Add(2 * time.Hour),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "state_error", decode(t, w)["code"])

	w = doRequest(r, http.MethodPatch, "/api/v1/exams/3/security", "teacher", settings)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["enable_webcam"])
	assert.Equal(t, false, data["disable_tab_switching"])

	sm.exam.AssertExpectations(t)
}

func TestStudentAnalysisRoutes(t *testing.T) {
	sm := newMockServiceManager()
	sm.analytics.On("GetAllStudentsForAnalysis", mock.Anything, teacher).Return([]models.StudentRanking{
		{Rank: 1, StudentID: "u-s2", AverageScore: 90},
		{Rank: 2, StudentID: "u-s1", AverageScore: 60},
	}, nil)
	sm.analytics.On("GetStudentDetailedAnalysis", mock.Anything, teacher, "u-s1").
		Return(&models.StudentDetailedAnalysis{Student: models.StudentProfile{StudentID: "u-s1"}, AverageTimeMinutes: 12}, nil)
	sm.analytics.On("GetStudentDetailedAnalysis", mock.Anything, teacher, "u-x").
		Return(nil, services.NewPermissionError("t1", 0, "student", "analyse", "student is not in your classes"))

	r := setupRouter(sm)
	w := doRequest(r, http.MethodGet, "/api/v1/analytics/students", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["total"])

	w = doRequest(r, http.MethodGet, "/api/v1/analytics/students/u-s1", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(12), decode(t, w)["average_time_minutes"])

	w = doRequest(r, http.MethodGet, "/api/v1/analytics/students/u-x", "teacher", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	sm.analytics.AssertExpectations(t)
}

func TestEndTest(t *testing.T) {
	sm := newMockServiceManager()
	sm.exam.On("EndTest", mock.Anything, teacher, uint(5), "").
		Return(&services.EndTestResult{ExamID: 5, ExamEnded: true, AffectedStudents: 3}, nil).Once()
	sm.exam.On("EndTest", mock.Anything, teacher, uint(5), "s1@example.com").
		Return(&services.EndTestResult{ExamID: 5, StudentEmail: "s1@example.com", AffectedStudents: 1}, nil).Once()

	r := setupRouter(sm)
	w := doRequest(r, http.MethodPost, "/api/v1/exams/5/end", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["exam_ended"])

	w = doRequest(r, http.MethodPost, "/api/v1/exams/5/end", "teacher", map[string]string{"student_email": "s1@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["affected_students"])

	sm.exam.AssertExpectations(t)
}

func TestToggleRelease(t *testing.T) {
	sm := newMockServiceManager()
	sm.exam.On("ToggleScoreRelease", mock.Anything, teacher, uint(2)).Return(true, nil)
	sm.exam.On("ToggleAnswerRelease", mock.Anything, teacher, uint(2)).Return(false, nil)

	r := setupRouter(sm)
	w := doRequest(r, http.MethodPost, "/api/v1/exams/2/toggle-score-release", "teacher", nil)
	assert.Equal(t, true, decode(t, w)["score_released"])
	w = doRequest(r, http.MethodPost, "/api/v1/exams/2/toggle-answer-release", "teacher", nil)
	assert.Equal(t, false, decode(t, w)["answers_released"])
}

func TestSubmitTest(t *testing.T) {
	sm := newMockServiceManager()
	submission := &models.Submission{ID: 40, ExamID: 8, Score: 3, TotalQuestions: 3}
	sm.grading.On("Submit", mock.Anything, pupil, mock.MatchedBy(func(req *services.SubmitRequest) bool {
		return req.ExamID == 8 && req.Answers[101].Value == "D" && req.TabSwitches == 2
	})).Return(submission, nil)
	sm.session.On("Summarize", mock.Anything, submission).
		Return(&models.SubmissionSummary{SubmissionID: 40, ExamID: 8, TotalQuestions: 3}, nil)

	w := doRequest(setupRouter(sm), http.MethodPost, "/api/v1/exams/submit-test", "student", map[string]interface{}{
		"exam_id":      8,
		"answers":      map[string]interface{}{"101": map[string]string{"kind": "letter", "value": "D"}},
		"tab_switches": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(40), data["submission_id"])
	assert.NotContains(t, data, "score")

	sm.grading.AssertExpectations(t)
	sm.session.AssertExpectations(t)
}

func TestStudentReads(t *testing.T) {
	sm := newMockServiceManager()
	sm.session.On("GetQuestionsForStudent", mock.Anything, pupil, uint(4)).Return(&models.ExamPaper{ExamID: 4, Title: "Quiz"}, nil)
	sm.session.On("GetAssignedExams", mock.Anything, pupil).Return([]models.AssignedExam{}, nil)
	sm.session.On("GetAttendedTests", mock.Anything, pupil).Return([]models.AttendedTest{}, nil)
	sm.session.On("GetTestAnswers", mock.Anything, pupil, uint(4), "").Return(nil, services.ErrAnswersNotReleased)
	sm.analytics.On("GetStudentPerformance", mock.Anything, pupil).Return(&models.StudentPerformance{TestsAttempted: 2}, nil)

	r := setupRouter(sm)
	w := doRequest(r, http.MethodGet, "/api/v1/exams/4/questions", "student", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Quiz", decode(t, w)["title"])

	for _, path := range []string{"/api/v1/students/me/exams", "/api/v1/students/me/tests"} {
		w = doRequest(r, http.MethodGet, path, "student", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/exams/4/my-answers", "student", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/students/me/performance", "student", nil)
	assert.Equal(t, float64(2), decode(t, w)["tests_attempted"])
}

func TestExportResults(t *testing.T) {
	sm := newMockServiceManager()
	sm.export.On("ExportResults", mock.Anything, teacher, uint(6)).Return([]byte("PK\x03\x04"), nil)

	w := doRequest(setupRouter(sm), http.MethodGet, "/api/v1/exams/6/results/export", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "exam-6-results.xlsx")
	assert.Equal(t, "PK\x03\x04", w.Body.String())
}

func TestHealthCheck(t *testing.T) {
	healthy := DependencyCheck{Name: "database", Check: func(context.Context) error { return nil }}
	broken := DependencyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }}

	w := doRequest(setupRouter(newMockServiceManager(), healthy), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = doRequest(setupRouter(newMockServiceManager(), healthy, broken), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	deps := decode(t, w)["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["database"])
	assert.Equal(t, "unhealthy", deps["redis"])
}
