package handlers

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/stretchr/testify/mock"
)

type MockExamService struct {
	mock.Mock
}

func (m *MockExamService) CreateExam(ctx context.Context, p models.Principal, req *services.CreateExamRequest) (*models.Exam, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exam), args.Error(1)
}

func (m *MockExamService) GetExam(ctx context.Context, p models.Principal, examID uint) (*models.Exam, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exam), args.Error(1)
}

func (m *MockExamService) ListExams(ctx context.Context, p models.Principal, req services.ListExamsRequest) ([]*models.Exam, int64, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*models.Exam), args.Get(1).(int64), args.Error(2)
}

func (m *MockExamService) DeleteExam(ctx context.Context, p models.Principal, examID uint) error {
	return m.Called(ctx, p, examID).Error(0)
}

func (m *MockExamService) UpdateExam(ctx context.Context, p models.Principal, examID uint, req *services.UpdateExamRequest) (*models.Exam, error) {
	args := m.Called(ctx, p, examID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exam), args.Error(1)
}

func (m *MockExamService) UpdateSecuritySettings(ctx context.Context, p models.Principal, examID uint, settings models.SecuritySettings) (*models.Exam, error) {
	args := m.Called(ctx, p, examID, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exam), args.Error(1)
}

func (m *MockExamService) ScheduleExam(ctx context.Context, p models.Principal, examID uint, req *services.ScheduleExamRequest) (*models.Exam, error) {
	args := m.Called(ctx, p, examID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exam), args.Error(1)
}

func (m *MockExamService) AssignExam(ctx context.Context, p models.Principal, examID uint, req *services.AssignExamRequest) (*models.Exam, error) {
	args := m.Called(ctx, p, examID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exam), args.Error(1)
}

func (m *MockExamService) RegenerateSets(ctx context.Context, p models.Principal, examID uint) (*services.RegenerationResult, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RegenerationResult), args.Error(1)
}

func (m *MockExamService) ToggleScoreRelease(ctx context.Context, p models.Principal, examID uint) (bool, error) {
	args := m.Called(ctx, p, examID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExamService) ToggleAnswerRelease(ctx context.Context, p models.Principal, examID uint) (bool, error) {
	args := m.Called(ctx, p, examID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExamService) EndTest(ctx context.Context, p models.Principal, examID uint, studentEmail string) (*services.EndTestResult, error) {
	args := m.Called(ctx, p, examID, studentEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EndTestResult), args.Error(1)
}

func (m *MockExamService) GetQuestionSetsDebug(ctx context.Context, p models.Principal, examID uint) (*models.QuestionSetsDebug, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionSetsDebug), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) GetQuestionsForStudent(ctx context.Context, p models.Principal, examID uint) (*models.ExamPaper, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamPaper), args.Error(1)
}

func (m *MockSessionService) GetAssignedExams(ctx context.Context, p models.Principal) ([]models.AssignedExam, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AssignedExam), args.Error(1)
}

func (m *MockSessionService) GetAttendedTests(ctx context.Context, p models.Principal) ([]models.AttendedTest, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AttendedTest), args.Error(1)
}

func (m *MockSessionService) GetTestAnswers(ctx context.Context, p models.Principal, examID uint, studentEmail string) ([]models.AnswerReview, error) {
	args := m.Called(ctx, p, examID, studentEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AnswerReview), args.Error(1)
}

func (m *MockSessionService) Summarize(ctx context.Context, submission *models.Submission) (*models.SubmissionSummary, error) {
	args := m.Called(ctx, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmissionSummary), args.Error(1)
}

type MockGradingService struct {
	mock.Mock
}

func (m *MockGradingService) Submit(ctx context.Context, p models.Principal, req *services.SubmitRequest) (*models.Submission, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) GetExamAnalysis(ctx context.Context, p models.Principal, examID uint) (*models.ExamAnalytics, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamAnalytics), args.Error(1)
}

func (m *MockAnalyticsService) GetStudentPerformance(ctx context.Context, p models.Principal) (*models.StudentPerformance, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudentPerformance), args.Error(1)
}

func (m *MockAnalyticsService) GetExamParticipants(ctx context.Context, p models.Principal, examID uint) ([]models.Participant, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockAnalyticsService) GetMonitoringData(ctx context.Context, p models.Principal, examID uint) ([]models.MonitoringEntry, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MonitoringEntry), args.Error(1)
}

func (m *MockAnalyticsService) GetAllStudentsForAnalysis(ctx context.Context, p models.Principal) ([]models.StudentRanking, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StudentRanking), args.Error(1)
}

func (m *MockAnalyticsService) GetStudentDetailedAnalysis(ctx context.Context, p models.Principal, studentID string) (*models.StudentDetailedAnalysis, error) {
	args := m.Called(ctx, p, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudentDetailedAnalysis), args.Error(1)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportResults(ctx context.Context, p models.Principal, examID uint) ([]byte, error) {
	args := m.Called(ctx, p, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockServiceManager struct {
	exam      *MockExamService
	session   *MockSessionService
	grading   *MockGradingService
	analytics *MockAnalyticsService
	export    *MockExportService
}

func newMockServiceManager() *mockServiceManager {
	return &mockServiceManager{
		exam:      new(MockExamService),
		session:   new(MockSessionService),
		grading:   new(MockGradingService),
		analytics: new(MockAnalyticsService),
		export:    new(MockExportService),
	}
}

func (m *mockServiceManager) Exam() services.ExamService           { return m.exam }
func (m *mockServiceManager) Session() services.SessionService     { return m.session }
func (m *mockServiceManager) Grading() services.GradingService     { return m.grading }
func (m *mockServiceManager) Analytics() services.AnalyticsService { return m.analytics }
func (m *mockServiceManager) Export() services.ExportService       { return m.export }
