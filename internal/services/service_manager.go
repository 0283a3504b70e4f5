package services

import (
	"log/slog"
	mrand "math/rand/v2"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ServiceManager hands the HTTP layer its services
type ServiceManager interface {
	Exam() ExamService
	Session() SessionService
	Grading() GradingService
	Analytics() AnalyticsService
	Export() ExportService
}

// Dependencies are the collaborators shared by every service. Optional ones
// fall back to in-process defaults.
type Dependencies struct {
	Repo      repositories.Repository
	Validator *validator.Validator
	Logger    *slog.Logger

	Cache    cache.CacheService
	CacheTTL time.Duration
	Locker   cache.Locker
	Audit    AuditSink
	Clock    Clock
	Rand     *mrand.Rand

	Exam ExamServiceConfig
}

type serviceManager struct {
	exam      ExamService
	session   SessionService
	grading   GradingService
	analytics AnalyticsService
	export    ExportService
}

func NewServiceManager(deps Dependencies) ServiceManager {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Locker == nil {
		deps.Locker = cache.NewLocalLocker()
	}
	if deps.Audit == nil {
		deps.Audit = discardAuditSink{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	roster := NewRosterProvider(deps.Repo.Class(), deps.Cache, deps.CacheTTL, deps.Logger)
	users := NewUserDirectory(deps.Repo.User())
	generator := NewSetGenerator(deps.Rand, deps.Clock)

	return &serviceManager{
		exam:      NewExamService(deps.Repo, roster, users, generator, deps.Locker, deps.Audit, deps.Clock, deps.Validator, deps.Exam, deps.Logger),
		session:   NewSessionService(deps.Repo, roster, generator, deps.Clock, deps.Logger),
		grading:   NewGradingService(deps.Repo, deps.Validator, deps.Clock, deps.Audit, deps.Logger),
		analytics: NewAnalyticsService(deps.Repo, roster, users, deps.Logger),
		export:    NewExportService(deps.Repo, deps.Audit, deps.Clock, deps.Logger),
	}
}

func (m *serviceManager) Exam() ExamService           { return m.exam }
func (m *serviceManager) Session() SessionService     { return m.session }
func (m *serviceManager) Grading() GradingService     { return m.grading }
func (m *serviceManager) Analytics() AnalyticsService { return m.analytics }
func (m *serviceManager) Export() ExportService       { return m.export }
