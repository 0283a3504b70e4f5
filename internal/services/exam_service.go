package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ===== REQUESTS AND RESULTS =====

type CreateExamRequest struct {
	Title            string  `json:"title" validate:"required,min=1,max=200"`
	Description      *string `json:"description" validate:"omitempty,max=1000"`
	QuestionBankID   *uint   `json:"question_bank_id"`
	PoolQuestionIDs  []uint  `json:"pool_question_ids"`
	SetCount         int     `json:"set_count" validate:"min=1"`
	QuestionsPerSet  int     `json:"questions_per_set" validate:"min=1"`
	DurationMinutes  int     `json:"duration_minutes" validate:"exam_duration"`
	ShuffleQuestions bool    `json:"shuffle_questions"`
	ShuffleOptions   bool    `json:"shuffle_options"`

	SecuritySettings *models.SecuritySettings `json:"security_settings"`
}

// UpdateExamRequest changes authoring fields. Nil fields stay as they are.
type UpdateExamRequest struct {
	Title           *string `json:"title" validate:"omitnil,min=1,max=200"`
	Description     *string `json:"description" validate:"omitnil,max=1000"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitnil,exam_duration"`
	SetCount        *int    `json:"set_count" validate:"omitnil,min=1"`
	QuestionsPerSet *int    `json:"questions_per_set" validate:"omitnil,min=1"`
}

type ScheduleExamRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type AssignExamRequest struct {
	ClassID       uint `json:"class_id" validate:"required"`
	ExpiringHours *int `json:"expiring_hours" validate:"omitempty,min=1,max=720"`
}

type ListExamsRequest struct {
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

type RegenerationResult struct {
	ExamID          uint `json:"exam_id"`
	TotalStudents   int  `json:"total_students"`
	SetCount        int  `json:"set_count"`
	QuestionsPerSet int  `json:"questions_per_set"`
	Version         int  `json:"version"`
}

type EndTestResult struct {
	ExamID           uint   `json:"exam_id"`
	StudentEmail     string `json:"student_email,omitempty"`
	ExamEnded        bool   `json:"exam_ended"`
	AffectedStudents int64  `json:"affected_students"`
}

// ExamService covers exam authoring, publication to a class and the
// instructor controls that follow.
type ExamService interface {
	CreateExam(ctx context.Context, principal models.Principal, req *CreateExamRequest) (*models.Exam, error)
	GetExam(ctx context.Context, principal models.Principal, examID uint) (*models.Exam, error)
	ListExams(ctx context.Context, principal models.Principal, req ListExamsRequest) ([]*models.Exam, int64, error)
	DeleteExam(ctx context.Context, principal models.Principal, examID uint) error
	// UpdateExam edits title, description, duration or set layout. A layout
	// change on an assigned exam rebuilds its sets, and is refused once
	// students have submitted.
	UpdateExam(ctx context.Context, principal models.Principal, examID uint, req *UpdateExamRequest) (*models.Exam, error)
	UpdateSecuritySettings(ctx context.Context, principal models.Principal, examID uint, settings models.SecuritySettings) (*models.Exam, error)

	// AssignExam publishes the exam to a class: it opens the time window and
	// generates one set per roster student. Either all of it happens or none.
	AssignExam(ctx context.Context, principal models.Principal, examID uint, req *AssignExamRequest) (*models.Exam, error)
	// RegenerateSets replaces every set of an assigned exam using the current roster.
	RegenerateSets(ctx context.Context, principal models.Principal, examID uint) (*RegenerationResult, error)
	// ScheduleExam replaces the time window of an assigned exam. An exam
	// ended with EndTest has had its open sets force-completed, so it is
	// refused here; assigning it again starts over with fresh sets.
	ScheduleExam(ctx context.Context, principal models.Principal, examID uint, req *ScheduleExamRequest) (*models.Exam, error)

	ToggleScoreRelease(ctx context.Context, principal models.Principal, examID uint) (bool, error)
	ToggleAnswerRelease(ctx context.Context, principal models.Principal, examID uint) (bool, error)
	// EndTest force-completes one student's set, or every open set and the
	// exam itself when studentEmail is empty.
	EndTest(ctx context.Context, principal models.Principal, examID uint, studentEmail string) (*EndTestResult, error)

	GetQuestionSetsDebug(ctx context.Context, principal models.Principal, examID uint) (*models.QuestionSetsDebug, error)
}

type ExamServiceConfig struct {
	DefaultExpiringHours int
	RegenerationLockTTL  time.Duration
}

type examService struct {
	repo      repositories.Repository
	roster    RosterProvider
	users     UserDirectory
	generator *SetGenerator
	locker    cache.Locker
	audit     AuditSink
	clock     Clock
	validator *validator.Validator
	config    ExamServiceConfig
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewExamService(
	repo repositories.Repository,
	roster RosterProvider,
	users UserDirectory,
	generator *SetGenerator,
	locker cache.Locker,
	audit AuditSink,
	clock Clock,
	v *validator.Validator,
	config ExamServiceConfig,
	logger *slog.Logger,
) ExamService {
	if config.DefaultExpiringHours <= 0 {
		config.DefaultExpiringHours = models.DefaultExpiringHours
	}
	if config.RegenerationLockTTL <= 0 {
		config.RegenerationLockTTL = 30 * time.Second
	}
	return &examService{
		repo:      repo,
		roster:    roster,
		users:     users,
		generator: generator,
		locker:    locker,
		audit:     audit,
		clock:     clock,
		validator: v,
		config:    config,
		logger:    logger,
		ops:       NewServiceLogger(logger, LogConfig{Service: "exam-service", Component: "exams"}),
	}
}

// ===== AUTHORING =====

func (s *examService) CreateExam(ctx context.Context, principal models.Principal, req *CreateExamRequest) (exam *models.Exam, err error) {
	op := s.ops.WithOperation(ctx, "create_exam", principal.UserID)
	defer func() {
		var id uint
		if exam != nil {
			id = exam.ID
		}
		op.LogResult(id, "exam", err)
	}()

	if !principal.IsStaff() {
		return nil, NewPermissionError(principal.UserID, 0, "exam", "create", "only teachers and admins can create exams")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	pool := req.PoolQuestionIDs
	if len(pool) == 0 && req.QuestionBankID != nil {
		pool, err = s.repo.Question().GetIDsByBank(ctx, nil, *req.QuestionBankID)
		if err != nil {
			return nil, fmt.Errorf("failed to load question bank: %w", err)
		}
	}

	security := models.DefaultSecuritySettings()
	if req.SecuritySettings != nil {
		security = *req.SecuritySettings
	}

	exam = &models.Exam{
		Title:            req.Title,
		Description:      req.Description,
		OwnerID:          principal.UserID,
		QuestionBankID:   req.QuestionBankID,
		PoolQuestionIDs:  datatypes.NewJSONType(pool),
		SetCount:         req.SetCount,
		QuestionsPerSet:  req.QuestionsPerSet,
		DurationMinutes:  req.DurationMinutes,
		ExpiringHours:    s.config.DefaultExpiringHours,
		ShuffleQuestions: req.ShuffleQuestions,
		ShuffleOptions:   req.ShuffleOptions,
		SecuritySettings: datatypes.NewJSONType(security),
		Version:          1,
	}

	if verrs := s.validator.Exam().ValidateExam(exam); len(verrs) > 0 {
		return nil, verrs
	}

	existing, err := s.repo.Question().CountExisting(ctx, nil, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to check pool questions: %w", err)
	}
	if int(existing) != len(pool) {
		return nil, ValidationErrors{*NewValidationError("pool_question_ids",
			fmt.Sprintf("%d of %d questions do not exist", len(pool)-int(existing), len(pool)), nil)}
	}

	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created",
		"exam_id", exam.ID,
		"owner_id", exam.OwnerID,
		"pool_size", len(pool))

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamCreated,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     exam.ID,
		OccurredAt: s.clock.Now(),
	})

	return exam, nil
}

func (s *examService) GetExam(ctx context.Context, principal models.Principal, examID uint) (*models.Exam, error) {
	return s.loadManaged(ctx, principal, examID, "view")
}

func (s *examService) ListExams(ctx context.Context, principal models.Principal, req ListExamsRequest) ([]*models.Exam, int64, error) {
	if !principal.IsStaff() {
		return nil, 0, NewPermissionError(principal.UserID, 0, "exam", "list", "only teachers and admins can list exams")
	}

	filters := repositories.ExamFilters{
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if !principal.IsAdmin() {
		owner := principal.UserID
		filters.OwnerID = &owner
	}

	exams, total, err := s.repo.Exam().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, total, nil
}

func (s *examService) DeleteExam(ctx context.Context, principal models.Principal, examID uint) (err error) {
	op := s.ops.WithOperation(ctx, "delete_exam", principal.UserID)
	defer func() { op.LogResult(examID, "exam", err) }()

	if _, err := s.loadManaged(ctx, principal, examID, "delete"); err != nil {
		return err
	}

	// Soft delete; sets and submissions stay for the record
	if err := s.repo.Exam().Delete(ctx, nil, examID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamDeleted,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		OccurredAt: s.clock.Now(),
	})
	return nil
}

func (s *examService) UpdateExam(ctx context.Context, principal models.Principal, examID uint, req *UpdateExamRequest) (exam *models.Exam, err error) {
	op := s.ops.WithOperation(ctx, "update_exam", principal.UserID)
	defer func() { op.LogResult(examID, "exam", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	current, err := s.loadManaged(ctx, principal, examID, "update")
	if err != nil {
		return nil, err
	}

	next := *current
	fields := make(map[string]interface{})
	layoutChanged := false

	if req.Title != nil && *req.Title != current.Title {
		next.Title = *req.Title
		fields["title"] = next.Title
	}
	if req.Description != nil {
		description := *req.Description
		next.Description = &description
		fields["description"] = description
	}
	if req.DurationMinutes != nil && *req.DurationMinutes != current.DurationMinutes {
		next.DurationMinutes = *req.DurationMinutes
		fields["duration_minutes"] = next.DurationMinutes
	}
	if req.SetCount != nil && *req.SetCount != current.SetCount {
		next.SetCount = *req.SetCount
		fields["set_count"] = next.SetCount
		layoutChanged = true
	}
	if req.QuestionsPerSet != nil && *req.QuestionsPerSet != current.QuestionsPerSet {
		next.QuestionsPerSet = *req.QuestionsPerSet
		fields["questions_per_set"] = next.QuestionsPerSet
		layoutChanged = true
	}
	if len(fields) == 0 {
		return current, nil
	}

	if verrs := s.validator.Exam().ValidateExam(&next); len(verrs) > 0 {
		return nil, verrs
	}

	rebuild := layoutChanged && current.ClassID != nil
	if rebuild {
		roster, err := s.loadRoster(ctx, *current.ClassID)
		if err != nil {
			return nil, err
		}
		version, err := s.replaceSets(ctx, &next, roster, fields)
		if err != nil {
			return nil, err
		}
		next.Version = version
	} else if err := s.repo.Exam().UpdateFields(ctx, nil, examID, fields); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.Info("Exam updated",
		"exam_id", examID,
		"fields", len(fields),
		"sets_rebuilt", rebuild)

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamUpdated,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details:    fields,
		OccurredAt: s.clock.Now(),
	})
	return &next, nil
}

func (s *examService) UpdateSecuritySettings(ctx context.Context, principal models.Principal, examID uint, settings models.SecuritySettings) (*models.Exam, error) {
	exam, err := s.loadManaged(ctx, principal, examID, "update security settings")
	if err != nil {
		return nil, err
	}

	exam.SecuritySettings = datatypes.NewJSONType(settings)
	if err := s.repo.Exam().UpdateFields(ctx, nil, examID, map[string]interface{}{
		"security_settings": exam.SecuritySettings,
	}); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to update security settings: %w", err)
	}

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamUpdated,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details:    map[string]interface{}{"security_settings": settings},
		OccurredAt: s.clock.Now(),
	})
	return exam, nil
}

// ===== PUBLICATION =====

func (s *examService) AssignExam(ctx context.Context, principal models.Principal, examID uint, req *AssignExamRequest) (exam *models.Exam, err error) {
	op := s.ops.WithOperation(ctx, "assign_exam", principal.UserID)
	defer func() { op.LogResult(examID, "exam", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err = s.loadManaged(ctx, principal, examID, "assign")
	if err != nil {
		return nil, err
	}

	hours := s.config.DefaultExpiringHours
	if req.ExpiringHours != nil {
		hours = *req.ExpiringHours
	}

	s.logger.Info("Assigning exam to class",
		"exam_id", examID,
		"class_id", req.ClassID,
		"expiring_hours", hours)

	roster, err := s.loadRoster(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	end := now.Add(time.Duration(hours) * time.Hour)
	classID := req.ClassID

	// The generator sees the exam as it will be once published
	next := *exam
	next.ClassID = &classID
	next.ExpiringHours = hours
	next.StartTime = &now
	next.EndTime = &end
	next.IsPublished = true
	next.IsEnded = false
	next.ManuallyEndedAt = nil

	fields := map[string]interface{}{
		"class_id":          classID,
		"expiring_hours":    hours,
		"start_time":        now,
		"end_time":          end,
		"is_published":      true,
		"is_ended":          false,
		"manually_ended_at": nil,
	}

	version, err := s.replaceSets(ctx, &next, roster, fields)
	if err != nil {
		return nil, err
	}
	next.Version = version

	s.logger.Info("Exam published",
		"exam_id", examID,
		"students", len(roster),
		"set_count", next.SetCount,
		"end_time", end)

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamPublished,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details: map[string]interface{}{
			"class_id":       classID,
			"expiring_hours": hours,
			"students":       len(roster),
		},
		OccurredAt: now,
	})

	return &next, nil
}

func (s *examService) RegenerateSets(ctx context.Context, principal models.Principal, examID uint) (result *RegenerationResult, err error) {
	op := s.ops.WithOperation(ctx, "regenerate_sets", principal.UserID)
	defer func() { op.LogResult(examID, "exam", err) }()

	exam, err := s.loadManaged(ctx, principal, examID, "regenerate")
	if err != nil {
		return nil, err
	}
	if exam.ClassID == nil {
		return nil, ErrExamNotAssigned
	}

	roster, err := s.loadRoster(ctx, *exam.ClassID)
	if err != nil {
		return nil, err
	}

	version, err := s.replaceSets(ctx, exam, roster, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditSetsRegenerated,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details:    map[string]interface{}{"students": len(roster), "version": version},
		OccurredAt: s.clock.Now(),
	})

	return &RegenerationResult{
		ExamID:          examID,
		TotalStudents:   len(roster),
		SetCount:        exam.SetCount,
		QuestionsPerSet: exam.QuestionsPerSet,
		Version:         version,
	}, nil
}

func (s *examService) ScheduleExam(ctx context.Context, principal models.Principal, examID uint, req *ScheduleExamRequest) (exam *models.Exam, err error) {
	op := s.ops.WithOperation(ctx, "schedule_exam", principal.UserID)
	defer func() { op.LogResult(examID, "exam", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	exam, err = s.loadManaged(ctx, principal, examID, "schedule")
	if err != nil {
		return nil, err
	}
	// Without a class there are no sets, so nobody could open the window
	if exam.ClassID == nil {
		return nil, ErrExamNotAssigned
	}
	if exam.IsEnded {
		return nil, NewBusinessRuleError(ErrExamEnded, "exam_ended",
			"an ended exam cannot be rescheduled, assign it again instead",
			map[string]interface{}{"manually_ended_at": exam.ManuallyEndedAt})
	}

	now := s.clock.Now()
	if verrs := s.validator.Exam().ValidateSchedule(req.StartTime, req.EndTime, now); len(verrs) > 0 {
		return nil, verrs
	}

	start, end := req.StartTime, req.EndTime
	hours := int(math.Ceil(end.Sub(start).Hours()))
	if err := s.repo.Exam().UpdateFields(ctx, nil, examID, map[string]interface{}{
		"start_time":     start,
		"end_time":       end,
		"expiring_hours": hours,
	}); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to schedule exam: %w", err)
	}
	exam.StartTime = &start
	exam.EndTime = &end
	exam.ExpiringHours = hours

	s.logger.Info("Exam scheduled",
		"exam_id", examID,
		"start_time", start,
		"end_time", end)

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamScheduled,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details: map[string]interface{}{
			"start_time": start,
			"end_time":   end,
		},
		OccurredAt: now,
	})
	return exam, nil
}

// replaceSets is the per-exam critical section: under the exam's sets lock
// and a row lock on the exam, it deletes the old sets, inserts the new ones
// and applies fields. Sets are built before anything is written, so a
// generation failure leaves the exam untouched. Returns the new version.
func (s *examService) replaceSets(ctx context.Context, exam *models.Exam, roster []models.ClassStudent, fields map[string]interface{}) (int, error) {
	sets, err := s.generator.Build(exam, roster)
	if err != nil {
		return 0, err
	}

	release, err := s.locker.Acquire(ctx, cache.ExamSetsLockKey(exam.ID), s.config.RegenerationLockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return 0, ErrRegenerationInProgress
		}
		return 0, fmt.Errorf("failed to acquire regeneration lock: %w", err)
	}
	defer release()

	var version int
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.Exam().GetByIDForUpdate(ctx, tx, exam.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to lock exam: %w", err)
		}

		submitted, err := s.repo.Submission().CountByExam(ctx, tx, exam.ID)
		if err != nil {
			return fmt.Errorf("failed to count submissions: %w", err)
		}
		if submitted > 0 {
			return NewBusinessRuleError(ErrSubmissionsExist, "sets_in_use",
				"sets cannot be replaced once students have submitted",
				map[string]interface{}{"submissions": submitted})
		}

		if err := s.repo.QuestionSet().DeleteByExam(ctx, tx, exam.ID); err != nil {
			return fmt.Errorf("failed to delete old question sets: %w", err)
		}
		if err := s.repo.QuestionSet().CreateBatch(ctx, tx, sets); err != nil {
			return fmt.Errorf("failed to create question sets: %w", err)
		}

		version = locked.Version + 1
		updates := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			updates[k] = v
		}
		updates["version"] = version
		if err := s.repo.Exam().UpdateFields(ctx, tx, exam.ID, updates); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Question sets replaced",
		"exam_id", exam.ID,
		"sets", len(sets),
		"version", version)
	return version, nil
}

// loadRoster fetches the current class roster from the store and fills
// missing user ids from the directory. Backfill is best effort.
func (s *examService) loadRoster(ctx context.Context, classID uint) ([]models.ClassStudent, error) {
	roster, err := s.roster.LoadRoster(ctx, classID)
	if err != nil {
		return nil, err
	}

	out := make([]models.ClassStudent, len(roster))
	copy(out, roster)
	for i := range out {
		entry := &out[i]
		if entry.UserID != nil && *entry.UserID != "" {
			continue
		}
		if models.NormalizeEmail(entry.Email) == "" {
			continue
		}
		user, err := s.users.ResolveByEmail(ctx, entry.Email)
		if err != nil {
			if !errors.Is(err, ErrUserNotFound) {
				s.logger.Warn("User lookup failed during roster backfill", "email", entry.Email, "error", err)
			}
			continue
		}
		id := user.ID
		entry.UserID = &id
		if entry.ID != 0 {
			if err := s.repo.Class().AttachUserID(ctx, nil, entry.ID, id); err != nil {
				s.logger.Warn("Failed to persist roster user id", "entry_id", entry.ID, "error", err)
			}
		}
	}
	return out, nil
}

// ===== INSTRUCTOR CONTROLS =====

func (s *examService) ToggleScoreRelease(ctx context.Context, principal models.Principal, examID uint) (bool, error) {
	return s.toggle(ctx, principal, examID, "score_released", func(e *models.Exam) bool { return e.ScoreReleased })
}

func (s *examService) ToggleAnswerRelease(ctx context.Context, principal models.Principal, examID uint) (bool, error) {
	return s.toggle(ctx, principal, examID, "answers_released", func(e *models.Exam) bool { return e.AnswersReleased })
}

func (s *examService) toggle(ctx context.Context, principal models.Principal, examID uint, column string, current func(*models.Exam) bool) (bool, error) {
	exam, err := s.loadManaged(ctx, principal, examID, "toggle "+column)
	if err != nil {
		return false, err
	}

	next := !current(exam)
	if err := s.repo.Exam().UpdateFields(ctx, nil, examID, map[string]interface{}{column: next}); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, ErrExamNotFound
		}
		return false, fmt.Errorf("failed to update %s: %w", column, err)
	}

	s.logger.Info("Release flag toggled", "exam_id", examID, "flag", column, "value", next)
	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditReleaseToggled,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details:    map[string]interface{}{column: next},
		OccurredAt: s.clock.Now(),
	})
	return next, nil
}

func (s *examService) EndTest(ctx context.Context, principal models.Principal, examID uint, studentEmail string) (result *EndTestResult, err error) {
	op := s.ops.WithOperation(ctx, "end_test", principal.UserID)
	defer func() { op.LogResult(examID, "exam", err) }()

	if _, err := s.loadManaged(ctx, principal, examID, "end"); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result = &EndTestResult{ExamID: examID}

	if email := models.NormalizeEmail(studentEmail); email != "" {
		result.StudentEmail = email
		if _, err := s.repo.QuestionSet().GetByExamAndEmail(ctx, nil, examID, email); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrQuestionSetNotFound
			}
			return nil, fmt.Errorf("failed to get question set: %w", err)
		}
		affected, err := s.repo.QuestionSet().CompleteOpenByExamAndEmail(ctx, nil, examID, email, now)
		if err != nil {
			return nil, fmt.Errorf("failed to end test for student: %w", err)
		}
		result.AffectedStudents = affected
	} else {
		err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			if err := s.repo.Exam().UpdateFields(ctx, tx, examID, map[string]interface{}{
				"is_ended":          true,
				"manually_ended_at": now,
			}); err != nil {
				return fmt.Errorf("failed to mark exam ended: %w", err)
			}
			affected, err := s.repo.QuestionSet().CompleteOpenByExam(ctx, tx, examID, now)
			if err != nil {
				return fmt.Errorf("failed to complete open sets: %w", err)
			}
			result.AffectedStudents = affected
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.ExamEnded = true
	}

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditExamEnded,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details: map[string]interface{}{
			"student_email":     result.StudentEmail,
			"affected_students": result.AffectedStudents,
		},
		OccurredAt: now,
	})
	return result, nil
}

func (s *examService) GetQuestionSetsDebug(ctx context.Context, principal models.Principal, examID uint) (*models.QuestionSetsDebug, error) {
	exam, err := s.loadManaged(ctx, principal, examID, "inspect")
	if err != nil {
		return nil, err
	}

	sets, err := s.repo.QuestionSet().ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question sets: %w", err)
	}

	debug := &models.QuestionSetsDebug{
		ExamID:          examID,
		SetCount:        exam.SetCount,
		QuestionsPerSet: exam.QuestionsPerSet,
		PoolSize:        len(exam.PoolQuestionIDs.Data()),
		TotalSets:       len(sets),
		AllMatch:        true,
		Sets:            make([]models.QuestionSetDebug, 0, len(sets)),
	}

	distinct := make(map[string]struct{})
	for _, set := range sets {
		ids := set.QuestionIDs()
		matches := len(ids) == exam.QuestionsPerSet
		if !matches {
			debug.AllMatch = false
		}
		distinct[fmt.Sprint(ids)] = struct{}{}
		debug.Sets = append(debug.Sets, models.QuestionSetDebug{
			SetID:         set.ID,
			SetNumber:     set.SetNumber,
			StudentEmail:  set.StudentEmail,
			QuestionCount: len(ids),
			QuestionIDs:   ids,
			Matches:       matches,
			IsCompleted:   set.IsCompleted,
		})
	}
	debug.DistinctSets = len(distinct)
	return debug, nil
}

// ===== HELPERS =====

// loadManaged fetches the exam and checks the principal may act on it as owner.
func (s *examService) loadManaged(ctx context.Context, principal models.Principal, examID uint, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsManagedBy(principal) {
		return nil, NewPermissionError(principal.UserID, examID, "exam", action, "not the exam owner")
	}
	return exam, nil
}
