package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmitRequest is a student's finished test. Proctoring counters are
// client-reported and stored as received.
type SubmitRequest struct {
	ExamID           uint                        `json:"exam_id" validate:"required"`
	QuestionSetID    uint                        `json:"question_set_id"`
	Answers          map[uint]models.AnswerInput `json:"answers" validate:"dive"`
	TimeSpentSeconds int                         `json:"time_spent_seconds" validate:"min=0"`
	TabSwitches      int                         `json:"tab_switches" validate:"min=0"`
	FullscreenExits  int                         `json:"fullscreen_exits" validate:"min=0"`
	Reason           string                      `json:"reason" validate:"max=100"`
}

// GradingService scores submissions and feeds per-question statistics.
type GradingService interface {
	// Submit grades the caller's set for the exam and stores the result.
	// The returned submission carries the raw score whatever the release flags say.
	Submit(ctx context.Context, principal models.Principal, req *SubmitRequest) (*models.Submission, error)
}

type gradingService struct {
	repo      repositories.Repository
	validator *validator.Validator
	clock     Clock
	audit     AuditSink
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewGradingService(repo repositories.Repository, v *validator.Validator, clock Clock, audit AuditSink, logger *slog.Logger) GradingService {
	return &gradingService{
		repo:      repo,
		validator: v,
		clock:     clock,
		audit:     audit,
		logger:    logger,
		ops:       NewServiceLogger(logger, LogConfig{Service: "exam-service", Component: "grading"}),
	}
}

func (s *gradingService) Submit(ctx context.Context, principal models.Principal, req *SubmitRequest) (submission *models.Submission, err error) {
	op := s.ops.WithOperation(ctx, "submit_test", principal.UserID)
	defer func() { op.LogResult(req.ExamID, "exam", err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, req.ExamID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsPublished {
		return nil, ErrExamNotPublished
	}

	set, err := findStudentSet(ctx, s.repo.QuestionSet(), exam.ID, principal)
	if err != nil {
		if errors.Is(err, ErrNoAssignedSet) {
			return nil, ErrQuestionSetNotFound
		}
		return nil, err
	}
	if req.QuestionSetID != 0 && req.QuestionSetID != set.ID {
		s.logger.Warn("Rejecting submission for a set the student does not hold",
			"exam_id", exam.ID,
			"requested_set_id", req.QuestionSetID,
			"assigned_set_id", set.ID)
		return nil, ErrQuestionSetNotFound
	}
	if set.IsCompleted {
		return nil, ErrAlreadySubmitted
	}

	questions, err := s.loadQuestions(ctx, set.QuestionIDs())
	if err != nil {
		return nil, err
	}

	graded := make(map[uint]models.GradedAnswer, len(req.Answers))
	correct := 0
	for questionID, answer := range req.Answers {
		question, ok := questions[questionID]
		if !ok {
			s.logger.Warn("Ignoring answer for question outside the student's set",
				"exam_id", exam.ID,
				"question_set_id", set.ID,
				"question_id", questionID)
			continue
		}
		result := NormalizeAnswer(question, answer)
		if result.IsCorrect {
			correct++
		}
		graded[questionID] = result
	}

	total := len(set.Items)
	now := s.clock.Now()
	submission = &models.Submission{
		ExamID:           exam.ID,
		StudentID:        studentKey(principal, set),
		StudentEmail:     set.StudentEmail,
		QuestionSetID:    set.ID,
		Answers:          datatypes.NewJSONType(graded),
		Score:            correct,
		TotalQuestions:   total,
		CorrectCount:     correct,
		Percentage:       Percentage(correct, total),
		TimeSpentSeconds: req.TimeSpentSeconds,
		TabSwitches:      req.TabSwitches,
		FullscreenExits:  req.FullscreenExits,
		Reason:           req.Reason,
		SubmittedAt:      now,
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		claimed, err := s.repo.QuestionSet().MarkCompleted(ctx, tx, set.ID, now)
		if err != nil {
			return fmt.Errorf("failed to complete question set: %w", err)
		}
		if !claimed {
			return ErrAlreadySubmitted
		}

		if err := s.repo.Submission().Create(ctx, tx, submission); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("failed to create submission: %w", err)
		}

		return s.updateQuestionStats(ctx, tx, graded)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Test submitted",
		"exam_id", exam.ID,
		"student_email", set.StudentEmail,
		"correct", correct,
		"total", total)

	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditSubmissionGraded,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     exam.ID,
		Details: map[string]interface{}{
			"submission_id": submission.ID,
			"percentage":    submission.Percentage,
		},
		OccurredAt: now,
	})

	return submission, nil
}

func (s *gradingService) validateRequest(req *SubmitRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	var errs ValidationErrors
	for questionID, answer := range req.Answers {
		if verr := s.validator.Exam().ValidateAnswer(questionID, answer); verr != nil {
			errs = append(errs, *verr)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *gradingService) loadQuestions(ctx context.Context, ids []uint) (map[uint]*models.Question, error) {
	questions, err := s.repo.Question().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	out := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		out[q.ID] = q
	}
	return out, nil
}

// updateQuestionStats bumps the counters of every answered question. Rows are
// touched in ascending id order so concurrent submissions lock in the same order.
func (s *gradingService) updateQuestionStats(ctx context.Context, tx *gorm.DB, graded map[uint]models.GradedAnswer) error {
	ids := make([]uint, 0, len(graded))
	for id := range graded {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		stats, err := s.repo.Question().IncrementUsage(ctx, tx, id, graded[id].IsCorrect)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				s.logger.Warn("Question vanished before stats update", "question_id", id)
				continue
			}
			return fmt.Errorf("failed to update question %d stats: %w", id, err)
		}
		DeriveStats(stats)
		if err := s.repo.Question().UpdateDerivedStats(ctx, tx, stats); err != nil {
			return fmt.Errorf("failed to update question %d stats: %w", id, err)
		}
	}
	return nil
}

// findStudentSet looks the student's set up by email, then by user id.
func findStudentSet(ctx context.Context, sets repositories.QuestionSetRepository, examID uint, p models.Principal) (*models.QuestionSet, error) {
	if p.Email != "" {
		set, err := sets.GetByExamAndEmail(ctx, nil, examID, p.Email)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to get question set: %w", err)
		}
	}
	if p.UserID != "" {
		set, err := sets.GetByExamAndStudentID(ctx, nil, examID, p.UserID)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to get question set: %w", err)
		}
	}
	return nil, ErrNoAssignedSet
}

// studentKey is the per-exam identity of a submission.
func studentKey(p models.Principal, set *models.QuestionSet) string {
	switch {
	case p.UserID != "":
		return p.UserID
	case set.StudentID != nil && *set.StudentID != "":
		return *set.StudentID
	default:
		return set.StudentEmail
	}
}
