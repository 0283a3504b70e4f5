package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

// SessionService is the student read path: opening a paper, listing
// assigned and attended exams, and reviewing released answers.
type SessionService interface {
	// GetQuestionsForStudent applies the access gates in order (enrollment,
	// publication, start, expiry, assigned set) and returns the student's
	// paper without any marker of the correct option.
	GetQuestionsForStudent(ctx context.Context, principal models.Principal, examID uint) (*models.ExamPaper, error)
	GetAssignedExams(ctx context.Context, principal models.Principal) ([]models.AssignedExam, error)
	GetAttendedTests(ctx context.Context, principal models.Principal) ([]models.AttendedTest, error)
	// GetTestAnswers returns the answer review for the caller, or for
	// studentEmail when the caller manages the exam.
	GetTestAnswers(ctx context.Context, principal models.Principal, examID uint, studentEmail string) ([]models.AnswerReview, error)
	// Summarize is the student-visible view of a graded submission.
	Summarize(ctx context.Context, submission *models.Submission) (*models.SubmissionSummary, error)
}

type sessionService struct {
	repo      repositories.Repository
	roster    RosterProvider
	generator *SetGenerator
	clock     Clock
	logger    *slog.Logger
}

func NewSessionService(repo repositories.Repository, roster RosterProvider, generator *SetGenerator, clock Clock, logger *slog.Logger) SessionService {
	return &sessionService{
		repo:      repo,
		roster:    roster,
		generator: generator,
		clock:     clock,
		logger:    logger,
	}
}

func (s *sessionService) GetQuestionsForStudent(ctx context.Context, principal models.Principal, examID uint) (*models.ExamPaper, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	if exam.ClassID == nil {
		return nil, ErrNotEnrolled
	}
	enrolled, err := s.roster.IsEnrolled(ctx, *exam.ClassID, principal.Email, principal.UserID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	if !exam.IsPublished {
		return nil, ErrExamNotPublished
	}
	now := s.clock.Now()
	if !exam.IsOpenAt(now) {
		if exam.StartTime == nil || now.Before(*exam.StartTime) {
			return nil, ErrExamNotStarted
		}
		return nil, ErrExamExpired
	}

	set, err := findStudentSet(ctx, s.repo.QuestionSet(), exam.ID, principal)
	if err != nil {
		return nil, err
	}
	if set.IsCompleted {
		return nil, ErrAlreadySubmitted
	}

	ids := set.QuestionIDs()
	questions, err := s.repo.Question().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	paper := &models.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		QuestionSetID:   set.ID,
		SetNumber:       set.SetNumber,
		DurationMinutes: exam.DurationMinutes,
		Security:        exam.SecuritySettings.Data(),
		Questions:       make([]models.StudentQuestion, 0, len(set.Items)),
	}
	if exam.EndTime != nil {
		paper.EndTime = *exam.EndTime
	}

	for _, item := range set.Items {
		q, ok := byID[item.QuestionID]
		if !ok {
			s.logger.Warn("Question in set is missing from the store",
				"exam_id", exam.ID,
				"question_set_id", set.ID,
				"question_id", item.QuestionID)
			continue
		}
		options := q.Options()
		if exam.ShuffleOptions {
			options = s.generator.ShuffleOptions(options)
		}
		paper.Questions = append(paper.Questions, models.StudentQuestion{
			QuestionID: q.ID,
			Order:      item.Order,
			Text:       q.Text,
			Options:    options,
			Subject:    q.Subject,
		})
	}

	if set.StartedAt == nil {
		if err := s.repo.QuestionSet().MarkStarted(ctx, nil, set.ID, now); err != nil {
			// Monitoring status only; the paper is still served
			s.logger.Warn("Failed to mark question set started", "question_set_id", set.ID, "error", err)
		}
	}

	s.logger.Info("Exam paper served",
		"exam_id", exam.ID,
		"student_email", set.StudentEmail,
		"set_number", set.SetNumber,
		"questions", len(paper.Questions))

	return paper, nil
}

func (s *sessionService) GetAssignedExams(ctx context.Context, principal models.Principal) ([]models.AssignedExam, error) {
	sets, err := s.repo.QuestionSet().ListByStudent(ctx, nil, principal.Email, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question sets: %w", err)
	}

	open := make(map[uint]*models.QuestionSet)
	examIDs := make([]uint, 0, len(sets))
	for _, set := range sets {
		if set.IsCompleted {
			continue
		}
		if _, seen := open[set.ExamID]; seen {
			continue
		}
		open[set.ExamID] = set
		examIDs = append(examIDs, set.ExamID)
	}
	if len(examIDs) == 0 {
		return []models.AssignedExam{}, nil
	}

	exams, err := s.repo.Exam().GetByIDs(ctx, nil, examIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	byID := make(map[uint]*models.Exam, len(exams))
	for _, e := range exams {
		byID[e.ID] = e
	}

	out := make([]models.AssignedExam, 0, len(examIDs))
	for _, id := range examIDs {
		exam, ok := byID[id]
		if !ok || !exam.IsPublished || exam.IsEnded {
			continue
		}
		set := open[id]
		out = append(out, models.AssignedExam{
			ExamID:          exam.ID,
			Title:           exam.Title,
			DurationMinutes: exam.DurationMinutes,
			StartTime:       exam.StartTime,
			EndTime:         exam.EndTime,
			SetNumber:       set.SetNumber,
			AccessLink:      set.AccessLink,
			Status:          set.Status(),
		})
	}
	return out, nil
}

func (s *sessionService) GetAttendedTests(ctx context.Context, principal models.Principal) ([]models.AttendedTest, error) {
	submissions, err := s.repo.Submission().ListByStudent(ctx, nil, principal.Email, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	if len(submissions) == 0 {
		return []models.AttendedTest{}, nil
	}

	exams, err := s.examsFor(ctx, submissions)
	if err != nil {
		return nil, err
	}

	out := make([]models.AttendedTest, 0, len(submissions))
	for _, sub := range submissions {
		test := models.AttendedTest{
			SubmissionID:     sub.ID,
			ExamID:           sub.ExamID,
			ExamTitle:        "Unknown exam",
			TotalQuestions:   sub.TotalQuestions,
			Grade:            models.GradeUnreleased,
			TimeSpentSeconds: sub.TimeSpentSeconds,
			SubmittedAt:      sub.SubmittedAt.UTC().Format(time.RFC3339),
		}
		if exam, ok := exams[sub.ExamID]; ok {
			test.ExamTitle = exam.Title
			test.ScoreReleased = exam.ScoreReleased
			test.AnswersReleased = exam.AnswersReleased
			if exam.ScoreReleased {
				score, pct := sub.Score, sub.Percentage
				test.Score = &score
				test.Percentage = &pct
				test.Grade = models.LetterGrade(pct)
			}
		}
		out = append(out, test)
	}
	return out, nil
}

func (s *sessionService) GetTestAnswers(ctx context.Context, principal models.Principal, examID uint, studentEmail string) ([]models.AnswerReview, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	target := principal
	if email := models.NormalizeEmail(studentEmail); email != "" && email != models.NormalizeEmail(principal.Email) {
		if !exam.IsManagedBy(principal) {
			return nil, NewPermissionError(principal.UserID, examID, "exam", "review answers", "not the exam owner")
		}
		target = models.Principal{Email: email}
	} else if !exam.AnswersReleased && !exam.IsManagedBy(principal) {
		return nil, ErrAnswersNotReleased
	}

	set, err := findStudentSet(ctx, s.repo.QuestionSet(), examID, target)
	if err != nil {
		return nil, err
	}

	submission, err := s.findSubmission(ctx, examID, target, set)
	if err != nil {
		return nil, err
	}
	answers := submission.Answers.Data()

	questions, err := s.repo.Question().GetByIDs(ctx, nil, set.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	out := make([]models.AnswerReview, 0, len(set.Items))
	for _, item := range set.Items {
		q, ok := byID[item.QuestionID]
		if !ok {
			continue
		}
		review := models.AnswerReview{
			QuestionID:    q.ID,
			Order:         item.Order,
			Text:          q.Text,
			Options:       q.Options(),
			CorrectOption: q.CorrectOption,
		}
		if a, answered := answers[q.ID]; answered {
			review.SelectedOption = a.SelectedOption
			review.SelectedText = a.SelectedText
			review.IsCorrect = a.IsCorrect
		}
		out = append(out, review)
	}
	return out, nil
}

func (s *sessionService) Summarize(ctx context.Context, submission *models.Submission) (*models.SubmissionSummary, error) {
	exam, err := s.getExam(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}
	return SummaryFor(exam, submission), nil
}

// SummaryFor hides score and percentage until the exam releases them.
func SummaryFor(exam *models.Exam, submission *models.Submission) *models.SubmissionSummary {
	summary := &models.SubmissionSummary{
		SubmissionID:   submission.ID,
		ExamID:         submission.ExamID,
		TotalQuestions: submission.TotalQuestions,
		ScoreReleased:  exam.ScoreReleased,
		SubmittedAt:    submission.SubmittedAt,
	}
	if exam.ScoreReleased {
		score, pct := submission.Score, submission.Percentage
		summary.Score = &score
		summary.Percentage = &pct
	}
	return summary
}

func (s *sessionService) getExam(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *sessionService) examsFor(ctx context.Context, submissions []*models.Submission) (map[uint]*models.Exam, error) {
	ids := make([]uint, 0, len(submissions))
	seen := make(map[uint]struct{}, len(submissions))
	for _, sub := range submissions {
		if _, ok := seen[sub.ExamID]; ok {
			continue
		}
		seen[sub.ExamID] = struct{}{}
		ids = append(ids, sub.ExamID)
	}
	exams, err := s.repo.Exam().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	out := make(map[uint]*models.Exam, len(exams))
	for _, e := range exams {
		out[e.ID] = e
	}
	return out, nil
}

// findSubmission returns the target's submission for the exam's set. The
// per-exam key is tried first; a submission filed under the student's other
// identity is found through the email.
func (s *sessionService) findSubmission(ctx context.Context, examID uint, target models.Principal, set *models.QuestionSet) (*models.Submission, error) {
	submission, err := s.repo.Submission().GetByExamAndStudent(ctx, nil, examID, studentKey(target, set))
	if err == nil {
		return submission, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	submissions, err := s.repo.Submission().ListByStudent(ctx, nil, set.StudentEmail, target.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	for _, sub := range submissions {
		if sub.ExamID == examID {
			return sub, nil
		}
	}
	return nil, ErrSubmissionNotFound
}
