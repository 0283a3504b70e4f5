package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"golang.org/x/sync/errgroup"
)

// AnalyticsService serves the read-only roll-ups for instructors and students.
type AnalyticsService interface {
	GetExamAnalysis(ctx context.Context, principal models.Principal, examID uint) (*models.ExamAnalytics, error)
	GetStudentPerformance(ctx context.Context, principal models.Principal) (*models.StudentPerformance, error)
	GetExamParticipants(ctx context.Context, principal models.Principal, examID uint) ([]models.Participant, error)
	GetMonitoringData(ctx context.Context, principal models.Principal, examID uint) ([]models.MonitoringEntry, error)

	// GetAllStudentsForAnalysis ranks every enrollment in the caller's
	// classes, or in all classes for an admin, by average score.
	GetAllStudentsForAnalysis(ctx context.Context, principal models.Principal) ([]models.StudentRanking, error)
	// GetStudentDetailedAnalysis is one student's performance, visible to
	// admins and to the teachers of a class the student is enrolled in.
	GetStudentDetailedAnalysis(ctx context.Context, principal models.Principal, studentID string) (*models.StudentDetailedAnalysis, error)
}

// rankingFanOut bounds the concurrent submission lookups of a ranking
const rankingFanOut = 8

type analyticsService struct {
	repo   repositories.Repository
	roster RosterProvider
	users  UserDirectory
	logger *slog.Logger
}

func NewAnalyticsService(repo repositories.Repository, roster RosterProvider, users UserDirectory, logger *slog.Logger) AnalyticsService {
	return &analyticsService{repo: repo, roster: roster, users: users, logger: logger}
}

func (s *analyticsService) GetExamAnalysis(ctx context.Context, principal models.Principal, examID uint) (*models.ExamAnalytics, error) {
	var (
		exam        *models.Exam
		submissions []*models.Submission
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exam, err = s.managedExam(gctx, principal, examID)
		return err
	})
	g.Go(func() error {
		var err error
		submissions, err = s.repo.Submission().ListByExam(gctx, nil, examID)
		if err != nil {
			return fmt.Errorf("failed to list submissions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analytics := AggregateExam(exam, submissions)
	s.logger.Debug("Exam analysis computed", "exam_id", examID, "participants", analytics.Participants)
	return &analytics, nil
}

func (s *analyticsService) GetStudentPerformance(ctx context.Context, principal models.Principal) (*models.StudentPerformance, error) {
	submissions, err := s.repo.Submission().ListByStudent(ctx, nil, principal.Email, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	exams, err := s.examsFor(ctx, submissions)
	if err != nil {
		return nil, err
	}

	performance := AggregateStudent(submissions, exams)
	return &performance, nil
}

func (s *analyticsService) GetAllStudentsForAnalysis(ctx context.Context, principal models.Principal) ([]models.StudentRanking, error) {
	if !principal.IsStaff() {
		return nil, NewPermissionError(principal.UserID, 0, "student", "view analysis", "only teachers and admins can view student analysis")
	}

	var teacherID *string
	if !principal.IsAdmin() {
		id := principal.UserID
		teacherID = &id
	}
	classes, err := s.repo.Class().List(ctx, nil, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	type enrollment struct {
		class   *models.Class
		student models.ClassStudent
	}
	var enrollments []enrollment
	for _, class := range classes {
		roster, err := s.roster.GetRoster(ctx, class.ID)
		if err != nil {
			return nil, err
		}
		for _, student := range roster {
			enrollments = append(enrollments, enrollment{class: class, student: student})
		}
	}

	entries := make([]models.StudentRanking, len(enrollments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rankingFanOut)
	for i, e := range enrollments {
		g.Go(func() error {
			userID := ""
			if e.student.UserID != nil {
				userID = *e.student.UserID
			}
			submissions, err := s.repo.Submission().ListByStudent(gctx, nil, e.student.Email, userID)
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			totals := AggregateStudent(submissions, nil)
			studentID := userID
			if studentID == "" {
				studentID = models.NormalizeEmail(e.student.Email)
			}
			entries[i] = models.StudentRanking{
				StudentID:          studentID,
				StudentName:        e.student.Name,
				Email:              models.NormalizeEmail(e.student.Email),
				ClassID:            e.class.ID,
				ClassName:          e.class.Name,
				TestsCompleted:     totals.TestsAttempted,
				AverageScore:       totals.AverageScore,
				AverageTimeMinutes: AverageMinutes(submissions),
				JoinedAt:           e.student.JoinedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	RankStudents(entries)
	s.logger.Debug("Student ranking computed",
		"user_id", principal.UserID,
		"classes", len(classes),
		"students", len(entries))
	return entries, nil
}

func (s *analyticsService) GetStudentDetailedAnalysis(ctx context.Context, principal models.Principal, studentID string) (*models.StudentDetailedAnalysis, error) {
	if !principal.IsStaff() {
		return nil, NewPermissionError(principal.UserID, 0, "student", "view analysis", "only teachers and admins can view student analysis")
	}

	user, err := s.users.ResolveByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.repo.Class().ListEnrollments(ctx, nil, user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return nil, ErrNoEnrollment
	}

	var (
		entry *models.ClassStudent
		class *models.Class
	)
	for i := range enrollments {
		c, err := s.repo.Class().GetByID(ctx, nil, enrollments[i].ClassID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get class: %w", err)
		}
		if principal.IsAdmin() || c.TeacherID == principal.UserID {
			entry, class = &enrollments[i], c
			break
		}
	}
	if entry == nil {
		return nil, NewPermissionError(principal.UserID, 0, "student", "view analysis", "student is not in any of your classes")
	}

	submissions, err := s.repo.Submission().ListByStudent(ctx, nil, user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	exams, err := s.examsFor(ctx, submissions)
	if err != nil {
		return nil, err
	}

	name := entry.Name
	if name == "" {
		name = user.FullName
	}
	return &models.StudentDetailedAnalysis{
		Student: models.StudentProfile{
			StudentID: user.ID,
			Name:      name,
			Email:     models.NormalizeEmail(user.Email),
			ClassID:   class.ID,
			ClassName: class.Name,
			JoinedAt:  entry.JoinedAt,
		},
		AverageTimeMinutes: AverageMinutes(submissions),
		Performance:        AggregateStudent(submissions, exams),
	}, nil
}

// examsFor loads the exams the submissions belong to, keyed by id.
func (s *analyticsService) examsFor(ctx context.Context, submissions []*models.Submission) (map[uint]*models.Exam, error) {
	ids := make([]uint, 0, len(submissions))
	seen := make(map[uint]struct{}, len(submissions))
	for _, sub := range submissions {
		if _, ok := seen[sub.ExamID]; !ok {
			seen[sub.ExamID] = struct{}{}
			ids = append(ids, sub.ExamID)
		}
	}

	exams, err := s.repo.Exam().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	byID := make(map[uint]*models.Exam, len(exams))
	for _, e := range exams {
		byID[e.ID] = e
	}
	return byID, nil
}

// examSnapshot is everything the participant and monitoring views join.
type examSnapshot struct {
	exam        *models.Exam
	roster      []models.ClassStudent
	sets        map[string]*models.QuestionSet
	submissions map[string]*models.Submission
}

func (s *analyticsService) snapshot(ctx context.Context, principal models.Principal, examID uint) (*examSnapshot, error) {
	exam, err := s.managedExam(ctx, principal, examID)
	if err != nil {
		return nil, err
	}

	var (
		roster      []models.ClassStudent
		sets        []*models.QuestionSet
		submissions []*models.Submission
	)

	g, gctx := errgroup.WithContext(ctx)
	if exam.ClassID != nil {
		classID := *exam.ClassID
		g.Go(func() error {
			var err error
			roster, err = s.roster.GetRoster(gctx, classID)
			return err
		})
	}
	g.Go(func() error {
		var err error
		sets, err = s.repo.QuestionSet().ListByExam(gctx, nil, examID)
		if err != nil {
			return fmt.Errorf("failed to list question sets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		submissions, err = s.repo.Submission().ListByExam(gctx, nil, examID)
		if err != nil {
			return fmt.Errorf("failed to list submissions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &examSnapshot{
		exam:        exam,
		roster:      roster,
		sets:        make(map[string]*models.QuestionSet, len(sets)),
		submissions: make(map[string]*models.Submission, len(submissions)),
	}
	for _, set := range sets {
		snap.sets[models.NormalizeEmail(set.StudentEmail)] = set
	}
	for _, sub := range submissions {
		snap.submissions[models.NormalizeEmail(sub.StudentEmail)] = sub
	}

	// Without a roster the generated sets are the participant list
	if snap.roster == nil {
		for _, set := range sets {
			snap.roster = append(snap.roster, models.ClassStudent{Email: set.StudentEmail, UserID: set.StudentID})
		}
	}
	return snap, nil
}

func (s *analyticsService) GetExamParticipants(ctx context.Context, principal models.Principal, examID uint) ([]models.Participant, error) {
	snap, err := s.snapshot(ctx, principal, examID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Participant, 0, len(snap.roster))
	for _, student := range snap.roster {
		email := models.NormalizeEmail(student.Email)
		p := models.Participant{
			Name:   student.Name,
			Email:  email,
			UserID: student.UserID,
			Status: models.SessionNotStarted,
		}
		if set, ok := snap.sets[email]; ok {
			p.SetNumber = set.SetNumber
			p.Status = set.Status()
			if p.UserID == nil {
				p.UserID = set.StudentID
			}
		}
		if sub, ok := snap.submissions[email]; ok {
			score, pct, at := sub.Score, sub.Percentage, sub.SubmittedAt
			p.Score = &score
			p.Percentage = &pct
			p.SubmittedAt = &at
			p.HasSubmitted = true
			p.Status = models.SessionCompleted
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *analyticsService) GetMonitoringData(ctx context.Context, principal models.Principal, examID uint) ([]models.MonitoringEntry, error) {
	snap, err := s.snapshot(ctx, principal, examID)
	if err != nil {
		return nil, err
	}

	out := make([]models.MonitoringEntry, 0, len(snap.roster))
	for _, student := range snap.roster {
		email := models.NormalizeEmail(student.Email)
		entry := models.MonitoringEntry{
			StudentName:  student.Name,
			StudentEmail: email,
			Status:       models.SessionNotStarted,
		}
		if set, ok := snap.sets[email]; ok {
			entry.SetNumber = set.SetNumber
			entry.Status = set.Status()
			entry.SubmittedAt = set.CompletedAt
		}
		if sub, ok := snap.submissions[email]; ok {
			pct, at := sub.Percentage, sub.SubmittedAt
			entry.Status = models.SessionCompleted
			entry.TabSwitches = sub.TabSwitches
			entry.FullscreenExits = sub.FullscreenExits
			entry.TimeSpentSeconds = sub.TimeSpentSeconds
			entry.Percentage = &pct
			entry.SubmittedAt = &at
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *analyticsService) managedExam(ctx context.Context, principal models.Principal, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsManagedBy(principal) {
		return nil, NewPermissionError(principal.UserID, examID, "exam", "view analytics", "not the exam owner")
	}
	return exam, nil
}
