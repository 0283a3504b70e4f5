package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

var resultHeaders = []string{
	"Student Email", "Student ID", "Set", "Score", "Total Questions", "Percentage",
	"Grade", "Time Spent (s)", "Tab Switches", "Fullscreen Exits", "Reason", "Submitted At",
}

// ExportService renders exam results as spreadsheets.
type ExportService interface {
	// ExportResults returns an xlsx workbook with one row per submission.
	ExportResults(ctx context.Context, principal models.Principal, examID uint) ([]byte, error)
}

type exportService struct {
	repo   repositories.Repository
	audit  AuditSink
	clock  Clock
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, audit AuditSink, clock Clock, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, audit: audit, clock: clock, logger: logger}
}

func (s *exportService) ExportResults(ctx context.Context, principal models.Principal, examID uint) ([]byte, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsManagedBy(principal) {
		return nil, NewPermissionError(principal.UserID, examID, "exam", "export_results", "not owner or insufficient permissions")
	}

	submissions, err := s.repo.Submission().ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam submissions: %w", err)
	}
	sets, err := s.repo.QuestionSet().ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question sets: %w", err)
	}
	setNumbers := make(map[uint]int, len(sets))
	for _, set := range sets {
		setNumbers[set.ID] = set.SetNumber
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(resultsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	// Drop the default sheet so the workbook opens on the results
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for i, header := range resultHeaders {
		if err := setCell(f, i+1, 1, header); err != nil {
			return nil, err
		}
	}

	for rowIndex, sub := range submissions {
		row := []interface{}{
			sub.StudentEmail,
			sub.StudentID,
			setNumbers[sub.QuestionSetID],
			sub.Score,
			sub.TotalQuestions,
			round(sub.Percentage, 2),
			models.LetterGrade(sub.Percentage),
			sub.TimeSpentSeconds,
			sub.TabSwitches,
			sub.FullscreenExits,
			sub.Reason,
			sub.SubmittedAt.UTC().Format(time.RFC3339),
		}
		for colIndex, value := range row {
			if err := setCell(f, colIndex+1, rowIndex+2, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exam results exported", "exam_id", examID, "rows", len(submissions))
	s.audit.Record(ctx, models.AuditRecord{
		EventType:  models.AuditResultsExported,
		ActorID:    principal.UserID,
		ActorEmail: principal.Email,
		ExamID:     examID,
		Details:    map[string]interface{}{"rows": len(submissions)},
		OccurredAt: s.clock.Now(),
	})

	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	if err := f.SetCellValue(resultsSheet, cell, value); err != nil {
		return fmt.Errorf("failed to write cell %s: %w", cell, err)
	}
	return nil
}
