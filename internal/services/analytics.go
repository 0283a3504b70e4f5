package services

import (
	"math"
	"sort"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

const (
	recentScoreLimit = 10
	defaultSubject   = "General"
)

// AggregateExam rolls the submissions of one exam into its analytics. No
// submissions yields a zeroed result.
func AggregateExam(exam *models.Exam, submissions []*models.Submission) models.ExamAnalytics {
	out := models.ExamAnalytics{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Questions: []models.QuestionBreakdown{},
	}
	if len(submissions) == 0 {
		return out
	}

	var totalScore, totalTime float64
	out.HighestScore = math.Inf(-1)
	out.LowestScore = math.Inf(1)

	type tally struct{ attempts, correct int }
	perQuestion := make(map[uint]*tally)

	for _, sub := range submissions {
		totalScore += sub.Percentage
		totalTime += float64(sub.TimeSpentSeconds)
		out.HighestScore = math.Max(out.HighestScore, sub.Percentage)
		out.LowestScore = math.Min(out.LowestScore, sub.Percentage)

		for questionID, answer := range sub.Answers.Data() {
			t, ok := perQuestion[questionID]
			if !ok {
				t = &tally{}
				perQuestion[questionID] = t
			}
			t.attempts++
			if answer.IsCorrect {
				t.correct++
			}
		}
	}

	n := float64(len(submissions))
	out.Participants = len(submissions)
	out.AverageScore = round(totalScore/n, 1)
	out.AverageTimeSeconds = round(totalTime/n, 1)
	out.HighestScore = round(out.HighestScore, 1)
	out.LowestScore = round(out.LowestScore, 1)

	for questionID, t := range perQuestion {
		out.Questions = append(out.Questions, models.QuestionBreakdown{
			QuestionID:  questionID,
			Attempts:    t.attempts,
			Correct:     t.correct,
			CorrectRate: round(Percentage(t.correct, t.attempts), 1),
		})
	}
	sort.Slice(out.Questions, func(i, j int) bool { return out.Questions[i].QuestionID < out.Questions[j].QuestionID })
	return out
}

// AggregateStudent rolls a student's submissions into their performance
// summary. exams supplies titles; submissions whose exam is missing still
// count toward the totals but not toward any subject.
func AggregateStudent(submissions []*models.Submission, exams map[uint]*models.Exam) models.StudentPerformance {
	out := models.StudentPerformance{
		RecentScores:       []models.RecentScore{},
		SubjectPerformance: []models.SubjectPerformance{},
	}
	if len(submissions) == 0 {
		return out
	}

	total := 0.0
	best := math.Inf(-1)
	for _, sub := range submissions {
		total += sub.Percentage
		best = math.Max(best, sub.Percentage)
		out.TotalTimeSpent += sub.TimeSpentSeconds
	}
	out.TestsAttempted = len(submissions)
	out.AverageScore = round(total/float64(len(submissions)), 1)
	out.BestScore = math.Round(best)

	recent := make([]*models.Submission, len(submissions))
	copy(recent, submissions)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].SubmittedAt.After(recent[j].SubmittedAt) })
	if len(recent) > recentScoreLimit {
		recent = recent[:recentScoreLimit]
	}
	for _, sub := range recent {
		title := "Unknown Test"
		if exam, ok := exams[sub.ExamID]; ok {
			title = exam.Title
		}
		out.RecentScores = append(out.RecentScores, models.RecentScore{
			ExamID:      sub.ExamID,
			ExamTitle:   title,
			Score:       math.Round(sub.Percentage),
			SubmittedAt: sub.SubmittedAt,
		})
	}

	type tally struct {
		total float64
		count int
	}
	bySubject := make(map[string]*tally)
	var order []string
	for _, sub := range submissions {
		exam, ok := exams[sub.ExamID]
		if !ok {
			continue
		}
		subject := SubjectFromTitle(exam.Title)
		t, seen := bySubject[subject]
		if !seen {
			t = &tally{}
			bySubject[subject] = t
			order = append(order, subject)
		}
		t.total += sub.Percentage
		t.count++
	}
	for _, subject := range order {
		t := bySubject[subject]
		out.SubjectPerformance = append(out.SubjectPerformance, models.SubjectPerformance{
			Subject:        subject,
			AverageScore:   math.Round(t.total / float64(t.count)),
			TestsAttempted: t.count,
		})
	}
	return out
}

// RankStudents orders entries by average score, best first, and numbers
// them from 1. Equal averages keep their given order.
func RankStudents(entries []models.StudentRanking) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].AverageScore > entries[j].AverageScore })
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// AverageMinutes is the mean time spent per submission, in whole minutes.
func AverageMinutes(submissions []*models.Submission) int {
	if len(submissions) == 0 {
		return 0
	}
	total := 0
	for _, sub := range submissions {
		total += sub.TimeSpentSeconds
	}
	return int(math.Round(float64(total) / float64(len(submissions)) / 60))
}

// SubjectFromTitle takes the part of an exam title before the first '-',
// so "Physics - Midterm" groups under "Physics".
func SubjectFromTitle(title string) string {
	prefix, _, _ := strings.Cut(title, "-")
	if subject := strings.TrimSpace(prefix); subject != "" {
		return subject
	}
	return defaultSubject
}
