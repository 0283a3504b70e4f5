package models

type GradeRange struct {
	MinScore float64 `json:"min_score"`
	Grade    string  `json:"grade"`
}

const GradeUnreleased = "N/A"

// DefaultGradeRanges is ordered from the highest band down.
var DefaultGradeRanges = []GradeRange{
	{MinScore: 90, Grade: "A"},
	{MinScore: 80, Grade: "B+"},
	{MinScore: 70, Grade: "B"},
	{MinScore: 60, Grade: "C"},
	{MinScore: 50, Grade: "D"},
	{MinScore: 0, Grade: "F"},
}

// LetterGrade maps a percentage onto DefaultGradeRanges.
func LetterGrade(percentage float64) string {
	for _, r := range DefaultGradeRanges {
		if percentage >= r.MinScore {
			return r.Grade
		}
	}
	return "F"
}

// AttendedTest is a student's view of one of their submissions.
type AttendedTest struct {
	SubmissionID    uint     `json:"submission_id"`
	ExamID          uint     `json:"exam_id"`
	ExamTitle       string   `json:"exam_title"`
	TotalQuestions  int      `json:"total_questions"`
	Score           *int     `json:"score"`
	Percentage      *float64 `json:"percentage"`
	Grade           string   `json:"grade"`
	ScoreReleased   bool     `json:"score_released"`
	AnswersReleased bool     `json:"answers_released"`

	TimeSpentSeconds int    `json:"time_spent_seconds"`
	SubmittedAt      string `json:"submitted_at"`
}

// AnswerReview pairs a student's answer with the key, once answers are released.
type AnswerReview struct {
	QuestionID     uint     `json:"question_id"`
	Order          int      `json:"order"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectOption  string   `json:"correct_option"`
	SelectedOption string   `json:"selected_option"`
	SelectedText   string   `json:"selected_text"`
	IsCorrect      bool     `json:"is_correct"`
}
