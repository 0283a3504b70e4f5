package models

import "time"

// ExamAnalytics is the per-exam roll-up of submissions.
type ExamAnalytics struct {
	ExamID             uint                `json:"exam_id"`
	Title              string              `json:"title"`
	Participants       int                 `json:"participants"`
	AverageScore       float64             `json:"average_score"`
	AverageTimeSeconds float64             `json:"average_time_seconds"`
	HighestScore       float64             `json:"highest_score"`
	LowestScore        float64             `json:"lowest_score"`
	Questions          []QuestionBreakdown `json:"questions"`
}

type QuestionBreakdown struct {
	QuestionID  uint    `json:"question_id"`
	Attempts    int     `json:"attempts"`
	Correct     int     `json:"correct"`
	CorrectRate float64 `json:"correct_rate"`
}

// StudentPerformance is the per-student roll-up of submissions.
type StudentPerformance struct {
	TestsAttempted     int                  `json:"tests_attempted"`
	AverageScore       float64              `json:"average_score"`
	BestScore          float64              `json:"best_score"`
	TotalTimeSpent     int                  `json:"total_time_spent"`
	RecentScores       []RecentScore        `json:"recent_scores"`
	SubjectPerformance []SubjectPerformance `json:"subject_performance"`
}

type RecentScore struct {
	ExamID      uint      `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type SubjectPerformance struct {
	Subject        string  `json:"subject"`
	AverageScore   float64 `json:"average_score"`
	TestsAttempted int     `json:"tests_attempted"`
}

// StudentRanking is one enrollment in the ranking across an instructor's
// classes. A student enrolled in two classes appears twice.
type StudentRanking struct {
	Rank               int       `json:"rank"`
	StudentID          string    `json:"student_id"`
	StudentName        string    `json:"student_name"`
	Email              string    `json:"email"`
	ClassID            uint      `json:"class_id"`
	ClassName          string    `json:"class_name"`
	TestsCompleted     int       `json:"tests_completed"`
	AverageScore       float64   `json:"average_score"`
	AverageTimeMinutes int       `json:"average_time_minutes"`
	JoinedAt           time.Time `json:"joined_at"`
}

type StudentProfile struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ClassID   uint      `json:"class_id"`
	ClassName string    `json:"class_name"`
	JoinedAt  time.Time `json:"joined_at"`
}

// StudentDetailedAnalysis is the instructor's view of one student.
type StudentDetailedAnalysis struct {
	Student            StudentProfile     `json:"student"`
	AverageTimeMinutes int                `json:"average_time_minutes"`
	Performance        StudentPerformance `json:"performance"`
}

// MonitoringEntry is one row of the live monitoring view.
type MonitoringEntry struct {
	StudentName      string        `json:"student_name"`
	StudentEmail     string        `json:"student_email"`
	SetNumber        int           `json:"set_number"`
	Status           SessionStatus `json:"status"`
	TabSwitches      int           `json:"tab_switches"`
	FullscreenExits  int           `json:"fullscreen_exits"`
	TimeSpentSeconds int           `json:"time_spent_seconds"`
	Percentage       *float64      `json:"percentage,omitempty"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
}

type Participant struct {
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	UserID       *string       `json:"user_id,omitempty"`
	SetNumber    int           `json:"set_number"`
	Status       SessionStatus `json:"status"`
	Score        *int          `json:"score,omitempty"`
	Percentage   *float64      `json:"percentage,omitempty"`
	SubmittedAt  *time.Time    `json:"submitted_at,omitempty"`
	HasSubmitted bool          `json:"has_submitted"`
}

// QuestionSetsDebug summarises generated sets against the exam config.
type QuestionSetsDebug struct {
	ExamID          uint               `json:"exam_id"`
	SetCount        int                `json:"set_count"`
	QuestionsPerSet int                `json:"questions_per_set"`
	PoolSize        int                `json:"pool_size"`
	TotalSets       int                `json:"total_sets"`
	DistinctSets    int                `json:"distinct_sets"`
	AllMatch        bool               `json:"all_match"`
	Sets            []QuestionSetDebug `json:"sets"`
}

type QuestionSetDebug struct {
	SetID         uint   `json:"set_id"`
	SetNumber     int    `json:"set_number"`
	StudentEmail  string `json:"student_email"`
	QuestionCount int    `json:"question_count"`
	QuestionIDs   []uint `json:"question_ids"`
	Matches       bool   `json:"matches"`
	IsCompleted   bool   `json:"is_completed"`
}
