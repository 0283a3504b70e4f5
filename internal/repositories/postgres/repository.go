package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db          *gorm.DB
	exam        repositories.ExamRepository
	question    repositories.QuestionRepository
	questionSet repositories.QuestionSetRepository
	submission  repositories.SubmissionRepository
	class       repositories.ClassRepository
	user        repositories.UserRepository
}

// NewRepository wires every gorm repository over one connection
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:          db,
		exam:        NewExamPostgreSQL(db),
		question:    NewQuestionPostgreSQL(db),
		questionSet: NewQuestionSetPostgreSQL(db),
		submission:  NewSubmissionPostgreSQL(db),
		class:       NewClassPostgreSQL(db),
		user:        NewUserPostgreSQL(db),
	}
}

func (r *repository) Exam() repositories.ExamRepository               { return r.exam }
func (r *repository) Question() repositories.QuestionRepository       { return r.question }
func (r *repository) QuestionSet() repositories.QuestionSetRepository { return r.questionSet }
func (r *repository) Submission() repositories.SubmissionRepository   { return r.submission }
func (r *repository) Class() repositories.ClassRepository             { return r.class }
func (r *repository) User() repositories.UserRepository               { return r.user }

func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
