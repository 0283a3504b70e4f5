package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	MinExamDuration = 5
	MaxExamDuration = 240
)

type (
	ValidationError  = apperrors.ValidationError
	ValidationErrors = apperrors.ValidationErrors
)

// Validator combines struct tag validation with exam business rules
type Validator struct {
	structValidator *validator.Validate
	examValidator   *ExamValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		examValidator:   NewExamValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate runs struct validation and returns our ValidationErrors on failure
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Exam returns the exam business rule validator
func (v *Validator) Exam() *ExamValidator {
	return v.examValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("answer_kind", validateAnswerKind)
	validate.RegisterValidation("exam_duration", validateExamDuration)

	// Report json field names in errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateAnswerKind(fl validator.FieldLevel) bool {
	switch models.AnswerKind(fl.Field().String()) {
	case models.AnswerLetter, models.AnswerText:
		return true
	}
	return false
}

func validateExamDuration(fl validator.FieldLevel) bool {
	minutes := fl.Field().Int()
	return minutes >= MinExamDuration && minutes <= MaxExamDuration
}
