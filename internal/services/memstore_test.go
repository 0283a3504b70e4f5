package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// memStore is an in-memory repositories.Repository. WithTransaction restores
// a snapshot when fn fails, which is enough to observe all-or-nothing writes.
// Transactions are serialized on txMu so a rollback never discards another
// transaction's commit.
type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	nextID uint

	exams       map[uint]models.Exam
	questions   map[uint]models.Question
	sets        map[uint]models.QuestionSet
	submissions map[uint]models.Submission
	classes     map[uint]models.Class
	roster      map[uint][]models.ClassStudent
	users       map[string]models.User

	// Fault injection
	createSetsErr error
	txCount       int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      100,
		exams:       map[uint]models.Exam{},
		questions:   map[uint]models.Question{},
		sets:        map[uint]models.QuestionSet{},
		submissions: map[uint]models.Submission{},
		classes:     map[uint]models.Class{},
		roster:      map[uint][]models.ClassStudent{},
		users:       map[string]models.User{},
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) Exam() repositories.ExamRepository               { return memExams{m} }
func (m *memStore) Question() repositories.QuestionRepository       { return memQuestions{m} }
func (m *memStore) QuestionSet() repositories.QuestionSetRepository { return memSets{m} }
func (m *memStore) Submission() repositories.SubmissionRepository   { return memSubmissions{m} }
func (m *memStore) Class() repositories.ClassRepository             { return memClasses{m} }
func (m *memStore) User() repositories.UserRepository               { return memUsers{m} }

type memSnapshot struct {
	exams       map[uint]models.Exam
	questions   map[uint]models.Question
	sets        map[uint]models.QuestionSet
	submissions map[uint]models.Submission
	roster      map[uint][]models.ClassStudent
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	m.txCount++
	snap := memSnapshot{
		exams:       cloneMap(m.exams),
		questions:   cloneMap(m.questions),
		sets:        cloneMap(m.sets),
		submissions: cloneMap(m.submissions),
		roster:      cloneMap(m.roster),
	}
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.exams, m.questions, m.sets, m.submissions, m.roster =
			snap.exams, snap.questions, snap.sets, snap.submissions, snap.roster
		m.mu.Unlock()
		return err
	}
	return nil
}

// ===== seed helpers =====

func (m *memStore) addQuestion(q models.Question) *models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == 0 {
		q.ID = m.id()
	}
	if q.AdaptiveDifficulty == "" {
		q.AdaptiveDifficulty = models.AdaptiveMedium
	}
	m.questions[q.ID] = q
	return &q
}

func (m *memStore) addExam(e models.Exam) *models.Exam {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.id()
	}
	m.exams[e.ID] = e
	return &e
}

func (m *memStore) addClass(teacherID string, students ...models.ClassStudent) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.classes[id] = models.Class{ID: id, Name: "class", TeacherID: teacherID}
	for i := range students {
		students[i].ID = m.id()
		students[i].ClassID = id
	}
	m.roster[id] = students
	return id
}

// enroll appends a student to an existing class roster.
func (m *memStore) enroll(classID uint, entry models.ClassStudent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.id()
	entry.ClassID = classID
	m.roster[classID] = append(m.roster[classID], entry)
}

func (m *memStore) addUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) exam(id uint) models.Exam {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exams[id]
}

func (m *memStore) question(id uint) models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questions[id]
}

func (m *memStore) setsFor(examID uint) []models.QuestionSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QuestionSet
	for _, s := range m.sets {
		if s.ExamID == examID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ===== exams =====

type memExams struct{ m *memStore }

func (r memExams) Create(_ context.Context, _ *gorm.DB, exam *models.Exam) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	exam.ID = r.m.id()
	r.m.exams[exam.ID] = *exam
	return nil
}

func (r memExams) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Exam, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &e, nil
}

func (r memExams) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return r.GetByID(ctx, tx, id)
}

func (r memExams) GetByIDs(_ context.Context, _ *gorm.DB, ids []uint) ([]*models.Exam, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Exam{}
	for _, id := range ids {
		if e, ok := r.m.exams[id]; ok {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r memExams) List(_ context.Context, _ *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Exam{}
	for _, e := range r.m.exams {
		if filters.OwnerID != nil && e.OwnerID != *filters.OwnerID {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r memExams) UpdateFields(_ context.Context, _ *gorm.DB, id uint, fields map[string]interface{}) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "class_id":
			c := v.(uint)
			e.ClassID = &c
		case "expiring_hours":
			e.ExpiringHours = v.(int)
		case "start_time":
			t := v.(time.Time)
			e.StartTime = &t
		case "end_time":
			t := v.(time.Time)
			e.EndTime = &t
		case "is_published":
			e.IsPublished = v.(bool)
		case "is_ended":
			e.IsEnded = v.(bool)
		case "manually_ended_at":
			if v == nil {
				e.ManuallyEndedAt = nil
			} else {
				t := v.(time.Time)
				e.ManuallyEndedAt = &t
			}
		case "score_released":
			e.ScoreReleased = v.(bool)
		case "answers_released":
			e.AnswersReleased = v.(bool)
		case "version":
			e.Version = v.(int)
		case "title":
			e.Title = v.(string)
		case "description":
			d := v.(string)
			e.Description = &d
		case "duration_minutes":
			e.DurationMinutes = v.(int)
		case "set_count":
			e.SetCount = v.(int)
		case "questions_per_set":
			e.QuestionsPerSet = v.(int)
		case "security_settings":
			e.SecuritySettings = v.(datatypes.JSONType[models.SecuritySettings])
		default:
			panic("memExams: unknown field " + k)
		}
	}
	r.m.exams[id] = e
	return nil
}

func (r memExams) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.exams[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.exams, id)
	return nil
}

// ===== questions =====

type memQuestions struct{ m *memStore }

func (r memQuestions) GetByIDs(_ context.Context, _ *gorm.DB, ids []uint) ([]*models.Question, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Question{}
	seen := map[uint]bool{}
	for _, id := range ids {
		if q, ok := r.m.questions[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, &q)
		}
	}
	return out, nil
}

func (r memQuestions) GetIDsByBank(_ context.Context, _ *gorm.DB, bankID uint) ([]uint, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uint
	for id, q := range r.m.questions {
		if q.QuestionBankID != nil && *q.QuestionBankID == bankID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memQuestions) CountExisting(_ context.Context, _ *gorm.DB, ids []uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.m.questions[id]; ok {
			n++
		}
	}
	return n, nil
}

func (r memQuestions) IncrementUsage(_ context.Context, _ *gorm.DB, id uint, correct bool) (*models.QuestionStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q, ok := r.m.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	q.UsageCount++
	if correct {
		q.CorrectCount++
	} else {
		q.IncorrectCount++
	}
	r.m.questions[id] = q
	return &models.QuestionStats{
		QuestionID:     id,
		UsageCount:     q.UsageCount,
		CorrectCount:   q.CorrectCount,
		IncorrectCount: q.IncorrectCount,
	}, nil
}

func (r memQuestions) UpdateDerivedStats(_ context.Context, _ *gorm.DB, stats *models.QuestionStats) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q, ok := r.m.questions[stats.QuestionID]
	if !ok {
		return repositories.ErrNotFound
	}
	q.SuccessRate = stats.SuccessRate
	q.AdaptiveDifficulty = stats.AdaptiveDifficulty
	r.m.questions[stats.QuestionID] = q
	return nil
}

// ===== question sets =====

type memSets struct{ m *memStore }

func (r memSets) CreateBatch(_ context.Context, _ *gorm.DB, sets []*models.QuestionSet) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createSetsErr != nil {
		return r.m.createSetsErr
	}
	for _, s := range sets {
		for _, existing := range r.m.sets {
			if existing.AccessLink == s.AccessLink ||
				(existing.ExamID == s.ExamID && existing.StudentEmail == s.StudentEmail) {
				return repositories.ErrDuplicate
			}
		}
		s.ID = r.m.id()
		s.CreatedAt = time.Now()
		items := make([]models.QuestionSetItem, len(s.Items))
		seen := map[uint]bool{}
		for i, item := range s.Items {
			if seen[item.QuestionID] {
				return repositories.ErrDuplicate
			}
			seen[item.QuestionID] = true
			item.ID = r.m.id()
			item.QuestionSetID = s.ID
			items[i] = item
		}
		s.Items = items
		r.m.sets[s.ID] = *s
	}
	return nil
}

func (r memSets) DeleteByExam(_ context.Context, _ *gorm.DB, examID uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, s := range r.m.sets {
		if s.ExamID == examID {
			delete(r.m.sets, id)
		}
	}
	return nil
}

func (r memSets) find(match func(models.QuestionSet) bool) (*models.QuestionSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.sets {
		if match(s) {
			s := s
			return &s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memSets) GetByExamAndEmail(_ context.Context, _ *gorm.DB, examID uint, email string) (*models.QuestionSet, error) {
	return r.find(func(s models.QuestionSet) bool {
		return s.ExamID == examID && s.StudentEmail == models.NormalizeEmail(email)
	})
}

func (r memSets) GetByExamAndStudentID(_ context.Context, _ *gorm.DB, examID uint, studentID string) (*models.QuestionSet, error) {
	return r.find(func(s models.QuestionSet) bool {
		return s.ExamID == examID && s.StudentID != nil && *s.StudentID == studentID
	})
}

func (r memSets) ListByExam(_ context.Context, _ *gorm.DB, examID uint) ([]*models.QuestionSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.QuestionSet{}
	for _, s := range r.m.sets {
		if s.ExamID == examID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SetNumber != out[j].SetNumber {
			return out[i].SetNumber < out[j].SetNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memSets) ListByStudent(_ context.Context, _ *gorm.DB, email, studentID string) ([]*models.QuestionSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.QuestionSet{}
	for _, s := range r.m.sets {
		if s.StudentEmail == models.NormalizeEmail(email) || (studentID != "" && s.StudentID != nil && *s.StudentID == studentID) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memSets) update(match func(models.QuestionSet) bool, apply func(*models.QuestionSet)) int64 {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, s := range r.m.sets {
		if match(s) {
			apply(&s)
			r.m.sets[id] = s
			n++
		}
	}
	return n
}

func (r memSets) MarkStarted(_ context.Context, _ *gorm.DB, id uint, at time.Time) error {
	r.update(func(s models.QuestionSet) bool { return s.ID == id && s.StartedAt == nil },
		func(s *models.QuestionSet) { s.StartedAt = &at })
	return nil
}

func complete(at time.Time) func(*models.QuestionSet) {
	return func(s *models.QuestionSet) {
		s.IsCompleted = true
		s.CompletedAt = &at
	}
}

func (r memSets) MarkCompleted(_ context.Context, _ *gorm.DB, id uint, at time.Time) (bool, error) {
	n := r.update(func(s models.QuestionSet) bool { return s.ID == id && !s.IsCompleted }, complete(at))
	return n > 0, nil
}

func (r memSets) CompleteOpenByExam(_ context.Context, _ *gorm.DB, examID uint, at time.Time) (int64, error) {
	return r.update(func(s models.QuestionSet) bool { return s.ExamID == examID && !s.IsCompleted }, complete(at)), nil
}

func (r memSets) CompleteOpenByExamAndEmail(_ context.Context, _ *gorm.DB, examID uint, email string, at time.Time) (int64, error) {
	return r.update(func(s models.QuestionSet) bool {
		return s.ExamID == examID && s.StudentEmail == models.NormalizeEmail(email) && !s.IsCompleted
	}, complete(at)), nil
}

// ===== submissions =====

type memSubmissions struct{ m *memStore }

func (r memSubmissions) Create(_ context.Context, _ *gorm.DB, sub *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.submissions {
		if existing.ExamID == sub.ExamID && existing.StudentID == sub.StudentID {
			return repositories.ErrDuplicate
		}
	}
	sub.ID = r.m.id()
	r.m.submissions[sub.ID] = *sub
	return nil
}

func (r memSubmissions) GetByExamAndStudent(_ context.Context, _ *gorm.DB, examID uint, studentID string) (*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.submissions {
		if s.ExamID == examID && s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memSubmissions) list(match func(models.Submission) bool) []*models.Submission {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Submission{}
	for _, s := range r.m.submissions {
		if match(s) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memSubmissions) ListByExam(_ context.Context, _ *gorm.DB, examID uint) ([]*models.Submission, error) {
	return r.list(func(s models.Submission) bool { return s.ExamID == examID }), nil
}

func (r memSubmissions) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	subs, _ := r.ListByExam(ctx, tx, examID)
	return int64(len(subs)), nil
}

func (r memSubmissions) ListByStudent(_ context.Context, _ *gorm.DB, email, studentID string) ([]*models.Submission, error) {
	out := r.list(func(s models.Submission) bool {
		return s.StudentEmail == models.NormalizeEmail(email) || (studentID != "" && s.StudentID == studentID)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

// ===== classes and users =====

type memClasses struct{ m *memStore }

func (r memClasses) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Class, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.classes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r memClasses) List(_ context.Context, _ *gorm.DB, teacherID *string) ([]*models.Class, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Class{}
	for _, c := range r.m.classes {
		if teacherID != nil && c.TeacherID != *teacherID {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memClasses) ListEnrollments(_ context.Context, _ *gorm.DB, email, userID string) ([]models.ClassStudent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.ClassStudent{}
	for _, students := range r.m.roster {
		for _, s := range students {
			if models.NormalizeEmail(s.Email) == models.NormalizeEmail(email) ||
				(userID != "" && s.UserID != nil && *s.UserID == userID) {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memClasses) GetRoster(_ context.Context, _ *gorm.DB, classID uint) ([]models.ClassStudent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.classes[classID]; !ok {
		return nil, repositories.ErrNotFound
	}
	out := make([]models.ClassStudent, len(r.m.roster[classID]))
	copy(out, r.m.roster[classID])
	return out, nil
}

func (r memClasses) IsEnrolled(_ context.Context, _ *gorm.DB, classID uint, email, userID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.roster[classID] {
		if models.NormalizeEmail(s.Email) == models.NormalizeEmail(email) {
			return true, nil
		}
		if userID != "" && s.UserID != nil && *s.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r memClasses) AttachUserID(_ context.Context, _ *gorm.DB, entryID uint, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for classID, students := range r.m.roster {
		for i := range students {
			if students[i].ID == entryID && students[i].UserID == nil {
				id := userID
				students[i].UserID = &id
				r.m.roster[classID] = students
			}
		}
	}
	return nil
}

type memUsers struct{ m *memStore }

func (r memUsers) GetByID(_ context.Context, _ *gorm.DB, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, _ *gorm.DB, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if models.NormalizeEmail(u.Email) == models.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}
