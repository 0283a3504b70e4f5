package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"sync"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// SetGenerator partitions an exam pool into question sets and hands them
// out to a roster. It holds the only random source used for shuffling.
type SetGenerator struct {
	mu    sync.Mutex
	rng   *mrand.Rand
	clock Clock
}

// NewSetGenerator returns a generator. A nil rng seeds one from the runtime,
// a nil clock uses the wall clock.
func NewSetGenerator(rng *mrand.Rand, clock Clock) *SetGenerator {
	if rng == nil {
		rng = mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &SetGenerator{rng: rng, clock: clock}
}

// GenerateSets builds setCount ordered sets of perSet question ids.
//
// With shuffle off every set is the first perSet ids of the pool in pool
// order. With shuffle on the pool is permuted once and set s takes the
// perSet ids starting at s*perSet, wrapping around the end of the pool.
// Wrapping lets a small pool serve many sets; ids repeat across sets but
// never within one, since perSet <= len(pool).
func (g *SetGenerator) GenerateSets(pool []uint, setCount, perSet int, shuffle bool) ([][]uint, error) {
	if setCount < 1 || perSet < 1 {
		return nil, NewBusinessRuleError(ErrInvalidExamConfig, "set_layout",
			"set count and questions per set must be at least 1",
			map[string]interface{}{"set_count": setCount, "questions_per_set": perSet})
	}
	if len(pool) < perSet {
		return nil, NewBusinessRuleError(ErrInsufficientQuestions, "pool_size",
			fmt.Sprintf("pool has %d questions, each set needs %d", len(pool), perSet),
			map[string]interface{}{"pool_size": len(pool), "questions_per_set": perSet})
	}

	sets := make([][]uint, setCount)

	if !shuffle {
		for s := range sets {
			set := make([]uint, perSet)
			copy(set, pool[:perSet])
			sets[s] = set
		}
		return sets, nil
	}

	permuted := make([]uint, len(pool))
	copy(permuted, pool)
	g.shuffle(len(permuted), func(i, j int) { permuted[i], permuted[j] = permuted[j], permuted[i] })

	for s := range sets {
		set := make([]uint, perSet)
		for j := range set {
			set[j] = permuted[(s*perSet+j)%len(permuted)]
		}
		sets[s] = set
	}
	return sets, nil
}

// AssignRoundRobin returns the zero-based set index for every roster position.
func AssignRoundRobin(rosterSize, setCount int) []int {
	if setCount < 1 || rosterSize < 1 {
		return nil
	}
	out := make([]int, rosterSize)
	for i := range out {
		out[i] = i % setCount
	}
	return out
}

// Build generates the sets for exam and assigns one to every roster entry.
// The whole roster is checked before anything is built, so a bad entry
// yields no sets at all.
func (g *SetGenerator) Build(exam *models.Exam, roster []models.ClassStudent) ([]*models.QuestionSet, error) {
	if len(roster) == 0 {
		return nil, NewBusinessRuleError(ErrEmptyRoster, "roster_size", "no students to assign",
			map[string]interface{}{"exam_id": exam.ID})
	}

	seen := make(map[string]int, len(roster))
	for i, student := range roster {
		email := models.NormalizeEmail(student.Email)
		if email == "" {
			return nil, NewBusinessRuleError(ErrInvalidRosterEntry, "roster_email",
				fmt.Sprintf("roster entry %d has no email", i),
				map[string]interface{}{"index": i, "name": student.Name})
		}
		if first, dup := seen[email]; dup {
			return nil, NewBusinessRuleError(ErrInvalidRosterEntry, "roster_email",
				fmt.Sprintf("roster entries %d and %d share an email", first, i),
				map[string]interface{}{"index": i, "email": email})
		}
		seen[email] = i
	}

	sets, err := g.GenerateSets(exam.Pool(), exam.SetCount, exam.QuestionsPerSet, exam.ShuffleQuestions)
	if err != nil {
		return nil, err
	}

	assignment := AssignRoundRobin(len(roster), len(sets))
	out := make([]*models.QuestionSet, len(roster))
	for i, student := range roster {
		idx := assignment[i]
		link, err := g.accessLink(exam.ID, idx+1)
		if err != nil {
			return nil, err
		}

		items := make([]models.QuestionSetItem, len(sets[idx]))
		for j, questionID := range sets[idx] {
			items[j] = models.QuestionSetItem{QuestionID: questionID, Order: j + 1}
		}

		out[i] = &models.QuestionSet{
			ExamID:       exam.ID,
			SetNumber:    idx + 1,
			StudentEmail: models.NormalizeEmail(student.Email),
			StudentID:    nonEmpty(student.UserID),
			AccessLink:   link,
			Items:        items,
		}
	}
	return out, nil
}

// ShuffleOptions returns a permuted copy of options.
func (g *SetGenerator) ShuffleOptions(options []string) []string {
	out := make([]string, len(options))
	copy(out, options)
	g.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (g *SetGenerator) shuffle(n int, swap func(i, j int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(n, swap)
}

// accessLink renders {examID}-set-{n}-{unix ms}-{16 hex chars}.
func (g *SetGenerator) accessLink(examID uint, setNumber int) (string, error) {
	var entropy [8]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		return "", fmt.Errorf("failed to generate access link: %w", err)
	}
	return fmt.Sprintf("%d-set-%d-%d-%s", examID, setNumber, g.clock.Now().UnixMilli(), hex.EncodeToString(entropy[:])), nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
