package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

// Clock is the source of "now" for every time gate.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// RosterProvider lists the students enrolled in a class.
type RosterProvider interface {
	// GetRoster may serve a cached copy; use it for read-only views.
	GetRoster(ctx context.Context, classID uint) ([]models.ClassStudent, error)
	// LoadRoster always reads the store and refreshes the cached copy.
	LoadRoster(ctx context.Context, classID uint) ([]models.ClassStudent, error)
	IsEnrolled(ctx context.Context, classID uint, email, userID string) (bool, error)
}

// UserDirectory resolves accounts by email or id.
type UserDirectory interface {
	ResolveByEmail(ctx context.Context, email string) (*models.User, error)
	ResolveByID(ctx context.Context, id string) (*models.User, error)
}

// AuditSink receives "what happened" records. Record never fails the caller.
type AuditSink interface {
	Record(ctx context.Context, record models.AuditRecord)
}

// ===== ROSTER =====

type cachedRoster struct {
	repo   repositories.ClassRepository
	cache  cache.CacheService
	ttl    time.Duration
	logger *slog.Logger
}

// NewRosterProvider reads rosters from the class repository through a
// read-through cache.
func NewRosterProvider(repo repositories.ClassRepository, c cache.CacheService, ttl time.Duration, logger *slog.Logger) RosterProvider {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &cachedRoster{repo: repo, cache: c, ttl: ttl, logger: logger}
}

func rosterCacheKey(classID uint) string {
	return fmt.Sprintf("roster:%d", classID)
}

func (r *cachedRoster) GetRoster(ctx context.Context, classID uint) ([]models.ClassStudent, error) {
	var roster []models.ClassStudent
	err := r.cache.Get(ctx, rosterCacheKey(classID), &roster)
	if err == nil {
		return roster, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("Roster cache read failed", "class_id", classID, "error", err)
	}

	roster, err = r.fromStore(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, rosterCacheKey(classID), roster, r.ttl); err != nil {
		r.logger.Warn("Roster cache write failed", "class_id", classID, "error", err)
	}
	return roster, nil
}

// LoadRoster is the read used before generating sets. When the cached copy
// cannot be replaced it is dropped, so no reader keeps the old roster.
func (r *cachedRoster) LoadRoster(ctx context.Context, classID uint) ([]models.ClassStudent, error) {
	roster, err := r.fromStore(ctx, classID)
	if err != nil {
		return nil, err
	}
	key := rosterCacheKey(classID)
	if err := r.cache.Set(ctx, key, roster, r.ttl); err != nil {
		r.logger.Warn("Roster cache refresh failed", "class_id", classID, "error", err)
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Error("Failed to drop stale roster entry", "class_id", classID, "error", err)
		}
	}
	return roster, nil
}

func (r *cachedRoster) fromStore(ctx context.Context, classID uint) ([]models.ClassStudent, error) {
	roster, err := r.repo.GetRoster(ctx, nil, classID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return roster, nil
}

// IsEnrolled always goes to the store so a removal takes effect immediately.
func (r *cachedRoster) IsEnrolled(ctx context.Context, classID uint, email, userID string) (bool, error) {
	ok, err := r.repo.IsEnrolled(ctx, nil, classID, email, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return ok, nil
}

// ===== USERS =====

type repoUserDirectory struct {
	repo repositories.UserRepository
}

func NewUserDirectory(repo repositories.UserRepository) UserDirectory {
	return &repoUserDirectory{repo: repo}
}

func (d *repoUserDirectory) ResolveByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := d.repo.GetByEmail(ctx, nil, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user, nil
}

func (d *repoUserDirectory) ResolveByID(ctx context.Context, id string) (*models.User, error) {
	user, err := d.repo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user, nil
}

// ===== AUDIT =====

type eventAuditSink struct {
	publisher events.EventPublisher
	logger    *slog.Logger
}

// NewEventAuditSink publishes audit records as exam events. Publish failures
// are logged and dropped.
func NewEventAuditSink(publisher events.EventPublisher, logger *slog.Logger) AuditSink {
	return &eventAuditSink{publisher: publisher, logger: logger}
}

func (s *eventAuditSink) Record(ctx context.Context, record models.AuditRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(context.WithoutCancel(ctx), events.NewAuditEvent(record)); err != nil {
		s.logger.Warn("Failed to publish audit record",
			"event_type", record.EventType,
			"exam_id", record.ExamID,
			"error", err)
	}
}

type discardAuditSink struct{}

func (discardAuditSink) Record(context.Context, models.AuditRecord) {}
