package events

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/google/uuid"
)

const (
	EventSource  = "exam-service"
	EventVersion = "1.0"
)

// EventType mirrors the audit vocabulary on the wire
type EventType string

const (
	EventExamCreated      = EventType(models.AuditExamCreated)
	EventExamPublished    = EventType(models.AuditExamPublished)
	EventSetsRegenerated  = EventType(models.AuditSetsRegenerated)
	EventExamEnded        = EventType(models.AuditExamEnded)
	EventReleaseToggled   = EventType(models.AuditReleaseToggled)
	EventExamDeleted      = EventType(models.AuditExamDeleted)
	EventExamUpdated      = EventType(models.AuditExamUpdated)
	EventExamScheduled    = EventType(models.AuditExamScheduled)
	EventSubmissionGraded = EventType(models.AuditSubmissionGraded)
	EventResultsExported  = EventType(models.AuditResultsExported)
)

// ExamEvent is the envelope for everything the service emits
type ExamEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewAuditEvent wraps an audit record. The record's own time is the event time.
func NewAuditEvent(record models.AuditRecord) *ExamEvent {
	ts := record.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ExamEvent{
		ID:        GenerateEventID(),
		Type:      EventType(record.EventType),
		Timestamp: ts,
		Source:    EventSource,
		Version:   EventVersion,
		Data:      record,
		Metadata: map[string]interface{}{
			"exam_id":  record.ExamID,
			"actor_id": record.ActorID,
		},
	}
}

// GenerateEventID returns a random UUID string
func GenerateEventID() string {
	return uuid.NewString()
}
