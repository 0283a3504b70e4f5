package models

import "time"

type AuditEventType string

const (
	AuditExamCreated      AuditEventType = "exam.created"
	AuditExamPublished    AuditEventType = "exam.published"
	AuditSetsRegenerated  AuditEventType = "exam.sets_regenerated"
	AuditExamEnded        AuditEventType = "exam.ended"
	AuditReleaseToggled   AuditEventType = "exam.release_toggled"
	AuditExamDeleted      AuditEventType = "exam.deleted"
	AuditExamUpdated      AuditEventType = "exam.updated"
	AuditExamScheduled    AuditEventType = "exam.scheduled"
	AuditSubmissionGraded AuditEventType = "submission.graded"
	AuditResultsExported  AuditEventType = "exam.results_exported"
)

// AuditRecord is what the audit sink receives. It is never persisted here.
type AuditRecord struct {
	EventType  AuditEventType         `json:"event_type"`
	ActorID    string                 `json:"actor_id"`
	ActorEmail string                 `json:"actor_email"`
	ExamID     uint                   `json:"exam_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
