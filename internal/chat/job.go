package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one dispatched AI completion. The history snapshot is frozen at
// enqueue time so the worker reproduces the prompt context exactly as it was
// right after the user message was persisted, regardless of later traffic.
// The job id is also the correlation id: the worker's conditional
// queued->running transition makes duplicate deliveries harmless.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	ChatroomID uint64 `gorm:"index;not null"`
	UserID     uint64 `gorm:"index;not null"`

	Prompt  string `gorm:"type:text;not null"`
	History string `gorm:"type:text;not null"` // JSON-encoded []Turn

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// The ai message appended for this job (the reply, or the fallback)
	ResultMessageID *uint64 `gorm:"index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "jobs" }
