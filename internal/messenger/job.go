package messenger

import (
	"time"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one Messenger message waiting for an answer.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	PSID string `gorm:"type:varchar(64);index;not null"`
	Mid  string `gorm:"type:varchar(128)"`

	Question string `gorm:"type:text;not null"`

	// psid:mid, so a redelivered webhook never creates a second job
	IdempotencyKey *string `gorm:"type:varchar(200);uniqueIndex:uniq_messenger_job_idempo" json:"idempotency_key"`

	Status   JobStatus `gorm:"type:varchar(16);index;not null"`
	Attempts int       `gorm:"not null;default:0"`

	// Filled when succeeded
	Reply *string `gorm:"type:text"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "messenger_jobs" }

func IdempotencyKey(psid, mid string) *string {
	if mid == "" {
		return nil
	}
	k := psid + ":" + mid
	return &k
}
