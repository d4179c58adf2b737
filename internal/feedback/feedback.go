// Package feedback keeps the relay's log of message ratings.
package feedback

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Record is one rating as received by the relay.
type Record struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID        string    `gorm:"type:varchar(128);index:idx_feedback_session_message,priority:1;not null" json:"session_id"`
	MessageID        string    `gorm:"type:varchar(128);index:idx_feedback_session_message,priority:2;not null" json:"message_id"`
	CompanyID        string    `gorm:"type:varchar(64);index;not null" json:"company_id"`
	Feedback         string    `gorm:"type:varchar(16);not null" json:"feedback"`
	BackendAvailable bool      `gorm:"not null" json:"backend_available"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Record) TableName() string { return "message_feedback" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

func (r *Repo) Insert(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListBySession returns a session's ratings, oldest first.
func (r *Repo) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	var out []Record
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the most recent rating of a message.
func (r *Repo) Latest(ctx context.Context, sessionID, messageID string) (*Record, error) {
	var rec Record
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND message_id = ?", sessionID, messageID).
		Order("id DESC").
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountUndelivered counts ratings the backend never acknowledged.
func (r *Repo) CountUndelivered(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Record{}).Where("backend_available = ?", false).Count(&n).Error
	return n, err
}
