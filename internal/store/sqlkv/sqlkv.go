// Package sqlkv implements the kv storage port on a gorm table.
package sqlkv

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/ask-widget/internal/kv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Entry struct {
	Key       string    `gorm:"primaryKey;type:varchar(191)"`
	Value     string    `gorm:"type:longtext;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

// Store is a kv.Storage scoped to one namespace (a "browser profile").
type Store struct {
	db        *gorm.DB
	namespace string
	timeout   time.Duration
}

func New(db *gorm.DB, namespace string) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Store{db: db, namespace: namespace, timeout: 5 * time.Second}, nil
}

func (s *Store) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Store) Get(key string) (string, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	var e Entry
	err := s.db.WithContext(ctx).First(&e, "`key` = ?", s.key(key)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return upsert(s.db.WithContext(ctx), s.key(key), value)
}

func (s *Store) Remove(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.db.WithContext(ctx).Delete(&Entry{}, "`key` = ?", s.key(key)).Error
}

// SetMany applies all writes in one transaction.
func (s *Store) SetMany(values map[string]string, remove []string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range values {
			if err := upsert(tx, s.key(k), v); err != nil {
				return err
			}
		}
		for _, k := range remove {
			if err := tx.Delete(&Entry{}, "`key` = ?", s.key(k)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(tx *gorm.DB, key, value string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: value, UpdatedAt: time.Now()}).Error
}
