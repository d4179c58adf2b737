// Package identity hands out the stable per-profile external user id.
package identity

import (
	"errors"
	"strings"

	"github.com/suPer8Hu/ask-widget/internal/common"
	"github.com/suPer8Hu/ask-widget/internal/kv"
	"github.com/suPer8Hu/ask-widget/internal/logx"
)

const StorageKey = "chatbot_external_user_id"

type Generator struct {
	store kv.Storage
	newID func() (string, error)
}

func NewGenerator(store kv.Storage) *Generator {
	return &Generator{store: store, newID: common.NewULID}
}

// GetOrCreateUserID returns the persisted id, creating "user_<ULID>" on first
// use. If the id cannot be persisted it is still returned.
func (g *Generator) GetOrCreateUserID() string {
	stored, err := g.store.Get(StorageKey)
	if err == nil && strings.TrimSpace(stored) != "" {
		return stored
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		logx.Warnf("[identity] read %s failed: %v", StorageKey, err)
	}

	id, err := g.newID()
	if err != nil {
		// entropy failure; fall back to a timestamp-only id
		logx.Errorf("[identity] generate id failed: %v", err)
		id = common.MustULID()
	}
	userID := "user_" + id

	if err := g.store.Set(StorageKey, userID); err != nil {
		logx.Errorf("[identity] persist %s failed: %v", StorageKey, err)
	}
	return userID
}
