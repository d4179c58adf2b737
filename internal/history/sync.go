// Package history reconciles locally stored sessions with the backend's
// canonical message history.
package history

import (
	"context"

	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/logx"
	"github.com/suPer8Hu/ask-widget/internal/session"
)

// Fetcher returns a session's messages already mapped to the local layout.
type Fetcher interface {
	SessionMessages(ctx context.Context, sessionID, companyID string) ([]session.Message, error)
}

// BackendFetcher reads history straight from the backend, skipping the relay.
type BackendFetcher struct {
	Client *backend.Client
}

// SessionMessages ignores companyID; the backend scopes history by session.
func (f BackendFetcher) SessionMessages(ctx context.Context, sessionID, _ string) ([]session.Message, error) {
	msgs, err := f.Client.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return MapBackendMessages(msgs), nil
}

// MapBackendMessages converts backend history entries; role "user" marks a
// user message, every other role is the assistant.
func MapBackendMessages(in []backend.HistoryMessage) []session.Message {
	out := make([]session.Message, 0, len(in))
	for _, m := range in {
		out = append(out, session.Message{
			Text:      m.Content,
			IsUser:    m.Role == "user",
			Timestamp: m.CreatedAt,
		})
	}
	return out
}

type Syncer struct {
	store   *session.Store
	fetcher Fetcher
}

func NewSyncer(store *session.Store, fetcher Fetcher) *Syncer {
	return &Syncer{store: store, fetcher: fetcher}
}

// Sync replaces the local messages of sessionID with the fetched history when
// the backend returns at least one message. Failures are logged and leave
// the local session untouched. It reports whether a replacement happened.
func (s *Syncer) Sync(ctx context.Context, sessionID, companyID string) bool {
	msgs, err := s.fetcher.SessionMessages(ctx, sessionID, companyID)
	if err != nil {
		logx.Warnf("[history] sync session=%s company=%s failed: %v", sessionID, companyID, err)
		return false
	}
	if len(msgs) == 0 {
		logx.Debugf("[history] session=%s has no backend history", sessionID)
		return false
	}
	return s.store.ReplaceMessages(sessionID, msgs)
}
