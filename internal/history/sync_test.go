package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/kv"
	"github.com/suPer8Hu/ask-widget/internal/session"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) SessionMessages(ctx context.Context, sessionID, companyID string) ([]session.Message, error) {
	args := m.Called(sessionID, companyID)
	msgs, _ := args.Get(0).([]session.Message)
	return msgs, args.Error(1)
}

func seeded(t *testing.T) (*session.Store, string) {
	t.Helper()
	store := session.NewStore(kv.NewMemory())
	sess := store.CreateSession("acme")
	store.AppendMessage(sess.SessionID, session.NewMessage("local", true, ""))
	return store, sess.SessionID
}

func TestSync_ReplacesWhenNonEmpty(t *testing.T) {
	store, id := seeded(t)
	f := new(mockFetcher)
	f.On("SessionMessages", id, "acme").Return([]session.Message{
		{Text: "q", IsUser: true, Timestamp: "t1"},
		{Text: "a", IsUser: false, Timestamp: "t2"},
	}, nil)

	assert.True(t, NewSyncer(store, f).Sync(context.Background(), id, "acme"))

	got := store.GetSession(id).Messages
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[1].Text)
	f.AssertExpectations(t)
}

func TestSync_EmptyHistoryLeavesLocal(t *testing.T) {
	store, id := seeded(t)
	f := new(mockFetcher)
	f.On("SessionMessages", id, "acme").Return([]session.Message{}, nil)

	assert.False(t, NewSyncer(store, f).Sync(context.Background(), id, "acme"))
	assert.Equal(t, "local", store.GetSession(id).Messages[0].Text)
}

func TestSync_FetchErrorLeavesLocal(t *testing.T) {
	store, id := seeded(t)
	f := new(mockFetcher)
	f.On("SessionMessages", id, "acme").Return(nil, errors.New("connection refused"))

	assert.False(t, NewSyncer(store, f).Sync(context.Background(), id, "acme"))
	assert.Len(t, store.GetSession(id).Messages, 1)
}

func TestMapBackendMessages(t *testing.T) {
	out := MapBackendMessages([]backend.HistoryMessage{
		{Content: "q", Role: "user", CreatedAt: "2024-01-01T10:00:00"},
		{Content: "a", Role: "assistant", CreatedAt: "2024-01-01T10:00:01"},
		{Content: "s", Role: "system", CreatedAt: "2024-01-01T10:00:02"},
	})
	require.Len(t, out, 3)
	assert.True(t, out[0].IsUser)
	assert.False(t, out[1].IsUser)
	assert.False(t, out[2].IsUser)
	assert.Equal(t, "2024-01-01T10:00:00", out[0].Timestamp)
}
