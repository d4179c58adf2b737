package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ask-widget/internal/kv"
)

func newTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	return NewStore(mem), mem
}

func TestCreateSession_BecomesCurrent(t *testing.T) {
	s, mem := newTestStore(t)

	sess := s.CreateSession("acme")

	assert.True(t, strings.HasPrefix(sess.SessionID, "session_"))
	assert.Equal(t, "acme", sess.CompanyID)
	assert.True(t, strings.HasPrefix(sess.ExternalUserID, "user_"))
	assert.True(t, strings.HasPrefix(sess.Title, "Conversation du "))
	assert.Empty(t, sess.Messages)

	cur := s.GetCurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, sess.SessionID, cur.SessionID)

	raw, err := mem.Get(SessionsKey)
	require.NoError(t, err)
	var stored []ChatSession
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored, 1)
}

func TestCreateSession_Title(t *testing.T) {
	s, _ := newTestStore(t)
	at := time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local)
	s.now = func() time.Time { return at }

	sess := s.CreateSession("acme")
	assert.Equal(t, "Conversation du 07/03/2024 à 09:05:02", sess.Title)
}

func TestCreateSession_SharesUserID(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.CreateSession("acme")
	b := s.CreateSession("acme")
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, a.ExternalUserID, b.ExternalUserID)
}

func TestGetCurrentSession_StalePointer(t *testing.T) {
	s, mem := newTestStore(t)
	require.NoError(t, mem.Set(CurrentKey, "session_gone"))
	assert.Nil(t, s.GetCurrentSession())
}

func TestLoad_CorruptStorageReadsEmpty(t *testing.T) {
	s, mem := newTestStore(t)
	require.NoError(t, mem.Set(SessionsKey, "{not json"))
	assert.Empty(t, s.AllSessions())
	assert.Nil(t, s.GetSession("x"))
}

func TestAppendMessage_KeepsOrder(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("acme")

	for i := 0; i < 5; i++ {
		s.AppendMessage(sess.SessionID, NewMessage(fmt.Sprintf("m%d", i), i%2 == 0, ""))
	}

	got := s.GetSession(sess.SessionID)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 5)
	for i, m := range got.Messages {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Text)
	}
}

func TestAppendMessage_UnknownSessionIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	s.CreateSession("acme")

	s.AppendMessage("session_missing", NewMessage("hi", true, ""))

	for _, sess := range s.AllSessions() {
		assert.Empty(t, sess.Messages)
	}
}

func TestReturnedSessionIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("acme")
	s.AppendMessage(sess.SessionID, NewMessage("hi", true, ""))

	got := s.GetSession(sess.SessionID)
	got.Messages[0].Text = "changed"

	assert.Equal(t, "hi", s.GetSession(sess.SessionID).Messages[0].Text)
}

func TestRenameSession_MovesCurrentPointer(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("acme")
	s.AppendMessage(sess.SessionID, NewMessage("hi", true, ""))

	ok := s.RenameSession(sess.SessionID, "srv-42")
	require.True(t, ok)

	assert.Nil(t, s.GetSession(sess.SessionID))
	renamed := s.GetSession("srv-42")
	require.NotNil(t, renamed)
	assert.Len(t, renamed.Messages, 1)

	cur := s.GetCurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, "srv-42", cur.SessionID)
}

func TestRenameSession_LeavesOtherCurrent(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.CreateSession("acme")
	b := s.CreateSession("acme")

	require.True(t, s.RenameSession(a.SessionID, "srv-a"))

	cur := s.GetCurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, b.SessionID, cur.SessionID)
}

func TestRenameSession_ReplacesExistingTarget(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.CreateSession("acme")
	b := s.CreateSession("acme")

	require.True(t, s.RenameSession(b.SessionID, a.SessionID))

	all := s.AllSessions()
	require.Len(t, all, 1)
	assert.Equal(t, a.SessionID, all[0].SessionID)
}

func TestRenameSession_Noops(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.CreateSession("acme")
	assert.False(t, s.RenameSession(a.SessionID, a.SessionID))
	assert.False(t, s.RenameSession("session_missing", "x"))
	assert.False(t, s.RenameSession(a.SessionID, ""))
}

func TestUpdateFeedback_Toggles(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("acme")
	s.AppendMessage(sess.SessionID, NewMessage("q", true, ""))
	s.AppendMessage(sess.SessionID, NewMessage("a", false, "m-1"))

	assert.Equal(t, FeedbackLike, s.UpdateFeedback(sess.SessionID, 1, FeedbackLike))
	msg := s.GetSession(sess.SessionID).Messages[1]
	assert.Equal(t, FeedbackLike, msg.UserFeedback)
	assert.NotEmpty(t, msg.FeedbackTimestamp)

	assert.Equal(t, FeedbackDislike, s.UpdateFeedback(sess.SessionID, 1, FeedbackDislike))

	assert.Equal(t, FeedbackNone, s.UpdateFeedback(sess.SessionID, 1, FeedbackDislike))
	msg = s.GetSession(sess.SessionID).Messages[1]
	assert.Equal(t, FeedbackNone, msg.UserFeedback)
	assert.Empty(t, msg.FeedbackTimestamp)
}

func TestUpdateFeedback_OutOfRange(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("acme")
	s.AppendMessage(sess.SessionID, NewMessage("a", false, "m-1"))

	assert.Equal(t, FeedbackNone, s.UpdateFeedback(sess.SessionID, 3, FeedbackLike))
	assert.Equal(t, FeedbackNone, s.UpdateFeedback(sess.SessionID, -1, FeedbackLike))
	assert.Equal(t, FeedbackNone, s.GetSession(sess.SessionID).Messages[0].UserFeedback)
}

func TestDeleteSession_ClearsCurrent(t *testing.T) {
	s, mem := newTestStore(t)
	a := s.CreateSession("acme")
	b := s.CreateSession("acme")

	s.DeleteSession(b.SessionID)

	assert.Nil(t, s.GetCurrentSession())
	_, err := mem.Get(CurrentKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	all := s.AllSessions()
	require.Len(t, all, 1)
	assert.Equal(t, a.SessionID, all[0].SessionID)
}

func TestSessionsForCompany_NewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, company := range []string{"acme", "other", "acme", "acme"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		ids = append(ids, s.CreateSession(company).SessionID)
	}

	got := s.SessionsForCompany("acme")
	require.Len(t, got, 3)
	assert.Equal(t, ids[3], got[0].SessionID)
	assert.Equal(t, ids[2], got[1].SessionID)
	assert.Equal(t, ids[0], got[2].SessionID)
}

func TestPruneOldSessions_KeepsNewest(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 15; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		ids = append(ids, s.CreateSession("acme").SessionID)
	}
	require.True(t, s.SetCurrent(ids[0]))

	s.PruneOldSessions(0)

	all := s.AllSessions()
	require.Len(t, all, DefaultKeep)
	kept := map[string]bool{}
	for _, sess := range all {
		kept[sess.SessionID] = true
	}
	for i, id := range ids {
		assert.Equal(t, i >= 5, kept[id], "session %d", i)
	}
	assert.Nil(t, s.GetCurrentSession())

	s.PruneOldSessions(DefaultKeep)
	assert.Len(t, s.AllSessions(), DefaultKeep)
}

func TestSaveSession_Upserts(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("acme")
	sess.Title = "renamed"
	s.SaveSession(sess)

	s.SaveSession(&ChatSession{SessionID: "srv-1", CompanyID: "acme", CreatedAt: FormatTimestamp(time.Now())})

	assert.Equal(t, "renamed", s.GetSession(sess.SessionID).Title)
	assert.Len(t, s.AllSessions(), 2)
	assert.Equal(t, "srv-1", s.GetCurrentSession().SessionID)
}

func TestParseTimestamp(t *testing.T) {
	assert.False(t, ParseTimestamp("2024-01-01T10:00:00.123Z").IsZero())
	assert.False(t, ParseTimestamp("2024-01-01T10:00:00.123456").IsZero())
	assert.True(t, ParseTimestamp("yesterday").IsZero())
}
