// Package session keeps the widget's conversation sessions in a key-value
// storage port, the way the browser keeps them in local storage.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/suPer8Hu/ask-widget/internal/common"
	"github.com/suPer8Hu/ask-widget/internal/identity"
	"github.com/suPer8Hu/ask-widget/internal/kv"
	"github.com/suPer8Hu/ask-widget/internal/logx"
)

const (
	SessionsKey = "chatbot_sessions"
	CurrentKey  = "chatbot_current_session"

	// DefaultKeep is how many sessions PruneOldSessions retains by default.
	DefaultKeep = 10
)

// Store never returns storage errors: a corrupt or unreachable storage reads
// as "no sessions" and failed writes are logged.
type Store struct {
	mu    sync.Mutex
	kv    kv.Storage
	ids   *identity.Generator
	now   func() time.Time
	newID func() (string, error)
}

func NewStore(storage kv.Storage) *Store {
	return &Store{
		kv:    storage,
		ids:   identity.NewGenerator(storage),
		now:   time.Now,
		newID: common.NewULID,
	}
}

func (s *Store) load() []ChatSession {
	raw, err := s.kv.Get(SessionsKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			logx.Errorf("[session] read %s failed: %v", SessionsKey, err)
		}
		return []ChatSession{}
	}
	var sessions []ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		logx.Errorf("[session] decode %s failed: %v", SessionsKey, err)
		return []ChatSession{}
	}
	return sessions
}

func encode(sessions []ChatSession) (string, error) {
	if sessions == nil {
		sessions = []ChatSession{}
	}
	b, err := json.Marshal(sessions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) save(sessions []ChatSession) bool {
	raw, err := encode(sessions)
	if err != nil {
		logx.Errorf("[session] encode sessions failed: %v", err)
		return false
	}
	if err := s.kv.Set(SessionsKey, raw); err != nil {
		logx.Errorf("[session] write %s failed: %v", SessionsKey, err)
		return false
	}
	return true
}

// saveWithCurrent writes the sessions and the current pointer in one batch.
// An empty current removes the pointer.
func (s *Store) saveWithCurrent(sessions []ChatSession, current string) bool {
	raw, err := encode(sessions)
	if err != nil {
		logx.Errorf("[session] encode sessions failed: %v", err)
		return false
	}
	values := map[string]string{SessionsKey: raw}
	var remove []string
	if current != "" {
		values[CurrentKey] = current
	} else {
		remove = []string{CurrentKey}
	}
	if err := kv.SetMany(s.kv, values, remove); err != nil {
		logx.Errorf("[session] write sessions and current pointer failed: %v", err)
		return false
	}
	return true
}

func (s *Store) currentID() string {
	id, err := s.kv.Get(CurrentKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			logx.Errorf("[session] read %s failed: %v", CurrentKey, err)
		}
		return ""
	}
	return id
}

func indexOf(sessions []ChatSession, id string) int {
	for i := range sessions {
		if sessions[i].SessionID == id {
			return i
		}
	}
	return -1
}

func (s *Store) title(t time.Time) string {
	local := t.Local()
	return fmt.Sprintf("Conversation du %s à %s", local.Format("02/01/2006"), local.Format("15:04:05"))
}

// CreateSession creates, persists and selects a new empty session.
func (s *Store) CreateSession(companyID string) *ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id, err := s.newID()
	if err != nil {
		logx.Errorf("[session] generate session id failed: %v", err)
		id = fmt.Sprintf("%d", now.UnixNano())
	}

	sess := ChatSession{
		SessionID:      "session_" + id,
		CompanyID:      companyID,
		ExternalUserID: s.ids.GetOrCreateUserID(),
		Title:          s.title(now),
		CreatedAt:      FormatTimestamp(now),
		Messages:       []Message{},
	}

	sessions := s.load()
	sessions = append(sessions, sess)
	s.saveWithCurrent(sessions, sess.SessionID)
	return sess.clone()
}

// SaveSession upserts sess and marks it current.
func (s *Store) SaveSession(sess *ChatSession) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	c := sess.clone()
	if i := indexOf(sessions, sess.SessionID); i >= 0 {
		sessions[i] = *c
	} else {
		sessions = append(sessions, *c)
	}
	s.saveWithCurrent(sessions, sess.SessionID)
}

// AllSessions returns sessions in storage order.
func (s *Store) AllSessions() []ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SessionsForCompany returns the company's sessions, newest first.
func (s *Store) SessionsForCompany(companyID string) []ChatSession {
	s.mu.Lock()
	all := s.load()
	s.mu.Unlock()

	out := make([]ChatSession, 0, len(all))
	for _, sess := range all {
		if sess.CompanyID == companyID {
			out = append(out, sess)
		}
	}
	sortNewestFirst(out)
	return out
}

func (s *Store) GetSession(id string) *ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.load()
	if i := indexOf(sessions, id); i >= 0 {
		return sessions[i].clone()
	}
	return nil
}

// GetCurrentSession returns nil when no pointer is set or it is stale.
func (s *Store) GetCurrentSession() *ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.currentID()
	if id == "" {
		return nil
	}
	sessions := s.load()
	if i := indexOf(sessions, id); i >= 0 {
		return sessions[i].clone()
	}
	return nil
}

// SetCurrent points the current-session pointer at an existing session.
func (s *Store) SetCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.load(), id) < 0 {
		logx.Warnf("[session] set current: session %s not found", id)
		return false
	}
	if err := s.kv.Set(CurrentKey, id); err != nil {
		logx.Errorf("[session] write %s failed: %v", CurrentKey, err)
		return false
	}
	return true
}

// AppendMessage adds msg at the end of the session's message list.
func (s *Store) AppendMessage(sessionID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	i := indexOf(sessions, sessionID)
	if i < 0 {
		logx.Warnf("[session] append message: session %s not found", sessionID)
		return
	}
	sessions[i].Messages = append(sessions[i].Messages, msg)
	s.save(sessions)
}

// ReplaceMessages swaps the whole message list of a session.
func (s *Store) ReplaceMessages(sessionID string, msgs []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	i := indexOf(sessions, sessionID)
	if i < 0 {
		logx.Warnf("[session] replace messages: session %s not found", sessionID)
		return false
	}
	sessions[i].Messages = append([]Message{}, msgs...)
	return s.save(sessions)
}

// RenameSession moves a session to newID, repointing the current pointer when
// it referenced oldID. Both keys are written in one batch. Another entry
// already stored under newID is replaced.
func (s *Store) RenameSession(oldID, newID string) bool {
	if oldID == newID || newID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	i := indexOf(sessions, oldID)
	if i < 0 {
		logx.Warnf("[session] rename: session %s not found", oldID)
		return false
	}
	if j := indexOf(sessions, newID); j >= 0 {
		sessions = append(sessions[:j], sessions[j+1:]...)
		if j < i {
			i--
		}
	}
	sessions[i].SessionID = newID

	current := s.currentID()
	if current == oldID {
		current = newID
	}
	return s.saveWithCurrent(sessions, current)
}

// UpdateFeedback toggles the feedback of the message at index: applying the
// value already recorded clears it, FeedbackNone always clears. It returns
// the feedback now recorded. Unknown sessions and out-of-range indexes are
// left untouched.
func (s *Store) UpdateFeedback(sessionID string, index int, fb Feedback) Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	i := indexOf(sessions, sessionID)
	if i < 0 {
		logx.Warnf("[session] update feedback: session %s not found", sessionID)
		return FeedbackNone
	}
	msgs := sessions[i].Messages
	if index < 0 || index >= len(msgs) {
		return FeedbackNone
	}

	next := fb
	if !fb.Valid() || msgs[index].UserFeedback == fb {
		next = FeedbackNone
	}
	msgs[index].UserFeedback = next
	if next == FeedbackNone {
		msgs[index].FeedbackTimestamp = ""
	} else {
		msgs[index].FeedbackTimestamp = FormatTimestamp(s.now())
	}
	s.save(sessions)
	return next
}

// DeleteSession removes the session and clears the current pointer if it
// referenced it.
func (s *Store) DeleteSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	filtered := sessions[:0]
	for _, sess := range sessions {
		if sess.SessionID != sessionID {
			filtered = append(filtered, sess)
		}
	}

	current := s.currentID()
	if current == sessionID {
		current = ""
	}
	s.saveWithCurrent(filtered, current)
}

// PruneOldSessions keeps the keep most recently created sessions.
func (s *Store) PruneOldSessions(keep int) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.load()
	if len(sessions) <= keep {
		return
	}
	sortNewestFirst(sessions)
	kept := sessions[:keep]

	current := s.currentID()
	if current != "" && indexOf(kept, current) < 0 {
		current = ""
	}
	s.saveWithCurrent(kept, current)
}

func sortNewestFirst(sessions []ChatSession) {
	sort.SliceStable(sessions, func(a, b int) bool {
		return ParseTimestamp(sessions[a].CreatedAt).After(ParseTimestamp(sessions[b].CreatedAt))
	})
}
