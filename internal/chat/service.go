// Package chat is the conversation controller: it opens or resumes a
// session, sends questions one at a time and records feedback.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/history"
	"github.com/suPer8Hu/ask-widget/internal/lang"
	"github.com/suPer8Hu/ask-widget/internal/logx"
	"github.com/suPer8Hu/ask-widget/internal/relayclient"
	"github.com/suPer8Hu/ask-widget/internal/session"
	"github.com/suPer8Hu/ask-widget/internal/stream"
)

var (
	ErrEmptyQuestion = errors.New("chat: empty question")
	ErrNoSession     = errors.New("chat: no active session")
	ErrBusy          = errors.New("chat: an exchange is already in flight")
)

// View renders the conversation.
type View interface {
	stream.View
	PendingChanged(pending bool)
}

type FeedbackSender interface {
	SendFeedback(ctx context.Context, fb backend.FeedbackRequest) (relayclient.FeedbackResult, error)
}

type Service struct {
	store    *session.Store
	syncer   *history.Syncer
	consumer *stream.Consumer
	feedback FeedbackSender
	view     View

	mu        sync.Mutex
	companyID string
	current   string

	busy atomic.Bool
}

func NewService(store *session.Store, syncer *history.Syncer, consumer *stream.Consumer, feedback FeedbackSender, view View) *Service {
	if view == nil {
		view = nopView{}
	}
	return &Service{
		store:    store,
		syncer:   syncer,
		consumer: consumer,
		feedback: feedback,
		view:     view,
	}
}

type nopView struct{ stream.NopView }

func (nopView) PendingChanged(bool) {}

func (s *Service) setCurrent(id string) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

func (s *Service) state() (companyID, current string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companyID, s.current
}

// Open prunes old sessions, then resumes the current session when it belongs
// to companyID (refreshing it from the backend) or starts a new one.
func (s *Service) Open(ctx context.Context, companyID string) *session.ChatSession {
	s.store.PruneOldSessions(session.DefaultKeep)

	s.mu.Lock()
	s.companyID = companyID
	s.mu.Unlock()

	if cur := s.store.GetCurrentSession(); cur != nil && cur.CompanyID == companyID {
		s.setCurrent(cur.SessionID)
		if s.syncer != nil {
			s.syncer.Sync(ctx, cur.SessionID, companyID)
		}
		return s.store.GetSession(cur.SessionID)
	}

	sess := s.store.CreateSession(companyID)
	s.setCurrent(sess.SessionID)
	return sess
}

// Current returns the active session, nil before Open.
func (s *Service) Current() *session.ChatSession {
	_, id := s.state()
	if id == "" {
		return nil
	}
	return s.store.GetSession(id)
}

func (s *Service) Pending() bool {
	return s.busy.Load()
}

// Send records text as a user message and runs one exchange. Only one
// exchange may be in flight; a second call fails with ErrBusy.
func (s *Service) Send(ctx context.Context, text string) (stream.Result, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return stream.Result{}, ErrEmptyQuestion
	}
	companyID, current := s.state()
	if current == "" {
		return stream.Result{}, ErrNoSession
	}
	sess := s.store.GetSession(current)
	if sess == nil {
		return stream.Result{}, ErrNoSession
	}

	if !s.busy.CompareAndSwap(false, true) {
		return stream.Result{}, ErrBusy
	}
	s.view.PendingChanged(true)
	defer func() {
		s.busy.Store(false)
		s.view.PendingChanged(false)
	}()

	userMsg := session.NewMessage(question, true, uuid.NewString())
	s.store.AppendMessage(sess.SessionID, userMsg)
	s.view.MessageAppended(sess.SessionID, userMsg)

	language := lang.Classify(question)
	logx.Debugf("[chat] session=%s language=%s", sess.SessionID, language)

	res, err := s.consumer.Run(ctx, stream.Exchange{
		SessionID: sess.SessionID,
		Request: backend.AskRequest{
			Question:       question,
			CompanyID:      companyID,
			SessionID:      sess.SessionID,
			ExternalUserID: sess.ExternalUserID,
			Langue:         language.String(),
		},
	}, renameTracker{s: s})
	return res, err
}

type renameTracker struct {
	s *Service
}

func (r renameTracker) MessageAppended(sessionID string, msg session.Message) {
	r.s.view.MessageAppended(sessionID, msg)
}

func (r renameTracker) SessionRenamed(oldID, newID string) {
	r.s.mu.Lock()
	if r.s.current == oldID {
		r.s.current = newID
	}
	r.s.mu.Unlock()
	r.s.view.SessionRenamed(oldID, newID)
}

// Feedback toggles the rating of the message at index and, when a rating
// remains and the message has an id, submits it. Submission failures are
// logged only; the local rating stands.
func (s *Service) Feedback(ctx context.Context, index int, fb session.Feedback) (session.Feedback, error) {
	companyID, current := s.state()
	if current == "" {
		return session.FeedbackNone, ErrNoSession
	}
	sess := s.store.GetSession(current)
	if sess == nil {
		return session.FeedbackNone, ErrNoSession
	}
	if index < 0 || index >= len(sess.Messages) {
		return session.FeedbackNone, nil
	}
	msg := sess.Messages[index]

	result := s.store.UpdateFeedback(current, index, fb)
	if result == session.FeedbackNone || msg.MessageID == "" || s.feedback == nil {
		return result, nil
	}

	res, err := s.feedback.SendFeedback(ctx, backend.FeedbackRequest{
		SessionID: current,
		MessageID: msg.MessageID,
		Feedback:  string(result),
		CompanyID: companyID,
	})
	if err != nil {
		logx.Warnf("[chat] submit feedback session=%s message=%s failed: %v", current, msg.MessageID, err)
		return result, nil
	}
	if !res.BackendAvailable {
		logx.Infof("[chat] feedback for message=%s recorded locally only", msg.MessageID)
	}
	return result, nil
}

// NewSession starts and selects a fresh session for the open company.
func (s *Service) NewSession() *session.ChatSession {
	companyID, _ := s.state()
	sess := s.store.CreateSession(companyID)
	s.setCurrent(sess.SessionID)
	return sess
}

// SelectSession switches to a stored session of the open company and
// refreshes it from the backend.
func (s *Service) SelectSession(ctx context.Context, id string) (*session.ChatSession, error) {
	if s.busy.Load() {
		return nil, ErrBusy
	}
	companyID, _ := s.state()
	sess := s.store.GetSession(id)
	if sess == nil || sess.CompanyID != companyID {
		return nil, ErrNoSession
	}
	if !s.store.SetCurrent(id) {
		return nil, ErrNoSession
	}
	s.setCurrent(id)
	if s.syncer != nil {
		s.syncer.Sync(ctx, id, companyID)
	}
	return s.store.GetSession(id), nil
}

// DeleteSession removes a session; deleting the active one starts a new one.
func (s *Service) DeleteSession(id string) *session.ChatSession {
	_, current := s.state()
	s.store.DeleteSession(id)
	if id == current {
		return s.NewSession()
	}
	return s.Current()
}

// Sessions lists the open company's sessions, newest first.
func (s *Service) Sessions() []session.ChatSession {
	companyID, _ := s.state()
	return s.store.SessionsForCompany(companyID)
}
