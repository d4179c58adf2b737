// Package stream drives one question/answer exchange: it reads the relay's
// event stream and records each event in the session store as it arrives.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/logx"
	"github.com/suPer8Hu/ask-widget/internal/session"
)

// TransportFailureText is shown when the exchange itself fails.
const TransportFailureText = "Désolé, une erreur s'est produite lors de la communication avec le serveur."

// Asker opens an exchange and returns the event stream body.
type Asker interface {
	Ask(ctx context.Context, req backend.AskRequest) (io.ReadCloser, error)
}

// View observes the exchange, in the order events are parsed.
type View interface {
	MessageAppended(sessionID string, msg session.Message)
	SessionRenamed(oldID, newID string)
}

type NopView struct{}

func (NopView) MessageAppended(string, session.Message) {}
func (NopView) SessionRenamed(string, string)           {}

type Exchange struct {
	SessionID string
	Request   backend.AskRequest
}

type Result struct {
	// SessionID is the session id after the exchange, renamed or not.
	SessionID string
	Appended  []session.Message
	Answers   int
	Errors    int
	Malformed int
}

type Consumer struct {
	store     *session.Store
	asker     Asker
	chunkSize int
	newID     func() string
}

func NewConsumer(store *session.Store, asker Asker) *Consumer {
	return &Consumer{
		store:     store,
		asker:     asker,
		chunkSize: 4096,
		newID:     uuid.NewString,
	}
}

type run struct {
	c    *Consumer
	view View
	res  Result
}

func (r *run) appendMessage(msg session.Message) {
	r.c.store.AppendMessage(r.res.SessionID, msg)
	r.res.Appended = append(r.res.Appended, msg)
	r.view.MessageAppended(r.res.SessionID, msg)
}

func (r *run) handle(ev Event) {
	switch e := ev.(type) {
	case Heartbeat, Ignored:
	case Error:
		logx.Warnf("[stream] backend error session=%s: %s", r.res.SessionID, e.Message)
		r.res.Errors++
		r.appendMessage(session.NewMessage("Erreur: "+e.Message, false, ""))
	case Answer:
		r.res.Answers++
		r.appendMessage(session.NewMessage(e.Text, false, r.c.newID()))
		if e.SessionID != "" && e.SessionID != r.res.SessionID {
			old := r.res.SessionID
			if r.c.store.RenameSession(old, e.SessionID) {
				r.res.SessionID = e.SessionID
				r.view.SessionRenamed(old, e.SessionID)
			}
		}
	}
}

// Run performs the exchange. The body is closed on every path. A transport
// failure, including a non-2xx answer, appends an apology message and is
// returned wrapped; cancellation of ctx stops reading without one.
func (c *Consumer) Run(ctx context.Context, ex Exchange, view View) (Result, error) {
	if view == nil {
		view = NopView{}
	}
	r := &run{c: c, view: view, res: Result{SessionID: ex.SessionID}}

	body, err := c.asker.Ask(ctx, ex.Request)
	if err != nil {
		if ctx.Err() != nil {
			return r.res, ctx.Err()
		}
		logx.Errorf("[stream] ask session=%s failed: %v", ex.SessionID, err)
		r.appendMessage(session.NewMessage(TransportFailureText, false, ""))
		return r.res, fmt.Errorf("stream: ask: %w", err)
	}
	defer body.Close()

	// a blocked Read must not outlive a cancelled exchange
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	var lines LineBuffer
	buf := make([]byte, c.chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, line := range lines.Write(buf[:n]) {
				ev, ok, perr := ParseLine(line)
				if perr != nil {
					r.res.Malformed++
					logx.Warnf("[stream] skip line: %v", perr)
					continue
				}
				if ok {
					r.handle(ev)
				}
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			if p := lines.Pending(); p != "" {
				logx.Debugf("[stream] discard incomplete line %q", p)
			}
			return r.res, nil
		}
		if ctx.Err() != nil {
			return r.res, ctx.Err()
		}
		logx.Errorf("[stream] read session=%s failed: %v", r.res.SessionID, readErr)
		r.appendMessage(session.NewMessage(TransportFailureText, false, ""))
		return r.res, fmt.Errorf("stream: read: %w", readErr)
	}
}
