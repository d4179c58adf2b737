package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/suPer8Hu/ask-widget/internal/chat"
	"github.com/suPer8Hu/ask-widget/internal/session"
	"github.com/suPer8Hu/ask-widget/internal/stream"
)

// Controller is the part of chat.Service the REPL drives.
type Controller interface {
	Current() *session.ChatSession
	Send(ctx context.Context, text string) (stream.Result, error)
	Feedback(ctx context.Context, index int, fb session.Feedback) (session.Feedback, error)
	NewSession() *session.ChatSession
	SelectSession(ctx context.Context, id string) (*session.ChatSession, error)
	DeleteSession(id string) *session.ChatSession
	Sessions() []session.ChatSession
}

const helpText = `/new            nouvelle conversation
/list           conversations enregistrées
/use N          reprendre la conversation N
/delete [N]     supprimer la conversation N (ou la conversation courante)
/history        réafficher la conversation courante
/like [N]       aimer le message N (par défaut la dernière réponse)
/dislike [N]    ne pas aimer le message N
/quit           quitter`

type REPL struct {
	ctrl Controller
	view *View
}

func NewREPL(ctrl Controller, view *View) *REPL {
	return &REPL{ctrl: ctrl, view: view}
}

// Run reads lines from in until EOF, /quit or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	if cur := r.ctrl.Current(); cur != nil {
		r.view.Transcript(cur)
	}
	r.view.Notice("/help pour la liste des commandes")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := r.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// Handle runs one input line and reports whether the REPL should stop.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.view.Notice(helpText)
	case "/new":
		sess := r.ctrl.NewSession()
		r.view.Notice("nouvelle conversation: " + sess.Title)
	case "/list":
		r.list()
	case "/use":
		r.use(ctx, args)
	case "/delete":
		r.delete(args)
	case "/history":
		if cur := r.ctrl.Current(); cur != nil {
			r.view.Transcript(cur)
		}
	case "/like":
		r.rate(ctx, args, session.FeedbackLike)
	case "/dislike":
		r.rate(ctx, args, session.FeedbackDislike)
	default:
		r.view.Error("commande inconnue: " + cmd)
	}
	return false
}

func (r *REPL) send(ctx context.Context, text string) {
	res, err := r.ctrl.Send(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBusy):
		r.view.Error("une réponse est déjà en cours")
		return
	case errors.Is(err, context.Canceled):
		return
	default:
		// the apology is already part of the conversation
		if len(res.Appended) == 0 {
			r.view.Error(err.Error())
		}
		return
	}
	if res.Malformed > 0 {
		r.view.Notice(fmt.Sprintf("%d ligne(s) illisible(s) ignorée(s)", res.Malformed))
	}
}

func (r *REPL) list() {
	sessions := r.ctrl.Sessions()
	if len(sessions) == 0 {
		r.view.Notice("aucune conversation")
		return
	}
	var current string
	if cur := r.ctrl.Current(); cur != nil {
		current = cur.SessionID
	}
	var b strings.Builder
	for i, s := range sessions {
		marker := " "
		if s.SessionID == current {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %d. %s (%d messages)\n", marker, i+1, s.Title, len(s.Messages))
	}
	r.view.Notice(strings.TrimRight(b.String(), "\n"))
}

// pick resolves a 1-based position in the session list.
func (r *REPL) pick(args []string) (*session.ChatSession, bool) {
	if len(args) == 0 {
		return nil, false
	}
	n, err := strconv.Atoi(args[0])
	sessions := r.ctrl.Sessions()
	if err != nil || n < 1 || n > len(sessions) {
		r.view.Error("numéro de conversation invalide: " + args[0])
		return nil, false
	}
	return &sessions[n-1], true
}

func (r *REPL) use(ctx context.Context, args []string) {
	target, ok := r.pick(args)
	if !ok {
		if len(args) == 0 {
			r.view.Error("usage: /use N")
		}
		return
	}
	sess, err := r.ctrl.SelectSession(ctx, target.SessionID)
	if err != nil {
		r.view.Error(err.Error())
		return
	}
	r.view.Transcript(sess)
}

func (r *REPL) delete(args []string) {
	var id string
	if len(args) == 0 {
		cur := r.ctrl.Current()
		if cur == nil {
			return
		}
		id = cur.SessionID
	} else {
		target, ok := r.pick(args)
		if !ok {
			return
		}
		id = target.SessionID
	}
	if next := r.ctrl.DeleteSession(id); next != nil {
		r.view.Notice("conversation courante: " + next.Title)
	}
}

func (r *REPL) rate(ctx context.Context, args []string, fb session.Feedback) {
	cur := r.ctrl.Current()
	if cur == nil {
		return
	}
	index := lastAnswer(cur.Messages)
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(cur.Messages) {
			r.view.Error("numéro de message invalide: " + args[0])
			return
		}
		index = n - 1
	}
	if index < 0 || cur.Messages[index].IsUser {
		r.view.Error("seules les réponses peuvent être notées")
		return
	}

	result, err := r.ctrl.Feedback(ctx, index, fb)
	if err != nil {
		r.view.Error(err.Error())
		return
	}
	if result == session.FeedbackNone {
		r.view.Notice(fmt.Sprintf("note retirée du message %d", index+1))
		return
	}
	r.view.Notice(fmt.Sprintf("message %d: %s", index+1, result))
}

func lastAnswer(msgs []session.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].IsUser {
			return i
		}
	}
	return -1
}
