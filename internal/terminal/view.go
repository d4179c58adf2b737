// Package terminal is a line-oriented front end for the conversation
// controller.
package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/suPer8Hu/ask-widget/internal/session"
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	botStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// View prints the conversation as it happens. User messages are not echoed.
type View struct {
	mu  sync.Mutex
	out io.Writer

	// Position returns the 1-based number of the newest message of a
	// session; nil disables numbering.
	Position func(sessionID string) int
}

func NewView(out io.Writer) *View {
	return &View{out: out}
}

func (v *View) MessageAppended(sessionID string, msg session.Message) {
	if msg.IsUser {
		return
	}
	n := 0
	if v.Position != nil {
		n = v.Position(sessionID)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, formatMessage(n, msg))
}

func (v *View) SessionRenamed(oldID, newID string) {
	v.Notice(fmt.Sprintf("session %s -> %s", oldID, newID))
}

func (v *View) PendingChanged(pending bool) {
	if pending {
		v.Notice("...")
	}
}

func (v *View) Notice(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, noticeStyle.Render(text))
}

func (v *View) Error(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, errorStyle.Render(text))
}

// Transcript prints every message of sess with its number.
func (v *View) Transcript(sess *session.ChatSession) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, noticeStyle.Render(sess.Title))
	for i, m := range sess.Messages {
		fmt.Fprintln(v.out, formatMessage(i+1, m))
	}
}

func formatMessage(n int, m session.Message) string {
	who := botStyle.Render("bot>")
	if m.IsUser {
		who = userStyle.Render("vous>")
	}
	line := who + " " + m.Text
	if m.UserFeedback != session.FeedbackNone {
		line += " " + noticeStyle.Render("("+string(m.UserFeedback)+")")
	}
	if n > 0 {
		line = indexStyle.Render(fmt.Sprintf("[%d]", n)) + " " + line
	}
	return line
}
