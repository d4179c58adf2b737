package session

import (
	"time"
)

type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

func (f Feedback) Valid() bool {
	return f == FeedbackLike || f == FeedbackDislike
}

type Message struct {
	Text              string   `json:"text"`
	IsUser            bool     `json:"isUser"`
	Timestamp         string   `json:"timestamp"`
	MessageID         string   `json:"messageId,omitempty"`
	UserFeedback      Feedback `json:"userFeedback,omitempty"`
	FeedbackTimestamp string   `json:"feedbackTimestamp,omitempty"`
}

type ChatSession struct {
	SessionID      string    `json:"sessionId"`
	CompanyID      string    `json:"companyId"`
	ExternalUserID string    `json:"externalUserId,omitempty"`
	Title          string    `json:"title"`
	CreatedAt      string    `json:"createdAt"`
	Messages       []Message `json:"messages"`
}

func (s *ChatSession) clone() *ChatSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return &out
}

// isoLayout matches JavaScript's Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t the way the widget stores timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 and the zone-less ISO forms the backend
// emits. Unparseable values yield the zero time.
func ParseTimestamp(s string) time.Time {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// NewMessage builds a message stamped with the current time.
func NewMessage(text string, isUser bool, messageID string) Message {
	return Message{
		Text:      text,
		IsUser:    isUser,
		Timestamp: FormatTimestamp(time.Now()),
		MessageID: messageID,
	}
}
