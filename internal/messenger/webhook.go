// Package messenger adapts the Messenger Platform webhook to the
// question-answering backend.
package messenger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	GetStarted      = "GET_STARTED"
)

// Webhook is the body of a page subscription delivery.
type Webhook struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

type MessagingEvent struct {
	Sender    *Party          `json:"sender,omitempty"`
	Recipient *Party          `json:"recipient,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Message   *IncomingText   `json:"message,omitempty"`
	Postback  *IncomingAction `json:"postback,omitempty"`
}

type Party struct {
	ID string `json:"id"`
}

type IncomingText struct {
	Mid  string `json:"mid"`
	Text string `json:"text"`
}

type IncomingAction struct {
	Mid     string `json:"mid"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

func (e MessagingEvent) PSID() string {
	if e.Sender == nil {
		return ""
	}
	return e.Sender.ID
}

// MessageID is the mid of the message or postback, whichever is present.
func (e MessagingEvent) MessageID() string {
	if e.Message != nil && e.Message.Mid != "" {
		return e.Message.Mid
	}
	if e.Postback != nil {
		return e.Postback.Mid
	}
	return ""
}

// Incoming returns the text to answer: the message text, else a postback
// payload other than GET_STARTED.
func (e MessagingEvent) Incoming() string {
	if e.Message != nil && e.Message.Text != "" {
		return e.Message.Text
	}
	if e.Postback != nil && e.Postback.Payload != GetStarted {
		return e.Postback.Payload
	}
	return ""
}

func (e MessagingEvent) IsGetStarted() bool {
	return e.Postback != nil && e.Postback.Payload == GetStarted
}

// VerifySignature checks header against the HMAC-SHA256 of body keyed by
// the app secret.
func VerifySignature(appSecret string, body []byte, header string) bool {
	return hmac.Equal([]byte(Sign(appSecret, body)), []byte(header))
}

// Sign returns the header value Meta would send for body.
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
