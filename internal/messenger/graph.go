package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

type SenderAction string

const (
	MarkSeen  SenderAction = "mark_seen"
	TypingOn  SenderAction = "typing_on"
	TypingOff SenderAction = "typing_off"

	// MaxTextLen keeps replies under the Send API's 2000 character limit.
	MaxTextLen = 1900

	fallbackText = "Désolé, je n'ai pas compris."
)

// Sender delivers replies to a Messenger user.
type Sender interface {
	SendText(ctx context.Context, psid, text string) (SendResult, error)
	SendSenderAction(ctx context.Context, psid string, action SenderAction) (SendResult, error)
}

// SendResult is the raw Send API answer, kept for diagnostics.
type SendResult struct {
	Status int    `json:"status"`
	Data   string `json:"data"`
}

type GraphClient struct {
	BaseURL   string
	PageToken string
	Client    *http.Client
}

func NewGraphClient(baseURL, pageToken string) *GraphClient {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v20.0"
	}
	return &GraphClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		PageToken: pageToken,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type recipient struct {
	ID string `json:"id"`
}

type outgoingText struct {
	Text string `json:"text"`
}

type sendRequest struct {
	Recipient     recipient     `json:"recipient"`
	Message       *outgoingText `json:"message,omitempty"`
	MessagingType string        `json:"messaging_type,omitempty"`
	SenderAction  SenderAction  `json:"sender_action,omitempty"`
}

// Truncate cuts text to MaxTextLen characters; empty text becomes a fallback.
func Truncate(text string) string {
	if text == "" {
		return fallbackText
	}
	if utf8.RuneCountInString(text) <= MaxTextLen {
		return text
	}
	return string([]rune(text)[:MaxTextLen])
}

func (g *GraphClient) send(ctx context.Context, body sendRequest) (SendResult, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return SendResult{}, err
	}
	endpoint := g.BaseURL + "/me/messages?access_token=" + url.QueryEscape(g.PageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("messenger: send: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	res := SendResult{Status: resp.StatusCode, Data: string(data)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, fmt.Errorf("messenger: send status %d: %s", resp.StatusCode, strings.TrimSpace(res.Data))
	}
	return res, nil
}

func (g *GraphClient) SendText(ctx context.Context, psid, text string) (SendResult, error) {
	return g.send(ctx, sendRequest{
		Recipient:     recipient{ID: psid},
		Message:       &outgoingText{Text: Truncate(text)},
		MessagingType: "RESPONSE",
	})
}

func (g *GraphClient) SendSenderAction(ctx context.Context, psid string, action SenderAction) (SendResult, error) {
	return g.send(ctx, sendRequest{
		Recipient:    recipient{ID: psid},
		SenderAction: action,
	})
}
