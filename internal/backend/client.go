// Package backend talks to the remote question-answering backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL         string
	FeedbackURL     string
	FeedbackTimeout time.Duration
	// Client carries no timeout: answers are streamed and bounded by ctx.
	Client *http.Client
}

func NewClient(baseURL, feedbackURL string, feedbackTimeout time.Duration) *Client {
	if feedbackURL == "" {
		feedbackURL = baseURL
	}
	if feedbackTimeout <= 0 {
		feedbackTimeout = 5 * time.Second
	}
	return &Client{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		FeedbackURL:     strings.TrimRight(feedbackURL, "/"),
		FeedbackTimeout: feedbackTimeout,
		Client:          &http.Client{},
	}
}

func (c *Client) post(ctx context.Context, endpoint string, body any, accept string) (*http.Response, error) {
	if c.Client == nil {
		return nil, errors.New("backend: http client is nil")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.Client.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Ask opens a streaming exchange with /ask_public/. The caller owns the
// returned body and must close it.
func (c *Client) Ask(ctx context.Context, req AskRequest) (io.ReadCloser, error) {
	resp, err := c.post(ctx, c.BaseURL+"/ask_public/", req, "text/event-stream")
	if err != nil {
		return nil, fmt.Errorf("backend: ask: %w", err)
	}
	if !ok(resp) {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

// AskOnce performs a non-streaming exchange and returns the decoded answer.
func (c *Client) AskOnce(ctx context.Context, req AskRequest) (AskResponse, error) {
	var out AskResponse
	resp, err := c.post(ctx, c.BaseURL+"/ask_public/", req, "application/json")
	if err != nil {
		return out, fmt.Errorf("backend: ask: %w", err)
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return out, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("backend: decode answer: %w", err)
	}
	return out, nil
}

// Messages fetches the canonical history of a session.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]HistoryMessage, error) {
	if c.Client == nil {
		return nil, errors.New("backend: http client is nil")
	}
	endpoint := c.BaseURL + "/messages_public/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: messages: %w", err)
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, statusError(resp)
	}
	var out []HistoryMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("backend: decode messages: %w", err)
	}
	return out, nil
}

// SendFeedback posts a rating to the feedback endpoint, bounded by
// FeedbackTimeout. It returns the backend's raw JSON result.
func (c *Client) SendFeedback(ctx context.Context, fb FeedbackRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.FeedbackTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.FeedbackURL+"/feedback", fb, "")
	if err != nil {
		return nil, fmt.Errorf("backend: feedback: %w", err)
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, statusError(resp)
	}
	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("backend: decode feedback result: %w", err)
	}
	return out, nil
}
