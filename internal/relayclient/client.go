// Package relayclient is the session core's client of the proxy relay.
package relayclient

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

	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/session"
)

type Client struct {
	BaseURL string
	Client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

type FeedbackResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	BackendAvailable bool   `json:"backend_available"`
}

func (c *Client) postJSON(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	if c.Client == nil {
		return nil, errors.New("relayclient: http client is nil")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
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
	return &backend.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// Ask posts to /api/ask and returns the event stream body.
func (c *Client) Ask(ctx context.Context, req backend.AskRequest) (io.ReadCloser, error) {
	resp, err := c.postJSON(ctx, "/api/ask", req, "text/event-stream")
	if err != nil {
		return nil, fmt.Errorf("relay: ask: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

// SessionMessages fetches a session's canonical history through the relay.
func (c *Client) SessionMessages(ctx context.Context, sessionID, companyID string) ([]session.Message, error) {
	if c.Client == nil {
		return nil, errors.New("relayclient: http client is nil")
	}
	q := url.Values{}
	q.Set("session_id", sessionID)
	if companyID != "" {
		q.Set("company_id", companyID)
	}
	endpoint := c.BaseURL + "/api/session-messages?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: session messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}
	var out struct {
		Messages []session.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("relay: decode session messages: %w", err)
	}
	return out.Messages, nil
}

// SendFeedback submits a rating through /api/feedback.
func (c *Client) SendFeedback(ctx context.Context, fb backend.FeedbackRequest) (FeedbackResult, error) {
	var out FeedbackResult
	resp, err := c.postJSON(ctx, "/api/feedback", fb, "")
	if err != nil {
		return out, fmt.Errorf("relay: feedback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("relay: decode feedback result: %w", err)
	}
	return out, nil
}
