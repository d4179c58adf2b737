package backend

import (
	"fmt"
	"net/http"
	"strings"
)

// AskRequest is the body of an ask exchange, shared by the backend and the relay.
type AskRequest struct {
	Question       string `json:"question"`
	CompanyID      string `json:"company_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	ExternalUserID string `json:"external_user_id,omitempty"`
	Langue         string `json:"langue,omitempty"`
}

type AskResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id,omitempty"`
}

// HistoryMessage is one entry of /messages_public/{session_id}.
type HistoryMessage struct {
	Content   string `json:"content"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type FeedbackRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Feedback  string `json:"feedback"`
	CompanyID string `json:"company_id"`
}

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("backend error %d", e.StatusCode)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, body)
}

func (e *StatusError) StatusText() string {
	return http.StatusText(e.StatusCode)
}
