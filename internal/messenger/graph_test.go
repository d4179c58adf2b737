package messenger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, fallbackText, Truncate(""))
	assert.Equal(t, "court", Truncate("court"))

	long := strings.Repeat("é", MaxTextLen+50)
	got := Truncate(long)
	assert.Equal(t, MaxTextLen, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestGraphClient_SendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"recipient_id":"u1","message_id":"mid.1"}`)
	}))
	defer srv.Close()

	res, err := NewGraphClient(srv.URL, "tok").SendText(context.Background(), "u1", "Salut")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "RESPONSE", got["messaging_type"])
	assert.Equal(t, map[string]any{"text": "Salut"}, got["message"])
	assert.Equal(t, map[string]any{"id": "u1"}, got["recipient"])
	assert.NotContains(t, got, "sender_action")
}

func TestGraphClient_SenderActionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "typing_on", body["sender_action"])
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid OAuth access token"}}`)
	}))
	defer srv.Close()

	res, err := NewGraphClient(srv.URL, "bad").SendSenderAction(context.Background(), "u1", TypingOn)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Data, "Invalid OAuth")
}
