package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ask-widget/internal/config"
	"github.com/suPer8Hu/ask-widget/internal/httpapi/handlers"
	"github.com/suPer8Hu/ask-widget/internal/messenger"
	"gorm.io/gorm"
)

type fakeBackend struct {
	srv          *httptest.Server
	mu           sync.Mutex
	askBodies    []map[string]any
	feedbackDown atomic.Bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ask_public/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.askBodies = append(fb.askBodies, body)
		fb.mu.Unlock()

		if body["question"] == "boom" {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"event\":\"heartbeat\"}\n\n")
		io.WriteString(w, "data: {\"answer\":\"Bonjour\",\"session_id\":\"s1\"}\n\n")
	})
	mux.HandleFunc("/messages_public/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.Error(w, "no such session", http.StatusNotFound)
			return
		}
		io.WriteString(w, `[{"content":"Salut","role":"user","created_at":"2024-05-01T10:00:00Z"},{"content":"Bonjour","role":"assistant","created_at":"2024-05-01T10:00:02Z"}]`)
	})
	mux.HandleFunc("/feedback", func(w http.ResponseWriter, r *http.Request) {
		if fb.feedbackDown.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"status":"stored"}`)
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *fakePublisher) PublishJob(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, jobID)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

type testEnv struct {
	r       *gin.Engine
	h       *handlers.Handler
	backend *fakeBackend
	pub     *fakePublisher
	db      *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	be := newFakeBackend(t)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	cfg := config.Config{
		BackendURL:           be.srv.URL,
		FeedbackBackendURL:   be.srv.URL,
		FeedbackTimeout:      2 * time.Second,
		DefaultCompanyID:     "default-co",
		DefaultLanguage:      "français",
		MessengerVerifyToken: "verify-me",
		MessengerAppSecret:   "app-secret",
		MessengerCompanyID:   "messenger-co",
		MessengerGraphURL:    be.srv.URL,
		WorkerConcurrency:    1,
	}
	pub := &fakePublisher{}
	h, err := handlers.NewHandler(db, cfg, nil, pub)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	return &testEnv{r: NewRouter(h), h: h, backend: be, pub: pub, db: db}
}

func (e *testEnv) do(method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPing(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["code"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNoRoute(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 40400, decode(t, w)["code"])
}

func TestAsk_PassesStreamThrough(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/api/ask", []byte(`{"question":"Salut","session_id":"s0"}`), map[string]string{"Origin": "https://shop.example"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), `data: {"event":"heartbeat"}`)
	assert.Contains(t, w.Body.String(), `data: {"answer":"Bonjour","session_id":"s1"}`)

	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	require.Len(t, e.backend.askBodies, 1)
	got := e.backend.askBodies[0]
	assert.Equal(t, "Salut", got["question"])
	assert.Equal(t, "default-co", got["company_id"])
	assert.Equal(t, "français", got["langue"])
	assert.Equal(t, "s0", got["session_id"])
}

func TestAsk_MissingQuestion(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/api/ask", []byte(`{"question":"   "}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Question manquante", decode(t, w)["error"])
}

func TestAsk_BackendErrorKeepsStatus(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/api/ask", []byte(`{"question":"boom"}`), nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Erreur du backend", body["error"])
	assert.EqualValues(t, http.StatusBadGateway, body["status"])
	assert.Equal(t, "Bad Gateway", body["statusText"])
	assert.Contains(t, body["details"], "upstream exploded")
}

func TestAsk_Preflight(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodOptions, "/api/ask", nil, map[string]string{
		"Origin":                        "https://shop.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionMessages(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/session-messages?session_id=s1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Messages []struct {
			Text   string `json:"text"`
			IsUser bool   `json:"isUser"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "Salut", body.Messages[0].Text)
	assert.True(t, body.Messages[0].IsUser)
	assert.False(t, body.Messages[1].IsUser)
}

func TestSessionMessages_Errors(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/session-messages", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "session_id manquant", decode(t, w)["error"])

	w = e.do(http.MethodGet, "/api/session-messages?session_id=missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Erreur du backend", decode(t, w)["error"])
}

func TestFeedback_Validation(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/feedback", []byte(`{"session_id":"s1","message_id":"m1","feedback":"like"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Paramètres manquants")

	w = e.do(http.MethodPost, "/api/feedback", []byte(`{"session_id":"s1","message_id":"m1","feedback":"meh","company_id":"c"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], `"like" ou "dislike"`)
}

func TestFeedback_Forwarded(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/api/feedback", []byte(`{"session_id":"s1","message_id":"m1","feedback":"like","company_id":"c"}`), nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["backend_available"])
	assert.Equal(t, map[string]any{"status": "stored"}, body["data"])

	recs, err := e.h.FeedbackRepo.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].BackendAvailable)
}

func TestFeedback_BackendDownStillAccepted(t *testing.T) {
	e := newTestEnv(t)
	e.backend.feedbackDown.Store(true)

	w := e.do(http.MethodPost, "/api/feedback", []byte(`{"session_id":"s1","message_id":"m1","feedback":"dislike","company_id":"c"}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["backend_available"])

	n, err := e.h.FeedbackRepo.CountUndelivered(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestFeedback_Options(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodOptions, "/api/feedback", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestWidgetScript(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/widget-script", nil, map[string]string{"X-Forwarded-Proto": "https"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), "window.ChatWidgetLoaded")
	assert.Contains(t, w.Body.String(), "https://example.com/widget")
}

func TestMessengerVerify(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/messenger/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = e.do(http.MethodGet, "/api/messenger/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMessengerWebhook_BadSignature(t *testing.T) {
	e := newTestEnv(t)
	body := []byte(`{"object":"page","entry":[]}`)
	w := e.do(http.MethodPost, "/api/messenger/webhook", body, map[string]string{"X-Hub-Signature-256": "sha256=00"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMessengerWebhook_NotAPage(t *testing.T) {
	e := newTestEnv(t)
	body := []byte(`{"object":"user","entry":[]}`)
	w := e.do(http.MethodPost, "/api/messenger/webhook", body, map[string]string{"X-Hub-Signature-256": messenger.Sign("app-secret", body)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessengerWebhook_QueuesOnceAndReportsJob(t *testing.T) {
	e := newTestEnv(t)
	body := []byte(`{"object":"page","entry":[{"id":"p","time":1,"messaging":[{"sender":{"id":"u1"},"recipient":{"id":"p"},"timestamp":1,"message":{"mid":"m1","text":"Bonjour"}}]}]}`)
	hdr := map[string]string{"X-Hub-Signature-256": messenger.Sign("app-secret", body)}

	w := e.do(http.MethodPost, "/api/messenger/webhook", body, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EVENT_RECEIVED", w.Body.String())

	// a redelivery is acknowledged but not queued again
	w = e.do(http.MethodPost, "/api/messenger/webhook", body, hdr)
	require.Equal(t, http.StatusOK, w.Code)

	ids := e.pub.published()
	require.Len(t, ids, 1)

	w = e.do(http.MethodGet, "/api/messenger/jobs/"+ids[0], nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	job := data["job"].(map[string]any)
	assert.Equal(t, "u1", job["psid"])
	assert.Equal(t, "queued", job["status"])

	w = e.do(http.MethodGet, "/api/messenger/jobs?psid=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decode(t, w)["data"].(map[string]any)["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.Equal(t, ids[0], jobs[0].(map[string]any)["id"])

	w = e.do(http.MethodGet, "/api/messenger/jobs", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/messenger/jobs/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 40402, decode(t, w)["code"])
}

func TestMessengerTest_RequiresPSID(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/messenger/test", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PSID requis", decode(t, w)["error"])
}
