package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/feedback"
	"github.com/suPer8Hu/ask-widget/internal/history"
)

func backendError(c *gin.Context, err error) {
	var se *backend.StatusError
	if errors.As(err, &se) {
		c.JSON(se.StatusCode, gin.H{
			"error":      "Erreur du backend",
			"status":     se.StatusCode,
			"statusText": se.StatusText(),
			"details":    se.Body,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Erreur serveur",
		"details": err.Error(),
	})
}

// Ask forwards a question and passes the backend's event stream through,
// chunk by chunk. The upstream request is bound to the client's.
func (h *Handler) Ask(c *gin.Context) {
	var req backend.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur", "details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question manquante"})
		return
	}
	if req.CompanyID == "" {
		req.CompanyID = h.Cfg.DefaultCompanyID
	}
	if req.Langue == "" {
		req.Langue = h.Cfg.DefaultLanguage
	}

	ctx := c.Request.Context()
	body, err := h.Backend.Ask(ctx, req)
	if err != nil {
		log.Printf("[Ask] backend failed session_id=%s err=%v", req.SessionID, err)
		backendError(c, err)
		return
	}
	defer body.Close()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur", "details": "streaming unsupported"})
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	flusher.Flush()

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go pump(ctx, body, chunks, readErr)

	ticker := time.NewTicker(h.keepAlive())
	defer ticker.Stop()

	atLineStart := true
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				if err := <-readErr; err != nil && ctx.Err() == nil {
					log.Printf("[Ask] stream interrupted session_id=%s err=%v", req.SessionID, err)
				}
				return
			}
			if _, err := c.Writer.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
			atLineStart = chunk[len(chunk)-1] == '\n'

		case <-ticker.C:
			// only between lines, so an upstream event is never split
			if atLineStart {
				fmt.Fprint(c.Writer, ": ping\n\n")
				flusher.Flush()
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) keepAlive() time.Duration {
	if h.KeepAlive <= 0 {
		return 15 * time.Second
	}
	return h.KeepAlive
}

func pump(ctx context.Context, r io.Reader, out chan<- []byte, errs chan<- error) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case out <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			errs <- err
			return
		}
	}
}

// SessionMessages returns a session's canonical history in the widget's
// message layout.
func (h *Handler) SessionMessages(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id manquant"})
		return
	}

	msgs, err := h.Backend.Messages(c.Request.Context(), sessionID)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			c.JSON(se.StatusCode, gin.H{
				"error":      "Erreur du backend",
				"status":     se.StatusCode,
				"statusText": se.StatusText(),
			})
			return
		}
		log.Printf("[SessionMessages] session_id=%s err=%v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": history.MapBackendMessages(msgs)})
}

type feedbackReq struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Feedback  string `json:"feedback"`
	CompanyID string `json:"company_id"`
}

// Feedback forwards a rating. The rating is accepted even when the backend
// cannot be reached; backend_available tells the caller which happened.
func (h *Handler) Feedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
		return
	}
	if req.SessionID == "" || req.MessageID == "" || req.Feedback == "" || req.CompanyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètres manquants: session_id, message_id, feedback et company_id sont requis"})
		return
	}
	if req.Feedback != "like" && req.Feedback != "dislike" {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Le feedback doit être "like" ou "dislike"`})
		return
	}

	ctx := c.Request.Context()
	result, err := h.Backend.SendFeedback(ctx, backend.FeedbackRequest(req))
	available := err == nil
	if err != nil {
		log.Printf("[Feedback] backend unavailable session_id=%s message_id=%s err=%v", req.SessionID, req.MessageID, err)
	}

	if h.FeedbackRepo != nil {
		rec := &feedback.Record{
			SessionID:        req.SessionID,
			MessageID:        req.MessageID,
			CompanyID:        req.CompanyID,
			Feedback:         req.Feedback,
			BackendAvailable: available,
		}
		if err := h.FeedbackRepo.Insert(ctx, rec); err != nil {
			log.Printf("[Feedback] record failed session_id=%s message_id=%s err=%v", req.SessionID, req.MessageID, err)
		}
	}

	if !available {
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"message":           "Feedback enregistré localement (backend RAG non disponible)",
			"backend_available": false,
		})
		return
	}
	resp := gin.H{
		"success":           true,
		"message":           "Feedback enregistré avec succès",
		"backend_available": true,
	}
	if len(result) > 0 {
		resp["data"] = result
	}
	c.JSON(http.StatusOK, resp)
}

// Preflight answers CORS preflight requests; headers come from the Cors
// middleware.
func (h *Handler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *Handler) FeedbackOptions(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Status(http.StatusOK)
}

var widgetScript = template.Must(template.New("widget").Parse(`
(function() {
  if (window.ChatWidgetLoaded) return;
  window.ChatWidgetLoaded = true;

  var container = document.createElement('div');
  container.id = 'chatwidget-container';
  container.style.cssText = 'position: fixed; top: 0; left: 0; width: 100%; height: 100%; pointer-events: none; z-index: 999999;';

  var iframe = document.createElement('iframe');
  iframe.src = '{{js .Origin}}/widget';
  iframe.style.cssText = 'border: none; width: 100%; height: 100%; background: transparent; pointer-events: auto;';
  iframe.setAttribute('allow', 'clipboard-write');

  container.appendChild(iframe);
  document.body.appendChild(container);

  window.addEventListener('message', function(event) {
    if (event.origin !== '{{js .Origin}}') return;
  });
})();
`))

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p == "https" || p == "http" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}

// WidgetScript serves the embed snippet that mounts the widget iframe.
func (h *Handler) WidgetScript(c *gin.Context) {
	var buf bytes.Buffer
	if err := widgetScript.Execute(&buf, struct{ Origin string }{requestOrigin(c)}); err != nil {
		log.Printf("[WidgetScript] render failed err=%v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Data(http.StatusOK, "application/javascript", buf.Bytes())
}
