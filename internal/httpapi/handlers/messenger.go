package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ask-widget/internal/common"
	"github.com/suPer8Hu/ask-widget/internal/messenger"
	"gorm.io/gorm"
)

const maxWebhookBody = 1 << 20

// MessengerVerify answers the subscription handshake.
func (h *Handler) MessengerVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.Cfg.MessengerVerifyToken != "" && token == h.Cfg.MessengerVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "Forbidden")
}

// MessengerWebhook checks the delivery signature and dispatches its events.
func (h *Handler) MessengerWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	if !messenger.VerifySignature(h.Cfg.MessengerAppSecret, raw, c.GetHeader(messenger.SignatureHeader)) {
		log.Printf("[MessengerWebhook] invalid signature")
		c.String(http.StatusForbidden, "Invalid signature")
		return
	}

	var hook messenger.Webhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}
	if hook.Object != "page" {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	st := h.Dispatcher.Dispatch(c.Request.Context(), &hook)
	log.Printf("[MessengerWebhook] entries=%d queued=%d greeted=%d rate_limited=%d duplicates=%d skipped=%d",
		len(hook.Entry), st.Queued, st.Greeted, st.RateLimited, st.Duplicates, st.Skipped)

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// MessengerTest runs typing_on, a message and typing_off against one user.
func (h *Handler) MessengerTest(c *gin.Context) {
	psid := strings.TrimSpace(c.Query("psid"))
	message := c.Query("message")
	if message == "" {
		message = "Test message"
	}
	if psid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PSID requis"})
		return
	}
	if h.Cfg.MessengerPageToken == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "PAGE_TOKEN manquant"})
		return
	}

	ctx := c.Request.Context()
	fail := func(err error) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lors du test", "details": err.Error()})
	}

	// non-2xx answers are part of the report, only transport errors abort
	typingOn, err := h.Graph.SendSenderAction(ctx, psid, messenger.TypingOn)
	if err != nil && typingOn.Status == 0 {
		fail(err)
		return
	}

	select {
	case <-time.After(h.TestDelay):
	case <-ctx.Done():
		return
	}

	msg, err := h.Graph.SendText(ctx, psid, message)
	if err != nil && msg.Status == 0 {
		fail(err)
		return
	}
	typingOff, err := h.Graph.SendSenderAction(ctx, psid, messenger.TypingOff)
	if err != nil && typingOff.Status == 0 {
		fail(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": gin.H{
			"typing_on":  typingOn,
			"message":    msg,
			"typing_off": typingOff,
		},
	})
}

// GetMessengerJob reports the state of a recorded Messenger job.
func (h *Handler) GetMessengerJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.Jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		log.Printf("[GetMessengerJob] job_id=%s err=%v", jobID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"job": jobView(j)})
}

// ListMessengerJobs lists a user's latest jobs.
func (h *Handler) ListMessengerJobs(c *gin.Context) {
	psid := strings.TrimSpace(c.Query("psid"))
	if psid == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "psid required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	jobs, err := h.Jobs.ListJobsByPSID(c.Request.Context(), psid, limit)
	if err != nil {
		log.Printf("[ListMessengerJobs] psid=%s err=%v", psid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	out := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobView(&jobs[i]))
	}
	common.OK(c, gin.H{"jobs": out})
}

func jobView(j *messenger.Job) gin.H {
	return gin.H{
		"id":         j.ID,
		"psid":       j.PSID,
		"question":   j.Question,
		"status":     j.Status,
		"attempts":   j.Attempts,
		"reply":      j.Reply,
		"error":      j.Error,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
}
