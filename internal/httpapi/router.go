package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ask-widget/internal/common"
	"github.com/suPer8Hu/ask-widget/internal/httpapi/handlers"
	"github.com/suPer8Hu/ask-widget/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.Use(middleware.Cors())

	// widget relay
	api.POST("/ask", h.Ask)
	api.OPTIONS("/ask", h.Preflight)
	api.GET("/session-messages", h.SessionMessages)
	api.POST("/feedback", h.Feedback)
	api.OPTIONS("/feedback", h.FeedbackOptions)
	api.GET("/widget-script", h.WidgetScript)

	// messenger platform
	api.GET("/messenger/webhook", h.MessengerVerify)
	api.POST("/messenger/webhook", h.MessengerWebhook)
	api.GET("/messenger/test", h.MessengerTest)
	api.GET("/messenger/jobs", h.ListMessengerJobs)
	api.GET("/messenger/jobs/:job_id", h.GetMessengerJob)
	return r
}
