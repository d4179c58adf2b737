package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/common"
	"github.com/suPer8Hu/ask-widget/internal/config"
	"github.com/suPer8Hu/ask-widget/internal/feedback"
	"github.com/suPer8Hu/ask-widget/internal/messenger"
	"gorm.io/gorm"
)

type Handler struct {
	Cfg          config.Config
	Backend      *backend.Client
	FeedbackRepo *feedback.Repo
	Jobs         *messenger.Repo
	Dispatcher   *messenger.Dispatcher
	Graph        messenger.Sender

	// TestDelay separates typing_on and the message in the diagnostic send.
	TestDelay time.Duration
	// KeepAlive is the SSE comment interval on idle streams.
	KeepAlive time.Duration

	localQueue *messenger.LocalQueue
}

// NewHandler wires the relay. With a nil publisher Messenger jobs run on an
// in-process pool, released by Close.
func NewHandler(db *gorm.DB, cfg config.Config, guard messenger.Guard, publisher messenger.Publisher) (*Handler, error) {
	be := backend.NewClient(cfg.BackendURL, cfg.FeedbackBackendURL, cfg.FeedbackTimeout)

	fb := feedback.NewRepo(db)
	if err := fb.AutoMigrate(); err != nil {
		return nil, err
	}
	jobs := messenger.NewRepo(db)
	if err := jobs.AutoMigrate(); err != nil {
		return nil, err
	}

	graph := messenger.NewGraphClient(cfg.MessengerGraphURL, cfg.MessengerPageToken)
	proc := messenger.NewProcessor(be, graph, cfg.MessengerCompanyID)

	h := &Handler{
		Cfg:          cfg,
		Backend:      be,
		FeedbackRepo: fb,
		Jobs:         jobs,
		Graph:        graph,
		TestDelay:    2 * time.Second,
		KeepAlive:    15 * time.Second,
	}
	if publisher == nil {
		h.localQueue = messenger.NewLocalQueue(messenger.NewWorker(jobs, proc), cfg.WorkerConcurrency)
		publisher = h.localQueue
	}
	if guard == nil {
		guard = messenger.NewMemoryGuard(messenger.DefaultRateWindow, messenger.DefaultDedupTTL)
	}
	h.Dispatcher = messenger.NewDispatcher(guard, jobs, publisher, proc)
	return h, nil
}

func (h *Handler) Close() error {
	if h.localQueue != nil {
		return h.localQueue.Close()
	}
	return nil
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
