package messenger

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/suPer8Hu/ask-widget/internal/common"
	"github.com/suPer8Hu/ask-widget/internal/logx"
)

// Publisher hands a recorded job to whatever runs it.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Worker runs recorded jobs through a Processor.
type Worker struct {
	repo *Repo
	proc *Processor
}

func NewWorker(repo *Repo, proc *Processor) *Worker {
	return &Worker{repo: repo, proc: proc}
}

func (w *Worker) Handle(ctx context.Context, jobID string) error {
	jobStart := time.Now()

	claimed, err := w.repo.MarkJobRunning(ctx, jobID)
	if err != nil {
		return err
	}
	j, err := w.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		logx.Debugf("[messenger] job %s is %s, skipping", jobID, j.Status)
		return nil
	}

	t0 := time.Now()
	reply, err := w.proc.Reply(ctx, j.PSID, j.Question)
	genCost := time.Since(t0)

	if err != nil {
		_ = w.repo.MarkJobFailed(ctx, jobID, err.Error())
		log.Printf("job_timing_failed job=%s psid=%s gen=%s total=%s err=%v",
			jobID, j.PSID, genCost, time.Since(jobStart), err,
		)
		if errors.Is(err, ErrApologized) {
			return nil
		}
		return err
	}

	if err := w.repo.MarkJobSucceeded(ctx, jobID, reply); err != nil {
		return err
	}

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Printf("job_timing job=%s psid=%s gen=%s total=%s", jobID, j.PSID, genCost, total)
	}
	return nil
}

var ErrQueueClosed = errors.New("messenger: local queue closed")

// LocalQueue runs jobs in-process on a fixed pool when no broker is
// configured.
type LocalQueue struct {
	worker *Worker
	jobs   chan string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalQueue(worker *Worker, concurrency int) *LocalQueue {
	if concurrency <= 0 {
		concurrency = 2
	}
	q := &LocalQueue{worker: worker, jobs: make(chan string, concurrency*16)}
	q.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go q.run(i)
	}
	return q
}

func (q *LocalQueue) run(workerID int) {
	defer q.wg.Done()
	for id := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := q.worker.Handle(ctx, id); err != nil {
			logx.Warnf("[messenger] worker=%d job %s failed: %v", workerID, id, err)
		}
		cancel()
	}
}

func (q *LocalQueue) PublishJob(ctx context.Context, jobID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

// Dispatcher turns a webhook delivery into greetings and recorded jobs.
type Dispatcher struct {
	guard     Guard
	repo      *Repo
	publisher Publisher
	proc      *Processor
}

func NewDispatcher(guard Guard, repo *Repo, publisher Publisher, proc *Processor) *Dispatcher {
	return &Dispatcher{guard: guard, repo: repo, publisher: publisher, proc: proc}
}

// DispatchStats counts what happened to each messaging event.
type DispatchStats struct {
	Queued      int `json:"queued"`
	Greeted     int `json:"greeted"`
	RateLimited int `json:"rate_limited"`
	Duplicates  int `json:"duplicates"`
	Skipped     int `json:"skipped"`
}

func (d *Dispatcher) Dispatch(ctx context.Context, hook *Webhook) DispatchStats {
	var st DispatchStats
	for _, entry := range hook.Entry {
		for _, ev := range entry.Messaging {
			psid := ev.PSID()
			if psid == "" {
				st.Skipped++
				continue
			}
			if d.guard.RateLimited(ctx, psid) {
				logx.Infof("[messenger] rate limited psid=%s", psid)
				st.RateLimited++
				continue
			}
			mid := ev.MessageID()
			if mid != "" && d.guard.Duplicate(ctx, psid, mid) {
				logx.Infof("[messenger] duplicate psid=%s mid=%s", psid, mid)
				st.Duplicates++
				continue
			}

			question := ev.Incoming()
			if question == "" {
				if ev.IsGetStarted() {
					d.proc.Greet(ctx, psid)
					st.Greeted++
				} else {
					st.Skipped++
				}
				continue
			}

			if err := d.enqueue(ctx, psid, mid, question); err != nil {
				logx.Errorf("[messenger] enqueue psid=%s mid=%s failed: %v", psid, mid, err)
				st.Skipped++
				continue
			}
			st.Queued++
		}
	}
	return st
}

func (d *Dispatcher) enqueue(ctx context.Context, psid, mid, question string) error {
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	job, created, err := d.repo.CreateJobOrGetExisting(ctx, &Job{
		ID:             id,
		PSID:           psid,
		Mid:            mid,
		Question:       question,
		IdempotencyKey: IdempotencyKey(psid, mid),
		Status:         JobQueued,
	})
	if err != nil {
		return err
	}
	if !created {
		logx.Debugf("[messenger] job %s already recorded for psid=%s mid=%s", job.ID, psid, mid)
		return nil
	}
	return d.publisher.PublishJob(ctx, job.ID)
}
