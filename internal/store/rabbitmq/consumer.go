package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptsHeader = "x-attempts"

// HandlerFunc processes one job id.
type HandlerFunc func(ctx context.Context, jobID string) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	topo        Topology
	concurrency int
	maxAttempts int
	retryDelay  time.Duration
}

func NewConsumer(url, queue string, concurrency int) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 2
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	topo := TopologyFor(queue)
	if err := topo.Declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:        conn,
		ch:          ch,
		topo:        topo,
		concurrency: concurrency,
		maxAttempts: 3,
		retryDelay:  5 * time.Second,
	}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Attempts reads the delivery attempt counter, 1 for a first delivery.
func Attempts(h amqp.Table) int {
	switch v := h[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 1
}

// Run consumes until ctx is done, dispatching deliveries to a fixed worker
// pool. A failed job is parked on the retry queue until maxAttempts, then
// rejected to the DLQ.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	msgs, err := c.ch.Consume(c.topo.Main, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("worker started, queue=%s concurrency=%d", c.topo.Main, c.concurrency)

	jobs := make(chan amqp.Delivery, c.concurrency*2)

	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, handle)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handle HandlerFunc) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err := handle(ctx, m.JobID)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
		}
		return
	}

	attempt := Attempts(d.Headers)
	log.Printf("worker=%d job %s failed attempt=%d cost=%s err=%v", workerID, m.JobID, attempt, time.Since(start), err)

	if attempt >= c.maxAttempts {
		_ = d.Nack(false, false)
		return
	}
	if rerr := c.retry(ctx, d.Body, attempt+1); rerr != nil {
		log.Printf("worker=%d retry publish failed job=%s err=%v", workerID, m.JobID, rerr)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) retry(ctx context.Context, body []byte, attempt int) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	p := newPublishing(body, amqp.Table{attemptsHeader: int32(attempt)})
	p.Expiration = strconv.FormatInt(c.retryDelay.Milliseconds(), 10)
	return c.ch.PublishWithContext(cctx, "", c.topo.Retry, false, false, p)
}
