// Package rabbitmq carries Messenger job ids between the relay and workers.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type JobMessage struct {
	JobID string `json:"job_id"`
}

// Topology names the queues derived from the main queue name.
type Topology struct {
	Main  string
	Retry string
	DLQ   string
}

func TopologyFor(queue string) Topology {
	return Topology{Main: queue, Retry: queue + ".retry", DLQ: queue + ".dlq"}
}

// Declare creates the three queues: rejected main-queue messages go to the
// DLQ, expired retry-queue messages go back to the main queue.
func (t Topology) Declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", t.DLQ, err)
	}
	if _, err := ch.QueueDeclare(t.Retry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.Main,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", t.Retry, err)
	}
	if _, err := ch.QueueDeclare(t.Main, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.DLQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", t.Main, err)
	}
	return nil
}

func newPublishing(body []byte, headers amqp.Table) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers:      headers,
		Timestamp:    time.Now(),
	}
}

type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	topo Topology
}

func NewPublisher(url, queue string) (*Publisher, error) {
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
	return &Publisher{conn: conn, ch: ch, topo: topo}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishJob queues a recorded Messenger job for the workers.
func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",          // default exchange
		p.topo.Main, // routing key = queue
		false,
		false,
		newPublishing(body, nil),
	)
}
