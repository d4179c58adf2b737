package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestTopologyFor(t *testing.T) {
	topo := TopologyFor("messenger_jobs")
	assert.Equal(t, "messenger_jobs", topo.Main)
	assert.Equal(t, "messenger_jobs.retry", topo.Retry)
	assert.Equal(t, "messenger_jobs.dlq", topo.DLQ)
}

func TestAttempts(t *testing.T) {
	assert.Equal(t, 1, Attempts(nil))
	assert.Equal(t, 1, Attempts(amqp.Table{}))
	assert.Equal(t, 2, Attempts(amqp.Table{attemptsHeader: int32(2)}))
	assert.Equal(t, 3, Attempts(amqp.Table{attemptsHeader: int64(3)}))
	assert.Equal(t, 4, Attempts(amqp.Table{attemptsHeader: "4"}))
	assert.Equal(t, 1, Attempts(amqp.Table{attemptsHeader: "x"}))
}
