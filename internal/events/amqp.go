// Package events publishes call status transitions to an AMQP queue so
// downstream consumers can react without polling. Publishing is best-effort:
// a broker problem is logged, never surfaced to the pipeline.
package events

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"

	"call-insights-go/internal/logger"
)

type statusEvent struct {
	CallID    string    `json:"call_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// AMQPPublisher sends one JSON message per status transition to a durable
// queue.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *logger.Logger
}

// Connect dials the broker and declares the queue.
func Connect(url, queue string, log *logger.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.WithField("queue", q.Name).Info("connected to AMQP broker")
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue, log: log}, nil
}

func (p *AMQPPublisher) PublishStatus(callID, status string) {
	body, err := json.Marshal(statusEvent{CallID: callID, Status: status, Timestamp: time.Now().UTC()})
	if err != nil {
		p.log.WithError(err).WithField("call_id", callID).Error("failed to marshal status event")
		return
	}

	err = p.ch.Publish(
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.log.WithError(err).WithField("call_id", callID).Error("failed to publish status event")
	}
}

func (p *AMQPPublisher) Close() error { return p.conn.Close() }
