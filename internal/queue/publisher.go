package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/reservation"
)

// Publisher sends reservation notifications to a durable queue as
// persistent JSON messages. One connection and channel are reused across
// calls and reopened lazily after a failure; a circuit breaker stops the
// request path from dialing a broker that keeps failing.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	logger      *zap.Logger
	cb          *gobreaker.CircuitBreaker

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for queue at url. No connection is made
// until the first Publish. dialTimeout bounds the TCP connect and the AMQP
// handshake of each dial.
func NewPublisher(url, queue string, dialTimeout time.Duration, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	logger = logger.Named("publisher")
	settings := gobreaker.Settings{
		Name:        "RabbitMQPublisher",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Publisher{
		url:         url,
		queue:       queue,
		dialTimeout: dialTimeout,
		logger:      logger,
		cb:          gobreaker.NewCircuitBreaker(settings),
	}
}

var _ reservation.Publisher = (*Publisher)(nil)

// Publish marshals n and publishes it to the queue. While the breaker is
// open it fails fast with gobreaker.ErrOpenState.
func (p *Publisher) Publish(ctx context.Context, n reservation.Notification) error {
	body, err := json.Marshal(FromNotification(n))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publish(ctx, body)
	})
	return err
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// the request may have given up while waiting for the lock
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channelLocked returns the open channel, dialing and declaring the queue
// first if needed.
func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.logger.Info("connected to broker", zap.String("queue", p.queue))
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// declareQueue declares the durable queue; the call is idempotent.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
