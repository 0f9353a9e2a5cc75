package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"petsitter/pkg/circuitbreaker"
	"petsitter/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
)

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// BookingEvent is the message body for every booking.* routing key.
type BookingEvent struct {
	BookingID  string    `json:"bookingId"`
	SitterID   string    `json:"sitterId"`
	UserID     string    `json:"userId"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actorId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewBookingEvent(b *models.Booking, actorID string) BookingEvent {
	return BookingEvent{
		BookingID:  b.ID,
		SitterID:   b.SitterID,
		UserID:     b.UserID,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Status:     b.Status,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// KeyForStatus maps a booking status to its routing key.
func KeyForStatus(status string) string {
	switch status {
	case models.StatusConfirmed:
		return BookingConfirmed
	case models.StatusCancelled:
		return BookingCancelled
	case models.StatusCompleted:
		return BookingCompleted
	}
	return BookingCreated
}

type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	})
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }
func (Nop) Close() error                                   { return nil }

// Notifier publishes booking events without ever failing the caller. Broker errors are
// logged, and after repeated failures the breaker skips the broker for a while.
type Notifier struct {
	pub     Publisher
	breaker *circuitbreaker.CircuitBreaker
	log     *zap.Logger
	timeout time.Duration
}

func NewNotifier(pub Publisher, log *zap.Logger) *Notifier {
	breaker := circuitbreaker.NewCircuitBreaker("booking-events", 5, 30*time.Second)
	breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	return &Notifier{pub: pub, breaker: breaker, log: log, timeout: 3 * time.Second}
}

// Booking publishes the event matching b's current status.
func (n *Notifier) Booking(ctx context.Context, b *models.Booking, actorID string) {
	key := KeyForStatus(b.Status)
	event := NewBookingEvent(b, actorID)

	// the request may already be finished; the publish gets its own deadline
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	err := n.breaker.Execute(func() error {
		return n.pub.PublishJSON(pubCtx, key, event)
	}, nil)
	if err != nil {
		n.log.Warn("booking event not published",
			zap.String("key", key),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}

func (n *Notifier) Close() error {
	return n.pub.Close()
}
