// Package service holds adapters that connect the booking core to
// external systems.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-api/internal/queue"
	"github.com/clinicdesk/clinic-api/internal/scheduling"
)

var errClosed = errors.New("publisher closed")

// AppointmentPublisher sends AppointmentBookedEvents to the durable
// appointment.booked queue. The connection is opened on first use and
// re-opened after a failure.
type AppointmentPublisher struct {
	url string
	log zerolog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

var _ scheduling.EventPublisher = (*AppointmentPublisher)(nil)

func NewAppointmentPublisher(url string, logger zerolog.Logger) *AppointmentPublisher {
	return &AppointmentPublisher{
		url: url,
		log: logger.With().Str("component", "appointment-publisher").Logger(),
	}
}

// PublishAppointmentBooked publishes a persistent JSON message for a.
func (p *AppointmentPublisher) PublishAppointmentBooked(ctx context.Context, a scheduling.Appointment) error {
	body, err := json.Marshal(queue.NewAppointmentBookedEvent(a))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.AppointmentBookedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("appointment-%d", a.ID),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns the open channel, dialing when needed. p.mu must be held.
func (p *AppointmentPublisher) channel() (*amqp.Channel, error) {
	if p.closed {
		return nil, errClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(queue.AppointmentBookedQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Info().Str("queue", queue.AppointmentBookedQueue).Msg("broker connected")
	return ch, nil
}

func (p *AppointmentPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection. Later publishes fail.
func (p *AppointmentPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
