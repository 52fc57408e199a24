// Package notify hands e-mail jobs to the message broker and builds document
// links for invoices.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"detention-service/internal/model"
)

const emailJobType = "email.send"

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements the mail delivery port by publishing JSON jobs to a
// topic exchange. A downstream mail worker owns the actual transport.
type Publisher struct {
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
	log        zerolog.Logger

	mu       sync.Mutex
	declared bool
}

type emailJob struct {
	ID      uuid.UUID          `json:"id"`
	Type    string             `json:"type"`
	Message model.EmailMessage `json:"message"`
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse AMQP_URL: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP_URL scheme must be amqp:// or amqps://")
	}
	return clean, nil
}

func Dial(rawURL, exchange, routingKey string, log zerolog.Logger) (*Publisher, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := newPublisher(ch, exchange, routingKey, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, routingKey string, log zerolog.Logger) *Publisher {
	return &Publisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log.With().Str("component", "notify").Logger(),
	}
}

func (p *Publisher) Send(ctx context.Context, msg model.EmailMessage) error {
	if msg.To == "" {
		return errors.New("email recipient is required")
	}
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = time.Now().UTC()
	}

	job := emailJob{ID: uuid.New(), Type: emailJobType, Message: msg}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	// amqp channels must not be used from several goroutines at once.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
		}
		p.declared = true
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    msg.RequestedAt,
		Type:         emailJobType,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}

	p.log.Debug().
		Str("job_id", job.ID.String()).
		Str("exchange", p.exchange).
		Str("routing_key", p.routingKey).
		Msg("email job published")
	return nil
}

func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
