package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPRelay hands rendered envelopes to a mail relay over RabbitMQ. The relay
// consumer owns the actual SMTP/provider delivery.
type AMQPRelay struct {
	exchange string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared bool
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPRelay dials the broker and opens a channel.
func NewAMQPRelay(amqpURL, exchange string) (*AMQPRelay, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = "mail"
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	return &AMQPRelay{
		exchange: exchange,
		conn:     conn,
		channel:  channel,
	}, nil
}

// RoutingKey returns the topic key an envelope is published under.
func RoutingKey(env *Envelope) string {
	if env.Template == "" {
		return "mail.generic"
	}
	return "mail." + env.Template
}

// Deliver publishes env as JSON to the relay exchange.
func (r *AMQPRelay) Deliver(ctx context.Context, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel == nil {
		return errors.New("amqp relay closed")
	}

	if !r.declared {
		if err := r.channel.ExchangeDeclare(
			r.exchange, // name
			"topic",    // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", r.exchange, err)
		}
		r.declared = true
	}

	return r.channel.PublishWithContext(ctx,
		r.exchange,
		RoutingKey(env),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
}

// Close closes the channel and connection.
func (r *AMQPRelay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
		r.channel = nil
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}
