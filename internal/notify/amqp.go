package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQP publishes events to a durable topic exchange with routing key
// "<entity>.<op>". The restaurant id travels as a header.
type AMQP struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// DialAMQP connects and declares the exchange.
func DialAMQP(url, exchange string, logger zerolog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}
	return &AMQP{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "notify.amqp").Logger(),
	}, nil
}

func (a *AMQP) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.channel.PublishWithContext(ctx,
		a.exchange,     // exchange
		e.RoutingKey(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers:      amqp.Table{"restaurant_id": e.RestaurantID.String()},
			Timestamp:    e.At,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", e.RoutingKey(), err)
	}
	a.logger.Debug().Str("routing_key", e.RoutingKey()).Msg("event published")
	return nil
}

func (a *AMQP) Close() error {
	if err := a.channel.Close(); err != nil {
		a.conn.Close()
		return err
	}
	return a.conn.Close()
}
