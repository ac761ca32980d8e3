package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Rabbit publishes committed carts and rejected mutations to a topic exchange.
// A nil *Rabbit is a valid no-op publisher.
type Rabbit struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

// NewRabbit returns nil, nil when url is empty so the broker stays optional.
func NewRabbit(url, exchange string) (*Rabbit, error) {
	if url == "" {
		return nil, nil
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
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	r := newRabbit(ch, exchange)
	r.conn = conn
	return r, nil
}

func newRabbit(ch channel, exchange string) *Rabbit {
	return &Rabbit{ch: ch, exchange: exchange, now: time.Now}
}

func (r *Rabbit) Close() {
	if r == nil {
		return
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// Publish emits cart.updated with the full snapshot.
func (r *Rabbit) Publish(ctx context.Context, c cart.Cart) error {
	if r == nil || r.ch == nil {
		return nil
	}
	return r.publishJSON(ctx, RKCartUpdated, updatedPayload(c, r.now()))
}

// Notify emits cart.failed. Broker errors are only logged.
func (r *Rabbit) Notify(ctx context.Context, n cart.Notice) {
	if r == nil || r.ch == nil {
		return
	}
	if err := r.publishJSON(ctx, RKCartFailed, failedPayload(n, r.now())); err != nil {
		log.Error().Err(err).Str("rk", RKCartFailed).Msg("rabbit publish failed")
	}
}

func (r *Rabbit) publishJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Timestamp:   r.now(),
		Body:        body,
	})
}
