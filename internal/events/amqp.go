package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ErrNack: брокер не подтвердил публикацию.
var ErrNack = errors.New("message rejected by broker")

// AMQPConfig: параметры подключения к RabbitMQ.
type AMQPConfig struct {
	URL               string
	Exchange          string
	ReconnectInterval time.Duration
	MaxRetries        int
	ConfirmTimeout    time.Duration
}

// channel: часть *amqp091.Channel, нужная издателю.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	GetNextPublishSeqNo() uint64
	Close() error
}

// AMQPPublisher публикует события в topic-exchange с подтверждениями брокера.
// Публикации сериализуются; подтверждение сопоставляется с публикацией по DeliveryTag,
// запоздавшие подтверждения прежних публикаций отбрасываются.
type AMQPPublisher struct {
	mu             sync.Mutex
	conn           *amqp091.Connection
	ch             channel
	confirms       <-chan amqp091.Confirmation
	exchange       string
	confirmTimeout time.Duration
}

// DialAMQP подключается к брокеру с повторными попытками, объявляет durable
// topic-exchange и включает режим подтверждений.
func DialAMQP(ctx context.Context, cfg AMQPConfig) (*AMQPPublisher, error) {
	const op = "events.DialAMQP"

	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(cfg.ReconnectInterval):
			}
		}

		p, err := dialOnce(cfg)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%s: after %d retries: %w", op, cfg.MaxRetries, lastErr)
}

func dialOnce(cfg AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	confirms := ch.NotifyPublish(make(chan amqp091.Confirmation, 1))

	p := newAMQPPublisher(ch, confirms, cfg.Exchange, cfg.ConfirmTimeout)
	p.conn = conn

	return p, nil
}

func newAMQPPublisher(ch channel, confirms <-chan amqp091.Confirmation, exchange string, confirmTimeout time.Duration) *AMQPPublisher {
	if confirmTimeout <= 0 {
		confirmTimeout = 5 * time.Second
	}

	return &AMQPPublisher{
		ch:             ch,
		confirms:       confirms,
		exchange:       exchange,
		confirmTimeout: confirmTimeout,
	}
}

// Publish сериализует event в JSON и публикует persistent-сообщение,
// дожидаясь подтверждения брокера.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	const op = "events.AMQPPublisher.Publish"

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	}

	seq := p.ch.GetNextPublishSeqNo()

	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if p.confirms == nil {
		return nil
	}

	timer := time.NewTimer(p.confirmTimeout)
	defer timer.Stop()

	for {
		select {
		case c, ok := <-p.confirms:
			if !ok {
				return fmt.Errorf("%s: confirms closed: %w", op, ErrNack)
			}
			if c.DeliveryTag < seq {
				continue
			}
			if !c.Ack {
				return fmt.Errorf("%s: %w", op, ErrNack)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
			return fmt.Errorf("%s: confirm timeout", op)
		}
	}
}

// Close закрывает канал и соединение.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var chErr, connErr error
	if p.ch != nil {
		chErr = p.ch.Close()
	}
	if p.conn != nil {
		connErr = p.conn.Close()
	}

	return errors.Join(chErr, connErr)
}
