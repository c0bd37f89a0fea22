package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"web-dlp/config"
	"web-dlp/dto"
)

// Publisher announces terminal job states to other systems.
type Publisher interface {
	Publish(ctx context.Context, event dto.JobEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, dto.JobEvent) error {
	return nil
}

type publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

func (p *publisher) Publish(ctx context.Context, event dto.JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.JobId,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("exchange", p.exchange).Str("job_id", event.JobId).Msg("failed to publish job event")
		return err
	}
	return nil
}

func RoutingKey(event dto.JobEvent) string {
	return "job." + event.Status.String()
}

func NewPublisher(ctx context.Context, conn *amqp.Connection, cfg *config.RabbitMQ) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("exchange", cfg.ExchangeName).Msg("failed to declare exchange")
		ch.Close()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		ch.Close()
	}()

	zerolog.Ctx(ctx).Info().Str("exchange", cfg.ExchangeName).Str("kind", cfg.Kind).Msg("job event publisher ready")
	return &publisher{ch: ch, exchange: cfg.ExchangeName}, nil
}
