package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"fleet-monitor/detector/internal/domain"
)

type Publisher interface {
	PublishEvent(ctx context.Context, e domain.Event) error
}

// Broadcaster hands every detected event to each publisher in turn.
type Broadcaster struct {
	ch         <-chan domain.Event
	publishers []Publisher
	log        *slog.Logger
}

func NewBroadcaster(ch <-chan domain.Event, log *slog.Logger, publishers ...Publisher) *Broadcaster {
	return &Broadcaster{ch: ch, publishers: publishers, log: log.With("component", "broadcaster")}
}

func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case e, ok := <-b.ch:
			if !ok {
				return
			}
			b.publish(ctx, e)

		case <-ctx.Done():
			return
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context, e domain.Event) {
	for _, p := range b.publishers {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.PublishEvent(pctx, e)
		cancel()
		if err != nil {
			b.log.Error("publish event failed", "device_id", e.DeviceID, "event_id", e.ID, "err", err)
		}
	}
}

// KafkaEventPublisher writes events to a topic keyed by device id, so one
// device's events stay on one partition.
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.DeviceID, 10)),
		Value: payload,
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
