// Package ingest consumes decoded position reports from Kafka.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"fleet-monitor/detector/internal/domain"
	"fleet-monitor/detector/internal/metrics"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, p *domain.Position) error
}

type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

type Consumer struct {
	reader     *kafka.Reader
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewConsumer(cfg Config, dispatcher Dispatcher, log *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("positions topic must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:     reader,
		dispatcher: dispatcher,
		log:        log.With("component", "consumer", "topic", cfg.Topic),
	}, nil
}

// Run fetches until ctx is done. Offsets are committed once a report has
// been queued for analysis; malformed messages are committed and skipped.
func (c *Consumer) Run(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Error("reader close failed", "err", err)
		}
	}()
	c.log.Info("consumer started")

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Info("consumer stopped")
				return
			}
			c.log.Error("fetch failed", "err", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				return
			}
		}
		backoff = time.Second
		metrics.ReportsReceived.Inc()

		p, err := Decode(msg.Value)
		if err != nil {
			metrics.ReportsDecodeErrors.Inc()
			c.log.Warn("dropping undecodable report", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		} else if err := c.dispatcher.Dispatch(ctx, p); err != nil {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// Decode parses one JSON position report. Attribute numbers are kept as
// json.Number so integer sensor values survive intact.
func Decode(data []byte) (*domain.Position, error) {
	var p domain.Position
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	if p.DeviceID == 0 {
		return nil, errors.New("decode position: missing deviceId")
	}
	if p.FixTime.IsZero() {
		return nil, fmt.Errorf("decode position %d: missing fixTime", p.DeviceID)
	}
	return &p, nil
}
