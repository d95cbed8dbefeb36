package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "fundcarry/config"
	"fundcarry/internal/model"
	"fundcarry/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every grid result row as one JSON message keyed by
// instrument, so consumers of one instrument see rows in sweep order.
type KafkaSink struct {
	writer messageWriter
	topic  string
	log    *logger.Log
}

// resultMessage is the wire form of a published row.
type resultMessage struct {
	RunID string `json:"run_id"`
	model.GridResultRow
	PublishedAt time.Time `json:"published_at"`
}

func NewKafkaSink(cfg appconfig.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	s := &KafkaSink{writer: w, topic: cfg.Topic, log: logger.GetLogger()}
	s.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka writer initialized")
	return s, nil
}

func (s *KafkaSink) Write(ctx context.Context, runID string, rows []model.GridResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafka.Message, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(resultMessage{RunID: runID, GridResultRow: r, PublishedAt: now})
		if err != nil {
			return fmt.Errorf("marshal result row: %w", err)
		}
		msgs[i] = kafka.Message{Key: []byte(r.Instrument), Value: data}
	}

	start := time.Now()
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish results to %s: %w", s.topic, err)
	}
	logger.LogPerformanceEntry(s.log.WithComponent("kafka_writer"), "kafka_writer", "write_messages", time.Since(start), logger.Fields{
		"topic":    s.topic,
		"messages": len(msgs),
		"run_id":   runID,
	})
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
