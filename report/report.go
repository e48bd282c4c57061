// Package report publishes cycle reports to external sinks.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// Publisher sends cycle reports to a sink.
type Publisher interface {
	Publish(ctx context.Context, report *structs.CycleReport) error
	Close() error
}

// MessageWriter is the part of the Kafka writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes reports as JSON messages keyed by project.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewPublisher returns the publisher configured in the report block, or nil
// when reports are not published.
func NewPublisher(c *structs.Report) Publisher {
	if c == nil || len(c.KafkaBrokers) == 0 {
		return nil
	}
	return NewKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(c.KafkaBrokers...),
		Topic:        c.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	})
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes report to the topic.
func (k *KafkaPublisher) Publish(ctx context.Context, report *structs.CycleReport) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("report/kafka: unable to encode report %v: %v", report.ID, err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.Project),
		Value: value,
		Time:  report.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("report/kafka: unable to publish report %v: %v", report.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
