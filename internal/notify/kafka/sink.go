// Package kafka publishes anomaly alerts to a Kafka topic keyed by subject.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"safety-tracker/internal/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type Config struct {
	BootstrapServers string
	Topic            string
}

// Sink implements notify.Sink.
type Sink struct {
	producer *kafka.Producer
	topic    string
}

func NewSink(cfg Config) (*Sink, error) {
	if cfg.BootstrapServers == "" {
		return nil, errors.New("kafka bootstrap servers not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic not configured")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   cfg.BootstrapServers,
		"acks":                "all",
		"enable.idempotence":  true,
		"linger.ms":           5,
		"request.timeout.ms":  5000,
		"delivery.timeout.ms": 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.Printf("Kafka alert sink initialized - Topic: %s, Servers: %s", cfg.Topic, cfg.BootstrapServers)
	return &Sink{producer: p, topic: cfg.Topic}, nil
}

func (s *Sink) Name() string { return "kafka" }

// Send produces the alert and waits for its delivery report or ctx.
func (s *Sink) Send(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	delivery := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Key:            []byte(alert.SubjectID),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(alert.ID)},
			{Key: "alert_type", Value: []byte(alert.Type)},
		},
	}
	if err := s.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("failed to produce alert: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		return m.TopicPartition.Error
	}
}

// Close flushes pending messages for up to timeoutMs and closes the producer.
func (s *Sink) Close(timeoutMs int) {
	if remaining := s.producer.Flush(timeoutMs); remaining > 0 {
		log.Printf("%d alerts still in Kafka queue after flush timeout", remaining)
	}
	s.producer.Close()
}
