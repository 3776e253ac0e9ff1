package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"emergency-dispatch/internal/queue"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ queue.Enqueuer = (*Producer)(nil)

// Producer publishes dispatch tasks, keyed by alert id so one alert's tasks
// land on one partition.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}}
}

func (p *Producer) Enqueue(ctx context.Context, alertID int64) error {
	task := queue.NewTask(alertID)
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch task: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(alertID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish dispatch task for alert %d: %w", alertID, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
