package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
)

// TaskSubmitter is satisfied by *worker.Pool.
type TaskSubmitter interface {
	Submit(ctx context.Context, task models.DispatchTask) error
}

// fetchRetryDelay spaces out fetch attempts while the broker is failing.
const fetchRetryDelay = time.Second

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads dispatch tasks from Kafka and hands them to the worker pool.
type Consumer struct {
	reader     messageReader
	topic      string
	pool       TaskSubmitter
	logger     *logging.Logger
	retryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, pool TaskSubmitter, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: reader, topic: topic, pool: pool, logger: logger, retryDelay: fetchRetryDelay}
}

// Start consumes until ctx is cancelled. Submission blocks while the pool is
// full, which holds back the offset commit.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.topic)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed, retrying in %v: %v", c.retryDelay, err)
				select {
				case <-ctx.Done():
					c.logger.Info("Kafka consumer stopped")
					return
				case <-time.After(c.retryDelay):
				}
				continue
			}

			if task, ok := c.decode(msg); ok {
				if err := c.pool.Submit(ctx, task); err != nil {
					c.logger.Errorf("Submit task failed: request_id=%s: %v", task.RequestID, err)
					return
				}
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

// decode parses and validates one message. Bad messages are logged and skipped.
func (c *Consumer) decode(msg kafka.Message) (models.DispatchTask, bool) {
	var task models.DispatchTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		c.logger.Errorf("Unmarshal message at offset %d failed: %v", msg.Offset, err)
		return task, false
	}
	if task.AlertID < 1 || task.RequestID == "" {
		c.logger.Errorf("Invalid message at offset %d: missing alert_id or request_id", msg.Offset)
		return task, false
	}
	c.logger.Debugf("Processed Kafka message: request_id=%s alert_id=%d", task.RequestID, task.AlertID)
	return task, true
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
