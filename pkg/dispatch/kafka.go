package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/collectflow/collectflow/pkg/models"
)

// KafkaConfig holds work dispatch gateway settings.
type KafkaConfig struct {
	Brokers     []string `json:"brokers"`
	TopicPrefix string   `json:"topic_prefix"`
	GroupID     string   `json:"group_id"`
}

// DefaultKafkaConfig returns defaults for local development.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:     []string{"localhost:9092"},
		TopicPrefix: "collect",
		GroupID:     "collectflow-coordinator",
	}
}

// Kafka routes tasks to channel executor topics and consumes inbound task
// submissions.
type Kafka struct {
	config KafkaConfig
	writer *kafka.Writer

	mu      sync.Mutex
	readers []*kafka.Reader
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafka creates the dispatch gateway. Writes are synchronous so a
// dispatch error propagates to the coordination operation that caused it.
func NewKafka(config KafkaConfig) *Kafka {
	return &Kafka{
		config: config,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			Async:        false,
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (k *Kafka) topic(suffix string) string {
	return k.config.TopicPrefix + "." + suffix
}

// Dispatch routes a task by kind to its executor topic, keyed by customer so
// per-customer ordering is preserved within a channel.
func (k *Kafka) Dispatch(ctx context.Context, task *models.Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task %s: %w", task.ID, err)
	}

	msg := kafka.Message{
		Topic: k.topic(TopicForKind(task.Kind)),
		Key:   []byte(task.CustomerID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "task_id", Value: []byte(task.ID)},
			{Key: "kind", Value: []byte(task.Kind)},
			{Key: "priority", Value: []byte(task.Priority)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to dispatch task %s: %w", task.ID, err)
	}
	return nil
}

// Submit publishes a task onto the inbound submission topic, where the
// coordinator picks it up via ConsumeSubmissions.
func (k *Kafka) Submit(ctx context.Context, task *models.Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize submission %s: %w", task.ID, err)
	}

	msg := kafka.Message{
		Topic: k.topic("tasks"),
		Key:   []byte(task.CustomerID),
		Value: value,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to submit task %s: %w", task.ID, err)
	}
	return nil
}

// TaskHandler processes an inbound task submission.
type TaskHandler func(ctx context.Context, task *models.Task) error

// ConsumeSubmissions reads task submissions from the inbound topic and
// invokes the handler for each. Malformed messages are skipped; handler
// errors leave the message uncommitted for redelivery.
func (k *Kafka) ConsumeSubmissions(ctx context.Context, handler TaskHandler) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.config.Brokers,
		Topic:          k.topic("tasks"),
		GroupID:        k.config.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
	})
	k.readers = append(k.readers, reader)

	runCtx := ctx
	if k.cancel == nil {
		runCtx, k.cancel = context.WithCancel(ctx)
	}

	k.wg.Add(1)
	go k.consume(runCtx, reader, handler)

	return nil
}

func (k *Kafka) consume(ctx context.Context, reader *kafka.Reader, handler TaskHandler) {
	defer k.wg.Done()

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		var task models.Task
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			reader.CommitMessages(ctx, msg)
			continue
		}

		if err := handler(ctx, &task); err != nil {
			continue
		}

		reader.CommitMessages(ctx, msg)
	}
}

// Close stops consumers and flushes the writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		k.cancel()
	}
	k.wg.Wait()

	for _, reader := range k.readers {
		if err := reader.Close(); err != nil {
			return fmt.Errorf("failed to close reader: %w", err)
		}
	}
	k.readers = nil

	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}
