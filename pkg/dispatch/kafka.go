package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the log sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns an asynchronous writer: WriteMessages only queues,
// and the outcome of each batch is logged by the completion callback.
func NewKafkaWriter(brokers []string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Completion:             logCompletion(logger),
	}
}

func logCompletion(logger *slog.Logger) func(messages []kafka.Message, err error) {
	return func(messages []kafka.Message, err error) {
		topics := make([]string, 0, len(messages))
		for _, m := range messages {
			topics = append(topics, m.Topic)
		}

		if err != nil {
			logger.Error("error sending message to kafka", "topics", topics, "count", len(messages), "err", err)
			return
		}
		logger.Info("kafka message successfully sent", "topics", topics, "count", len(messages))
	}
}

// LogSink hands messages to a partitioned Kafka log.
type LogSink struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewLogSink(writer MessageWriter, logger *slog.Logger) *LogSink {
	return &LogSink{writer: writer, logger: logger}
}

func (s *LogSink) Kind() Kind {
	return Log
}

func (s *LogSink) Submit(ctx context.Context, msg Message) {
	s.logger.Info("sending kafka message", "topic", msg.Destination)

	if err := s.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		s.logger.Error("error sending message to kafka", "topic", msg.Destination, "err", err)
	}
}

// Close flushes pending writes.
func (s *LogSink) Close() error {
	return s.writer.Close()
}

func toKafkaMessage(msg Message) kafka.Message {
	km := kafka.Message{
		Topic: msg.Destination,
		Value: []byte(msg.Body),
	}
	if id := msg.Correlation(); id != "" {
		km.Key = []byte(id)
	}
	for _, k := range msg.Headers.Keys() {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return km
}
