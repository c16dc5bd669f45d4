// Package fanout spreads stored messages across gateway instances over a
// Kafka topic, so a recipient connected to any instance gets the push.
package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

const (
	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
	retryDelay      = time.Second
)

// Deliverer pushes a message to the local connections of its recipient.
type Deliverer interface {
	Deliver(msg *model.Message) int
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Kafka publishes through a circuit breaker, so a broker outage costs the
// send path one fast failure instead of a timeout per message.
type Kafka struct {
	writer  messageWriter
	reader  messageReader
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewKafka connects to topic. Every instance reads the whole topic under its
// own consumer group, starting at the newest offset: pushes are live-only
// and history covers anything published while an instance was down.
func NewKafka(brokers []string, topic, instanceID string, logger zerolog.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 5 * time.Millisecond,
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "gateway-" + instanceID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     250 * time.Millisecond,
	})
	return newKafka(w, r, logger)
}

func newKafka(w messageWriter, r messageReader, logger zerolog.Logger) *Kafka {
	logger = logger.With().Str("component", "fanout").Logger()
	st := gobreaker.Settings{
		Name:        "kafka-publish",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state")
		},
	}
	return &Kafka{writer: w, reader: r, breaker: gobreaker.NewCircuitBreaker(st), logger: logger}
}

// Publish writes msg keyed by recipient, so one recipient's pushes stay in
// one partition and keep their order.
func (k *Kafka) Publish(ctx context.Context, msg *model.Message) error {
	value, err := Encode(msg)
	if err != nil {
		return err
	}
	_, err = k.breaker.Execute(func() (interface{}, error) {
		return nil, k.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(msg.RecipientID),
			Value: value,
			Time:  msg.CreatedAt,
		})
	})
	if err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

// Run hands every consumed message to d until ctx is done.
func (k *Kafka) Run(ctx context.Context, d Deliverer) {
	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			k.logger.Error().Err(err).Msg("read failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		msg, err := Decode(m.Value)
		if err != nil {
			k.logger.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping malformed record")
			continue
		}
		n := d.Deliver(msg)
		k.logger.Debug().Int64("message_id", msg.ID).Int("connections", n).Msg("fan-out delivered")
	}
}

func (k *Kafka) Close() error {
	werr := k.writer.Close()
	rerr := k.reader.Close()
	if werr != nil {
		return errors.Wrap(werr, "close kafka writer")
	}
	if rerr != nil {
		return errors.Wrap(rerr, "close kafka reader")
	}
	return nil
}

func Encode(msg *model.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "encode message")
	}
	return b, nil
}

func Decode(b []byte) (*model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	if msg.ID == 0 || msg.RecipientID == "" {
		return nil, errors.New("decode message: missing id or recipient")
	}
	return &msg, nil
}
