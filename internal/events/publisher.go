// Package events publishes recognition and registration events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ayusman/mudra/internal/observability"
)

// Default topics.
const (
	DefaultResultsTopic = "mudra.recognition.results"
	DefaultWordsTopic   = "mudra.words.registered"
)

// RecognitionEvent is a stable prediction from a stream.
type RecognitionEvent struct {
	SessionID  string    `json:"session_id"`
	Prediction string    `json:"prediction"`
	Mode       string    `json:"prediction_type"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// WordEvent announces a registered or replaced reference word.
type WordEvent struct {
	Name       string    `json:"name"`
	Samples    int       `json:"samples"`
	TotalWords int       `json:"total_words"`
	Timestamp  time.Time `json:"timestamp"`
}

// Emitter is what the rest of the service publishes through.
type Emitter interface {
	PublishResult(ctx context.Context, event RecognitionEvent) error
	PublishWord(ctx context.Context, event WordEvent) error
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	ResultsTopic string
	WordsTopic   string
	ClientID     string
	Enabled      bool
}

// Publisher writes events to one topic per kind. Without brokers it only logs.
type Publisher struct {
	writerResults *kafka.Writer
	writerWords   *kafka.Writer
	resultsTopic  string
	wordsTopic    string
	clientID      string
	enabled       bool
	logger        zerolog.Logger
}

// New creates a publisher. A nil or disabled config gives log-only mode.
func New(cfg *Config) *Publisher {
	logger := observability.WithComponent("events")

	if cfg == nil {
		cfg = &Config{}
	}
	p := &Publisher{
		resultsTopic: cfg.ResultsTopic,
		wordsTopic:   cfg.WordsTopic,
		clientID:     cfg.ClientID,
		logger:       logger,
	}
	if p.resultsTopic == "" {
		p.resultsTopic = DefaultResultsTopic
	}
	if p.wordsTopic == "" {
		p.wordsTopic = DefaultWordsTopic
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial:     dialer.DialFunc,
		ClientID: cfg.ClientID,
	}

	// Per-frame results must never stall a stream, so that writer is async.
	p.writerResults = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        p.resultsTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Transport:    transport,
		Completion: func(messages []kafka.Message, err error) {
			for range messages {
				observability.RecordEvent(p.resultsTopic, err)
			}
			if err != nil {
				logger.Error().Err(err).Str("topic", p.resultsTopic).Msg("Failed to write to Kafka")
			}
		},
	}
	p.writerWords = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        p.wordsTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
	p.enabled = true

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("results_topic", p.resultsTopic).
		Str("words_topic", p.wordsTopic).
		Msg("Kafka publisher initialized")

	return p
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishResult publishes a stream prediction keyed by session.
func (p *Publisher) PublishResult(ctx context.Context, event RecognitionEvent) error {
	return p.publish(ctx, p.writerResults, p.resultsTopic, event.SessionID, event)
}

// PublishWord publishes a registration keyed by word name.
func (p *Publisher) PublishWord(ctx context.Context, event WordEvent) error {
	return p.publish(ctx, p.writerWords, p.wordsTopic, event.Name, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	p.logger.Debug().
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		observability.RecordEvent(topic, nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "clientId", Value: []byte(p.clientID)},
		},
	}

	err = writer.WriteMessages(ctx, msg)
	if !writer.Async {
		observability.RecordEvent(topic, err)
	}
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Str("key", key).Msg("Failed to write to Kafka")
		return err
	}
	return nil
}

// Close flushes and closes the writers.
func (p *Publisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.writerResults, p.writerWords} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			p.logger.Error().Err(e).Str("topic", w.Topic).Msg("Error closing writer")
			err = e
		}
	}
	return err
}
