// Package opevents publishes one Kafka record per served geometry operation.
package opevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geoconvert/internal/core/observability"
)

type Event struct {
	Op          string    `json:"op"`
	FeaturesIn  int       `json:"features_in"`
	FeaturesOut int       `json:"features_out"`
	Cached      bool      `json:"cached"`
	Duration    float64   `json:"duration_ms"`
	RequestID   string    `json:"request_id,omitempty"`
	TS          time.Time `json:"ts"`
}

type Sink interface {
	Publish(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

type Publisher struct {
	topic    string
	events   chan Event
	prod     sarama.AsyncProducer
	log      *slog.Logger
	dropped  atomic.Int64
	stopped  chan struct{}
	errsDone chan struct{}
}

// NewKafka dials brokers and returns a started publisher.
func NewKafka(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("opevents: create async producer: %w", err)
	}
	return New(prod, topic, queueSize, log), nil
}

// New takes ownership of prod. Close closes it.
func New(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	p := newPublisher(prod, topic, queueSize, log)
	p.start()
	return p
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		topic:    topic,
		events:   make(chan Event, queueSize),
		prod:     prod,
		log:      log,
		stopped:  make(chan struct{}),
		errsDone: make(chan struct{}),
	}
}

func (p *Publisher) start() {
	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("opevents marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Op),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errsDone)
		for err := range p.prod.Errors() {
			if err == nil {
				continue
			}
			topic := p.topic
			if err.Msg != nil {
				topic = err.Msg.Topic
			}
			p.log.Warn("opevents producer error", "err", err.Err, "topic", topic)
		}
	}()
}

// Publish never blocks; when the queue is full the event is dropped.
func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
		observability.IncEventsDropped()
	}
}

func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close flushes queued events and closes the producer. Publish must not be
// called after Close.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	err := p.prod.Close()
	<-p.errsDone
	if err != nil {
		return fmt.Errorf("opevents: close producer: %w", err)
	}
	return nil
}
