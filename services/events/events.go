// Package eventsvc publishes domain events to a message broker (RabbitMQ or Kafka).
package eventsvc

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/enrollment"
)

// Publisher is an enrollment.EventPublisher that must be closed.
type Publisher interface {
	enrollment.EventPublisher
	io.Closer
}

// New returns the publisher selected by conf.Events.Driver: amqp, kafka or none.
func New(conf *core.Config) (Publisher, error) {
	switch conf.Events.Driver {
	case "amqp":
		pub, err := NewAMQPPublisher(conf.Events.URL, conf.Events.Exchange)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "kafka":
		pub, err := NewKafkaPublisher(conf.Events.Brokers, conf.Events.Topic)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "", "none":
		return NewNopPublisher(), nil
	default:
		return nil, errors.Errorf("unknown events driver %q", conf.Events.Driver)
	}
}

// Message is a published event, as kept by NopPublisher.
type Message struct {
	Key  string
	Body json.RawMessage
}

// NopPublisher keeps events in memory (DEV & tests).
type NopPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (p *NopPublisher) PublishJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Key: key, Body: b})
	return nil
}

func (p *NopPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

func (p *NopPublisher) Close() error { return nil }
