// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Publisher publishes JSON payloads through a Pub/Sub client, keeping one
// topic publisher per topic.
type Publisher struct {
	client     *pubsub.Client
	attributes map[string]string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// New creates a Publisher. attributes are attached to every message.
func New(client *pubsub.Client, attributes map[string]string) *Publisher {
	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}
	return &Publisher{
		client:     client,
		attributes: attrs,
		publishers: make(map[string]*pubsub.Publisher),
	}
}

// Publish marshals the payload to JSON and publishes it to topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: p.messageAttributes()}
	result := p.publisherFor(topic).Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func (p *Publisher) messageAttributes() map[string]string {
	attrs := make(map[string]string, len(p.attributes)+1)
	for k, v := range p.attributes {
		attrs[k] = v
	}
	attrs["content_type"] = "application/json"
	return attrs
}

func (p *Publisher) publisherFor(topic string) *pubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	pub, ok := p.publishers[topic]
	if !ok {
		pub = p.client.Publisher(topic)
		p.publishers[topic] = pub
	}
	return pub
}

// Close flushes pending messages and stops every topic publisher. The
// client itself is owned by the caller.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, pub := range p.publishers {
		pub.Stop()
		delete(p.publishers, topic)
	}
}
