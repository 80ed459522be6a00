// Package memory contains an in-memory publisher used when Pub/Sub is not
// configured and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded publish. Data holds the JSON the Pub/Sub
// publisher would have sent.
type Message struct {
	ID    string
	Topic string
	Data  []byte
}

// Publisher records published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish encodes payload and records it under a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Data: data})
	return id, nil
}

// Messages returns a copy of the recorded publishes.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Decode unmarshals the i-th message into v.
func (p *Publisher) Decode(i int, v any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.messages) {
		return fmt.Errorf("no message at index %d", i)
	}
	return json.Unmarshal(p.messages[i].Data, v)
}
