package realtimesvc

import (
	"strings"
	"sync"

	"github.com/kazihub/kazi/core"
)

// memoryBroker is an in-process core.Broker with NATS-style subject
// matching. It backs the test suites.
type memoryBroker struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]string
	closed bool
}

var _ core.Broker = (*memoryBroker)(nil)

func NewMemoryBroker() *memoryBroker {
	return &memoryBroker{subs: make(map[*memorySubscription]string)}
}

func (b *memoryBroker) Publish(subject string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, pattern := range b.subs {
		if !subjectMatches(pattern, subject) {
			continue
		}
		select {
		case sub.c <- core.BrokerMessage{Subject: subject, Data: data}:
		default:
			// drop when the consumer falls behind
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(subject string) (core.BrokerSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySubscription{
		broker: b,
		c:      make(chan core.BrokerMessage, subscriptionBuffer),
	}
	b.subs[sub] = subject
	return sub, nil
}

func (b *memoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.c)
		delete(b.subs, sub)
	}
}

// subjectMatches applies NATS wildcard rules: "*" matches one token,
// ">" matches one or more trailing tokens.
func subjectMatches(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, p := range pTokens {
		if p == ">" {
			return i < len(sTokens)
		}
		if i >= len(sTokens) {
			return false
		}
		if p != "*" && p != sTokens[i] {
			return false
		}
	}
	return len(pTokens) == len(sTokens)
}

type memorySubscription struct {
	broker *memoryBroker
	c      chan core.BrokerMessage
	once   sync.Once
}

func (s *memorySubscription) C() <-chan core.BrokerMessage { return s.c }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		if _, ok := s.broker.subs[s]; ok {
			delete(s.broker.subs, s)
			close(s.c)
		}
	})
	return nil
}
