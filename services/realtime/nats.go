// Package realtimesvc implements the core.Broker on NATS, with an
// in-memory fallback for tests.
package realtimesvc

import (
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core"
)

const subscriptionBuffer = 64

type natsBroker struct {
	conn   *nats.Conn
	server *natsserver.Server // set when running embedded
	logger core.Logger
}

var _ core.Broker = (*natsBroker)(nil)

// Connect dials NATS per the configuration, starting an in-process
// nats-server first when conf.Nats.Embedded is set.
func Connect(conf *core.Config, logger core.Logger) (*natsBroker, error) {
	broker := &natsBroker{logger: logger}

	url := conf.Nats.URL
	if conf.Nats.Embedded {
		srv, err := natsserver.NewServer(&natsserver.Options{
			Host:   "127.0.0.1",
			Port:   -1, // random port
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating embedded nats server")
		}
		go srv.Start()
		if !srv.ReadyForConnections(5 * time.Second) {
			return nil, errors.New("embedded nats server not ready")
		}
		broker.server = srv
		url = srv.ClientURL()
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to nats at %s", url)
	}
	broker.conn = conn
	return broker, nil
}

func (b *natsBroker) Publish(subject string, data []byte) error {
	return errors.Wrap(b.conn.Publish(subject, data), "publishing to nats")
}

func (b *natsBroker) Subscribe(subject string) (core.BrokerSubscription, error) {
	sub := &natsSubscription{
		c:      make(chan core.BrokerMessage, subscriptionBuffer),
		logger: b.logger,
	}

	natsSub, err := b.conn.Subscribe(subject, sub.deliver)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing to %s", subject)
	}
	sub.sub = natsSub
	return sub, nil
}

func (b *natsBroker) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
	}
}

type natsSubscription struct {
	sub    *nats.Subscription
	logger core.Logger

	mu     sync.Mutex
	closed bool
	c      chan core.BrokerMessage
}

func (s *natsSubscription) C() <-chan core.BrokerMessage { return s.c }

// deliver runs on the nats delivery goroutine. Unsubscribe does not wait
// for in-flight callbacks, so the channel may only be closed under the
// same lock that guards the send.
func (s *natsSubscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.c <- core.BrokerMessage{Subject: msg.Subject, Data: msg.Data}:
	default:
		// drop when the consumer falls behind
		s.logger.Warn("nats subscription buffer full, dropping message", msg.Subject)
	}
}

func (s *natsSubscription) Close() error {
	err := s.sub.Unsubscribe()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.c)
	}
	return errors.Wrap(err, "unsubscribing")
}
