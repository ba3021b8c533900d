package core

// BrokerMessage is a single event delivered on a Broker subject.
type BrokerMessage struct {
	Subject string
	Data    []byte
}

type (
	// BrokerSubscription is a live subscription that must be closed when done.
	BrokerSubscription interface {
		C() <-chan BrokerMessage
		Close() error
	}

	// Broker is any service that can fan realtime events out to subscribers.
	// Subjects are dot-separated and may be subscribed to with wildcards
	// ("chat.room.*"), NATS-style.
	Broker interface {
		Publish(subject string, data []byte) error
		Subscribe(subject string) (BrokerSubscription, error)
		Close()
	}
)
