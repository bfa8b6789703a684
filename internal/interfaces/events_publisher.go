package interfaces

// EventPublisher publishes application events after the ledger core has
// committed. The core itself never publishes.
type EventPublisher interface {
	Publish(topic string, event any) error
}
