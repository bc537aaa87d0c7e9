package executor

import (
	"fmt"

	"insights-export/internal/core/ports"
)

// MessageSender publishes a keyed message; satisfied by messaging.KafkaProducer
type MessageSender interface {
	SendMessage(key string, value []byte, headers map[string]string) error
}

// NewCompletionNotifier selects the notifier implementation by name
func NewCompletionNotifier(impl string, sender MessageSender) (ports.CompletionNotifier, error) {
	switch impl {
	case "kafka", "notifications":
		if sender == nil {
			return nil, fmt.Errorf("%s notifier requires a message sender", impl)
		}
		return NewNotificationsBasedCompletionNotifier(sender), nil
	case "", "null":
		return NewNullCompletionNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown completion notifier implementation: %s", impl)
	}
}
