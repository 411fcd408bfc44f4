package notification

import "fmt"

// StdoutNotifier is a simple notifier that prints to stdout.
type StdoutNotifier struct{}

// NewStdoutNotifier creates a new stdout notifier.
func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{}
}

// Send prints the notification to stdout.
func (n *StdoutNotifier) Send(notification Notification) error {
	fmt.Printf("[%s] %s: %s\n",
		notification.Kind,
		notification.Title,
		notification.Message)
	return nil
}
