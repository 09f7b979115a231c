// Package notifier delivers one-time codes to out-of-band channels.
// The core only hands over a recipient and a short human-readable message;
// templates and provider credentials live with the concrete senders.
package notifier

import "context"

// Channel identifies the delivery medium for a message
type Channel string

const (
	// ChannelEmail delivers to an email address
	ChannelEmail Channel = "email"
	// ChannelSMS delivers to a phone number
	ChannelSMS Channel = "sms"
)

// Notifier delivers a message to a recipient on the given channel
type Notifier interface {
	Deliver(ctx context.Context, channel Channel, recipient, message string) error
}
