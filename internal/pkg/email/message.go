package email

import "context"

// Template identifiers understood by the Mailer.
const (
	TemplatePaymentIntent    = "payment_intent"
	TemplateTransferSent     = "transfer_sent"
	TemplateTransferReceived = "transfer_received"
)

// Message is a templated email waiting to be rendered.
type Message struct {
	To       string         `json:"to"`
	ToName   string         `json:"to_name,omitempty"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// Address is a mailbox with an optional display name.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Envelope is a fully rendered email ready for a transport.
type Envelope struct {
	From        Address `json:"from"`
	To          Address `json:"to"`
	Subject     string  `json:"subject"`
	HTMLContent string  `json:"html"`
	Template    string  `json:"template"`
}

// Transport delivers rendered envelopes.
type Transport interface {
	Deliver(ctx context.Context, env *Envelope) error
}
