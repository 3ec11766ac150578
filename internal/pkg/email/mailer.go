package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownTemplate is returned for a Message naming a template the Mailer
// does not have. Retrying cannot fix it.
var ErrUnknownTemplate = errors.New("unknown email template")

// Mailer renders Messages into the base layout and hands them to a Transport.
type Mailer struct {
	transport    Transport
	from         Address
	baseTemplate *template.Template
	templates    map[string]*template.Template
}

// NewMailer parses all templates; a broken template is a startup error.
func NewMailer(transport Transport, from Address) (*Mailer, error) {
	base, err := template.New("base").Parse(BaseTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}

	m := &Mailer{
		transport:    transport,
		from:         from,
		baseTemplate: base,
		templates:    make(map[string]*template.Template),
	}

	sources := map[string]string{
		TemplatePaymentIntent:    PaymentIntentTemplate,
		TemplateTransferSent:     TransferSentTemplate,
		TemplateTransferReceived: TransferReceivedTemplate,
	}
	for name, content := range sources {
		tmpl, err := template.New(name).Funcs(templateFuncs).Parse(content)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		m.templates[name] = tmpl
	}

	return m, nil
}

var templateFuncs = template.FuncMap{
	"money": FormatMinor,
}

// FormatMinor renders an amount in minor units (cents, kobo) as a major unit
// string with the currency code, e.g. 12050 NGN -> "120.50 NGN".
func FormatMinor(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return value
	}
	return value + " " + currency
}

// Render produces the envelope for msg without sending it.
func (m *Mailer) Render(msg *Message) (*Envelope, error) {
	tmpl, ok := m.templates[msg.Template]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, msg.Template)
	}

	var content bytes.Buffer
	if err := tmpl.Execute(&content, msg.Data); err != nil {
		return nil, fmt.Errorf("render %s: %w", msg.Template, err)
	}

	var html bytes.Buffer
	if err := m.baseTemplate.Execute(&html, map[string]interface{}{
		"Subject": msg.Subject,
		"Content": template.HTML(content.String()),
	}); err != nil {
		return nil, fmt.Errorf("render base layout: %w", err)
	}

	return &Envelope{
		From:        m.from,
		To:          Address{Email: msg.To, Name: msg.ToName},
		Subject:     msg.Subject,
		HTMLContent: html.String(),
		Template:    msg.Template,
	}, nil
}

// Send renders msg and delivers it.
func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if msg == nil || msg.To == "" {
		return errors.New("email: message has no recipient")
	}
	env, err := m.Render(msg)
	if err != nil {
		return err
	}
	return m.transport.Deliver(ctx, env)
}
