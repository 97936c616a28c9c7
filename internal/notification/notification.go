// Package notification renders and delivers the customer-facing mails the
// purchase saga produces: an acknowledgement when the request is accepted,
// and a success or error mail when the order reaches a terminal state.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"storefront/internal/purchase"
)

// Message is one rendered notification ready for delivery.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers rendered messages. Implementations decide the channel
// (SMTP relay, log line, test recorder).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var (
	receivedTemplate = template.Must(template.New("received").Parse(
		`Hello,

we received your order placed on {{.OrderDate.Format "2006-01-02"}} and are processing it now.

Items:
{{range .Products}}  - {{.Sku}} x{{.Quantity}} @ {{printf "%.2f" .Price}}
{{end}}
Transaction reference: {{.TransactionID}}
`))

	successTemplate = template.Must(template.New("success").Parse(
		`Hello,

your order {{.OrderNumber}} is confirmed.

Items:
{{range .Products}}  - {{.Sku}} x{{.Quantity}} @ {{printf "%.2f" .Price}}
{{end}}
Total charged: {{printf "%.2f" .OrderTotal}}
Tracking number: {{.TrackingNumber}}
`))

	errorTemplate = template.Must(template.New("error").Parse(
		`Hello,

unfortunately we could not complete your order{{if .OrderNumber}} {{.OrderNumber}}{{end}} placed on {{.OrderDate.Format "2006-01-02"}}. Any charges made have been reversed.

Transaction reference: {{.TransactionID}}
`))
)

// Client renders notifications and hands them to a Sender.
type Client struct {
	sender Sender
}

// NewClient constructs a notification client delivering through sender.
func NewClient(sender Sender) *Client {
	return &Client{sender: sender}
}

// SendOrderReceived acknowledges that the purchase request was accepted.
func (c *Client) SendOrderReceived(ctx context.Context, req purchase.ReceivedNotification) error {
	body, err := render(receivedTemplate, req)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, Message{
		Recipient: req.CustomerEmail,
		Subject:   "We received your order",
		Body:      body,
	})
}

// SendOrderSuccess reports a completed order.
func (c *Client) SendOrderSuccess(ctx context.Context, req purchase.SuccessNotification) error {
	body, err := render(successTemplate, req)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, Message{
		Recipient: req.CustomerEmail,
		Subject:   fmt.Sprintf("Order %s confirmed", req.OrderNumber),
		Body:      body,
	})
}

// SendOrderError reports a failed order.
func (c *Client) SendOrderError(ctx context.Context, req purchase.ErrorNotification) error {
	body, err := render(errorTemplate, req)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, Message{
		Recipient: req.CustomerEmail,
		Subject:   "There was a problem with your order",
		Body:      body,
	})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s notification: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// LogSender writes notifications to the log instead of delivering them.
// Used when no mail relay is configured.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender constructs a log-backed sender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.InfoContext(ctx, "notification sent",
		"recipient", msg.Recipient,
		"subject", msg.Subject,
	)
	return nil
}
