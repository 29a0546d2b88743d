// Package notify sends the emails and events that follow registration and
// order placement. Every send is queued on the background dispatcher; the
// request that triggered it never waits for delivery, and delivery failures
// are logged without affecting the originating operation.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/pkg/async"
)

// Event types published for orders.
const EventOrderPlaced = "order.placed"

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type submitter interface {
	Submit(name string, job async.Job) error
}

// Notifier composes messages and queues them for delivery.
type Notifier struct {
	dispatcher submitter
	mailer     mailer
	events     publisher
	baseURL    string
}

type Deps struct {
	Dispatcher submitter
	Mailer     mailer
	// Events is optional; nil disables order events.
	Events  publisher
	BaseURL string
}

func New(deps Deps) *Notifier {
	return &Notifier{
		dispatcher: deps.Dispatcher,
		mailer:     deps.Mailer,
		events:     deps.Events,
		baseURL:    deps.BaseURL,
	}
}

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.Name}},</p>
<p>Thanks for signing up at Fern &amp; Folio. Please confirm your email address:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>This link expires on {{.ExpiresAt.Format "Jan 2, 2006 15:04 MST"}}.</p>
</body></html>`))

var orderTmpl = template.Must(template.New("order").Funcs(template.FuncMap{"money": money}).Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.Name}},</p>
<p>Your order <strong>{{.Order.OrderID}}</strong> has been placed.</p>
<table>
<tr><th>Title</th><th>Qty</th><th>Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Title}}</td><td>{{.Quantity}}</td><td>{{money .Price}}</td></tr>
{{end}}</table>
<p>Total: {{money .Order.TotalAmount}}</p>
<p>Status: {{.Order.Status}}</p>
</body></html>`))

func money(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// VerificationLink is the URL embedded in the verification email.
func (n *Notifier) VerificationLink(token string) string {
	return n.baseURL + "/v1/users/verify/" + url.PathEscape(token)
}

// SendVerification queues the verification email for p carrying the raw token.
func (n *Notifier) SendVerification(p *domain.PendingRegistration, token string) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, map[string]any{
		"Name":      p.Name,
		"Link":      n.VerificationLink(token),
		"ExpiresAt": p.ExpiresAt.UTC(),
	})
	if err != nil {
		slog.Error("render verification email", "email", p.Email, "err", err)
		return
	}
	to, body := p.Email, buf.String()
	n.submit("verification-email", func(context.Context) error {
		return n.mailer.SendEmail(to, "Verify your Fern & Folio account", body)
	})
}

// SendOrderConfirmation queues the confirmation email to u and, when events
// are enabled, an order.placed event.
func (n *Notifier) SendOrderConfirmation(u *domain.User, o *domain.Order) {
	var buf bytes.Buffer
	if err := orderTmpl.Execute(&buf, map[string]any{"Name": u.Name, "Order": o}); err != nil {
		slog.Error("render order email", "order_id", o.OrderID, "err", err)
	} else {
		to, body := u.Email, buf.String()
		n.submit("order-confirmation-email", func(context.Context) error {
			return n.mailer.SendEmail(to, "Your Fern & Folio order "+o.OrderID, body)
		})
	}

	if n.events == nil {
		return
	}
	snapshot := *o
	n.submit("order-placed-event", func(ctx context.Context) error {
		return n.events.Publish(ctx, EventOrderPlaced, snapshot)
	})
}

func (n *Notifier) submit(name string, job async.Job) {
	if err := n.dispatcher.Submit(name, job); err != nil {
		slog.Warn("notification not queued", "job", name, "err", err)
	}
}
