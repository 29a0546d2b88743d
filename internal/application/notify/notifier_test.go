package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/pkg/async"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// inlineDispatcher runs jobs synchronously.
type inlineDispatcher struct {
	jobs []string
	err  error
}

func (d *inlineDispatcher) Submit(name string, job async.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, name)
	return job(context.Background())
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	return m.Called(ctx, eventType, payload).Error(0)
}

func TestSendVerification_EmbedsLink(t *testing.T) {
	ml := &mockMailer{}
	var body string
	ml.On("SendEmail", "alice@example.com", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(2) }).
		Return(nil)

	d := &inlineDispatcher{}
	n := New(Deps{Dispatcher: d, Mailer: ml, BaseURL: "https://books.example.com"})
	n.SendVerification(&domain.PendingRegistration{
		Email:     "alice@example.com",
		Name:      "Alice <script>",
		ExpiresAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}, "tok123")

	ml.AssertExpectations(t)
	assert.Contains(t, body, `href="https://books.example.com/v1/users/verify/tok123"`)
	assert.Contains(t, body, "Alice &lt;script&gt;")
	assert.Contains(t, body, "May 1, 2026")
	assert.Equal(t, []string{"verification-email"}, d.jobs)
}

func TestSendVerification_MailFailureIsSwallowed(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	n := New(Deps{Dispatcher: &inlineDispatcher{}, Mailer: ml})
	assert.NotPanics(t, func() {
		n.SendVerification(&domain.PendingRegistration{Email: "a@b.c"}, "t")
	})
}

func TestSendVerification_QueueFull(t *testing.T) {
	ml := &mockMailer{}
	n := New(Deps{Dispatcher: &inlineDispatcher{err: async.ErrQueueFull}, Mailer: ml})

	n.SendVerification(&domain.PendingRegistration{Email: "a@b.c"}, "t")

	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendOrderConfirmation_MailAndEvent(t *testing.T) {
	ml := &mockMailer{}
	var body string
	ml.On("SendEmail", "bob@example.com", "Your Fern & Folio order o1", mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(2) }).
		Return(nil)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, EventOrderPlaced, mock.AnythingOfType("domain.Order")).Return(nil)

	d := &inlineDispatcher{}
	n := New(Deps{Dispatcher: d, Mailer: ml, Events: pub})
	n.SendOrderConfirmation(&domain.User{Name: "Bob", Email: "bob@example.com"}, &domain.Order{
		OrderID:     "o1",
		Status:      domain.OrderPending,
		TotalAmount: 2598,
		Items:       []domain.OrderItem{{Title: "Dune", Quantity: 2, Price: 1299}},
	})

	ml.AssertExpectations(t)
	pub.AssertExpectations(t)
	require.Equal(t, []string{"order-confirmation-email", "order-placed-event"}, d.jobs)
	assert.Contains(t, body, "25.98")
	assert.Contains(t, body, "12.99")
}

func TestSendOrderConfirmation_NoEventsConfigured(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d := &inlineDispatcher{}
	New(Deps{Dispatcher: d, Mailer: ml}).SendOrderConfirmation(&domain.User{Email: "a@b.c"}, &domain.Order{OrderID: "o1"})

	assert.Equal(t, []string{"order-confirmation-email"}, d.jobs)
}
