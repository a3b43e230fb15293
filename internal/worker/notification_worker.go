package worker

// notification_worker.go
// Processes notification jobs from QueueNotifications: emails every
// recipient with an address and, when configured, forwards the event to the
// notification gateway through the circuit breaker.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"metersquare/internal/dto"
	"metersquare/internal/infra"
	"metersquare/internal/service"

	"github.com/rs/zerolog/log"
)

// ErrPermanent marks a job that will never succeed; it skips the retries.
var ErrPermanent = errors.New("permanent job failure")

type mailSender interface {
	Enabled() bool
	Send(to []string, subject, body string) error
}

type eventPublisher interface {
	Enabled() bool
	Publish(ctx context.Context, n dto.Notification) error
}

type breaker interface {
	Execute(fn func() error) error
}

// NotificationWorker delivers dto.Notification payloads.
type NotificationWorker struct {
	mailer  mailSender
	gateway eventPublisher
	cb      breaker
}

// NewNotificationWorker wires the delivery channels. cb guards the gateway
// only; SMTP failures are retried by the pool.
func NewNotificationWorker(mailer mailSender, gateway eventPublisher, cb breaker) *NotificationWorker {
	return &NotificationWorker{mailer: mailer, gateway: gateway, cb: cb}
}

// Process sends the email and the gateway event. Both channels are
// attempted; the first failure is returned so the job is retried.
func (w *NotificationWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var n dto.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("%w: invalid payload: %v", ErrPermanent, err)
	}
	logger := log.With().Str("event", n.Event).Str("requisition", n.RequisitionCode).Logger()

	var errs []error
	if w.mailer != nil && w.mailer.Enabled() {
		to := recipientEmails(n.Recipients)
		if len(to) == 0 {
			logger.Debug().Msg("notification_worker: no recipient has an email address")
		} else if err := w.mailer.Send(to, subjectFor(n), bodyFor(n)); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info().Int("recipients", len(to)).Msg("notification_worker: email sent")
		}
	}

	if w.gateway != nil && w.gateway.Enabled() {
		publish := func() error { return w.gateway.Publish(ctx, n) }
		var err error
		if w.cb != nil {
			err = w.cb.Execute(publish)
		} else {
			err = publish()
		}
		var rejected *infra.GatewayRejectedError
		switch {
		case errors.As(err, &rejected):
			// Retrying would resend the email as well.
			logger.Warn().Int("status", rejected.Status).Msg("notification_worker: gateway rejected event, dropping")
		case err != nil:
			errs = append(errs, err)
		default:
			logger.Info().Msg("notification_worker: gateway event published")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func recipientEmails(rs []dto.Recipient) []string {
	seen := make(map[string]bool, len(rs))
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Email == nil {
			continue
		}
		addr := strings.TrimSpace(*r.Email)
		if addr == "" || seen[strings.ToLower(addr)] {
			continue
		}
		seen[strings.ToLower(addr)] = true
		out = append(out, addr)
	}
	return out
}

var eventTitles = map[string]string{
	service.EventRequisitionSent:           "awaiting your approval",
	service.EventRequisitionFirstApproved:  "awaiting second approval",
	service.EventRequisitionFirstRejected:  "rejected by the project manager",
	service.EventRequisitionSecondApproved: "approved, ready to dispatch",
	service.EventRequisitionSecondRejected: "rejected by the production manager",
	service.EventRequisitionDispatched:     "dispatched to your project",
}

func subjectFor(n dto.Notification) string {
	title, ok := eventTitles[n.Event]
	if !ok {
		title = n.Event
	}
	return fmt.Sprintf("Requisition %s %s", n.RequisitionCode, title)
}

func bodyFor(n dto.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requisition %s is now %s.\n", n.RequisitionCode, n.Status)
	fmt.Fprintf(&b, "Action by %s (%s).\n", n.ActorName, n.ActorRole)
	if n.Reason != nil && *n.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", *n.Reason)
	}
	return b.String()
}
