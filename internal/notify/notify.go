package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/credits"
	"github.com/inkfable/storypress/internal/idempotency"
	"github.com/inkfable/storypress/internal/metrics"
	"github.com/inkfable/storypress/internal/orders"
)

// Milestones eligible for exactly one customer email each.
const (
	MilestoneProcessingComplete = "processing_complete"
	MilestonePrinting           = "printing"
	MilestoneShipped            = "shipped"
)

// MilestoneSender is the narrow interface other components trigger emails
// through.
type MilestoneSender interface {
	SendOrderMilestoneEmail(ctx context.Context, orderID, milestone string) error
}

// MilestoneForTransition maps a print-status transition to the milestone it
// announces, or "" when the transition is not customer-visible.
func MilestoneForTransition(prev, next string) string {
	if prev == next {
		return ""
	}
	switch next {
	case books.StatusInProduction:
		return MilestonePrinting
	case books.StatusShipped:
		return MilestoneShipped
	}
	return ""
}

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher sends at-most-once milestone emails. The (orderID, milestone)
// reservation is the gate: a uniqueness miss means the slot was already taken,
// a silent no-op. A FAILED slot stays failed: the key cannot be reused, so
// stuck sends need manual intervention.
type Dispatcher struct {
	reservations *idempotency.Store
	audit        *auditlog.Log
	orders       *orders.Store
	credits      *credits.Store
	mailer       Mailer           // nil when email transport is unconfigured
	metrics      *metrics.Emitter // nil-safe
}

// NewDispatcher wires a Dispatcher. Pass a nil mailer off-production: slots are
// still consumed, nothing is sent.
func NewDispatcher(reservations *idempotency.Store, audit *auditlog.Log, ordersStore *orders.Store, creditsStore *credits.Store, mailer Mailer, emitter *metrics.Emitter) *Dispatcher {
	return &Dispatcher{
		reservations: reservations,
		audit:        audit,
		orders:       ordersStore,
		credits:      creditsStore,
		mailer:       mailer,
		metrics:      emitter,
	}
}

// SendOrderMilestoneEmail reserves the (orderID, milestone) slot and sends the
// templated email when transport and a recipient are available. Duplicate
// invocations are successful no-ops.
func (d *Dispatcher) SendOrderMilestoneEmail(ctx context.Context, orderID, milestone string) error {
	subject, body, ok := milestoneTemplate(milestone)
	if !ok {
		return fmt.Errorf("unknown milestone: %s", milestone)
	}

	slot := orderID + "#" + milestone
	created, existing, err := d.reservations.Reserve(ctx, idempotency.KindNotification, slot)
	if err != nil {
		return fmt.Errorf("reserve notification slot: %w", err)
	}
	if !created {
		log.Printf("[notify] slot already attempted order=%s milestone=%s status=%s", orderID, milestone, existing.Status)
		return nil
	}

	if d.mailer == nil {
		// off-production: consume the slot without sending
		return d.reservations.MarkDone(ctx, idempotency.KindNotification, slot, "", 0)
	}

	recipient, err := d.resolveRecipient(ctx, orderID)
	if err != nil {
		_ = d.reservations.MarkFailed(ctx, idempotency.KindNotification, slot, err.Error())
		return err
	}
	if recipient == "" {
		log.Printf("[notify] no recipient order=%s milestone=%s", orderID, milestone)
		return d.reservations.MarkDone(ctx, idempotency.KindNotification, slot, "", 0)
	}

	if err := d.mailer.Send(ctx, recipient, subject, body); err != nil {
		_ = d.reservations.MarkFailed(ctx, idempotency.KindNotification, slot, err.Error())
		_ = d.audit.Record(ctx, auditlog.KindNotification, orderID, auditlog.StatusFailed, milestone, "milestone email", map[string]string{"recipient": recipient, "error": err.Error()})
		return fmt.Errorf("send milestone email: %w", err)
	}

	if err := d.reservations.MarkDone(ctx, idempotency.KindNotification, slot, "", 0); err != nil {
		return err
	}
	d.metrics.Count(ctx, "MilestoneEmailSent", map[string]string{"milestone": milestone})
	return d.audit.Record(ctx, auditlog.KindNotification, orderID, auditlog.StatusSuccess, milestone, "milestone email", map[string]string{"recipient": recipient})
}

// resolveRecipient prefers the order's shipping email and falls back to the
// account email on the credits row.
func (d *Dispatcher) resolveRecipient(ctx context.Context, orderID string) (string, error) {
	order, err := d.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", fmt.Errorf("order not found: %s", orderID)
	}
	if order.ShippingEmail != "" {
		return order.ShippingEmail, nil
	}
	row, err := d.credits.GetBalances(ctx, order.UserID)
	if err != nil {
		return "", err
	}
	if row != nil {
		return row.Email, nil
	}
	return "", nil
}

func milestoneTemplate(milestone string) (subject, body string, ok bool) {
	switch milestone {
	case MilestoneProcessingComplete:
		return "Your storybook is ready for print",
			"Good news! Your personalized storybook has finished processing and is being prepared for printing.",
			true
	case MilestonePrinting:
		return "Your storybook is being printed",
			"Your personalized storybook has entered production. We'll let you know as soon as it ships.",
			true
	case MilestoneShipped:
		return "Your storybook has shipped",
			"Your personalized storybook is on its way! Check your tracking link for delivery updates.",
			true
	}
	return "", "", false
}
