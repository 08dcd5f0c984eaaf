package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/credits"
	"github.com/inkfable/storypress/internal/fulfillment"
	"github.com/inkfable/storypress/internal/idempotency"
	"github.com/inkfable/storypress/internal/metrics"
	"github.com/inkfable/storypress/internal/orders"
)

// Publisher sends the fulfillment trigger. Satisfied by *aws.Publisher.
type Publisher interface {
	SendFulfillmentMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// BookCreator lazily creates the book for an order. Satisfied by *books.Store.
type BookCreator interface {
	EnsureForOrder(ctx context.Context, orderID, userID, storyID string) (*books.Book, error)
}

// Gateway ingests verified payment-provider events. Correctness under
// duplicate delivery rests on one atomic insert-or-fail reservation per event
// id; there are no locks.
type Gateway struct {
	reservations *idempotency.Store
	audit        *auditlog.Log
	orders       *orders.Store
	books        BookCreator
	credits      *credits.Store
	publisher    Publisher
	metrics      *metrics.Emitter
}

// NewGateway wires a Gateway.
func NewGateway(reservations *idempotency.Store, audit *auditlog.Log, ordersStore *orders.Store, bookCreator BookCreator, creditsStore *credits.Store, publisher Publisher, em *metrics.Emitter) *Gateway {
	return &Gateway{
		reservations: reservations,
		audit:        audit,
		orders:       ordersStore,
		books:        bookCreator,
		credits:      creditsStore,
		publisher:    publisher,
		metrics:      em,
	}
}

// Process handles one verified event.
//   - duplicate event id: success, zero side effects.
//   - checkout completed: order -> paid, book ensured, paid credits granted,
//     fulfillment enqueued.
//   - checkout expired: order -> expired only; a paid order is never reverted.
//   - any other type: accepted and ignored.
func (g *Gateway) Process(ctx context.Context, raw []byte) (*Outcome, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}

	created, existing, err := g.reservations.Reserve(ctx, idempotency.KindPaymentEvent, event.ID)
	if err != nil {
		return nil, err
	}
	if !created {
		switch existing.Status {
		case idempotency.StatusDone, idempotency.StatusInProgress:
			// at-least-once delivery: the other copy wins, this one no-ops
			g.metrics.Count(ctx, "WebhookDuplicate", nil)
			dup := &Outcome{Result: ResultDuplicate}
			if existing.ResponseBody != "" {
				var prior Outcome
				if json.Unmarshal([]byte(existing.ResponseBody), &prior) == nil {
					dup.OrderID = prior.OrderID
				}
			}
			return dup, nil
		case idempotency.StatusFailed:
			// previous attempt died; take the slot over and reprocess
			if err := g.reservations.TakeOver(ctx, idempotency.KindPaymentEvent, event.ID); err != nil {
				if errors.Is(err, idempotency.ErrNotTakeable) {
					return &Outcome{Result: ResultDuplicate}, nil
				}
				return nil, err
			}
		default:
			return &Outcome{Result: ResultDuplicate}, nil
		}
	}

	outcome, err := g.handle(ctx, &event)
	if err != nil {
		_ = g.reservations.MarkFailed(ctx, idempotency.KindPaymentEvent, event.ID, err.Error())
		_ = g.audit.Record(ctx, auditlog.KindPaymentEvent, event.ID, auditlog.StatusFailed, event.Type, "webhook processing", map[string]string{"error": err.Error()})
		g.metrics.Count(ctx, "WebhookFailed", nil)
		return nil, err
	}

	body, _ := json.Marshal(outcome)
	if err := g.reservations.MarkDone(ctx, idempotency.KindPaymentEvent, event.ID, string(body), 200); err != nil {
		return nil, err
	}
	_ = g.audit.Record(ctx, auditlog.KindPaymentEvent, event.ID, auditlog.StatusSuccess, event.Type, "webhook processing", outcome)
	g.metrics.Count(ctx, "WebhookProcessed", map[string]string{"result": outcome.Result})
	return outcome, nil
}

func (g *Gateway) handle(ctx context.Context, event *Event) (*Outcome, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		return g.handleCompleted(ctx, event)
	case EventCheckoutExpired:
		return g.handleExpired(ctx, event)
	default:
		return &Outcome{Result: ResultIgnored}, nil
	}
}

func (g *Gateway) handleCompleted(ctx context.Context, event *Event) (*Outcome, error) {
	orderID := event.Data.Object.ClientReferenceID
	if orderID == "" {
		log.Printf("[gateway] completed event %s carries no order reference", event.ID)
		return &Outcome{Result: ResultUnknownOrder}, nil
	}

	order, err := g.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		// logged, but the request itself succeeds: redelivery won't help
		log.Printf("[gateway] completed event %s references unknown order %s", event.ID, orderID)
		return &Outcome{Result: ResultUnknownOrder, OrderID: orderID}, nil
	}

	err = g.orders.MarkPaid(ctx, orderID, event.Data.Object.ID, event.Data.Object.PaymentIntent, event.Data.Object.CustomerDetails.Email)
	if err != nil && !errors.Is(err, orders.ErrStatusMismatch) {
		return nil, err
	}
	// ErrStatusMismatch here means a competing delivery already flipped the
	// order; the remaining steps are idempotent, so fall through.

	if _, err := g.books.EnsureForOrder(ctx, orderID, order.UserID, order.StoryID); err != nil {
		return nil, fmt.Errorf("ensure book: %w", err)
	}

	if err := g.credits.GrantPaidRerollCredits(ctx, order.UserID, orderID, 0); err != nil {
		return nil, fmt.Errorf("grant paid credits: %w", err)
	}

	msg := fulfillment.Message{OrderID: orderID, Source: "webhook", CorrelationID: event.ID}
	body, _ := json.Marshal(msg)
	if err := g.publisher.SendFulfillmentMessage(ctx, string(body), map[string]string{
		"order_id": orderID,
		"event_id": event.ID,
	}); err != nil {
		return nil, fmt.Errorf("enqueue fulfillment: %w", err)
	}

	return &Outcome{Result: ResultProcessed, OrderID: orderID}, nil
}

func (g *Gateway) handleExpired(ctx context.Context, event *Event) (*Outcome, error) {
	orderID := event.Data.Object.ClientReferenceID
	if orderID == "" {
		return &Outcome{Result: ResultUnknownOrder}, nil
	}

	err := g.orders.MarkExpired(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			// already paid or already expired: either way, nothing to do
			return &Outcome{Result: ResultIgnored, OrderID: orderID}, nil
		}
		return nil, err
	}
	return &Outcome{Result: ResultProcessed, OrderID: orderID}, nil
}
