package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/credits"
	"github.com/inkfable/storypress/internal/dynamotest"
	"github.com/inkfable/storypress/internal/idempotency"
	"github.com/inkfable/storypress/internal/orders"
)

type capturePublisher struct {
	bodies []string
	fail   bool
}

func (p *capturePublisher) SendFulfillmentMessage(ctx context.Context, messageBody string, attributes map[string]string) error {
	if p.fail {
		return fmt.Errorf("sqs unavailable")
	}
	p.bodies = append(p.bodies, messageBody)
	return nil
}

type gatewayFixture struct {
	fake      *dynamotest.Fake
	gateway   *Gateway
	orders    *orders.Store
	books     *books.Store
	credits   *credits.Store
	publisher *capturePublisher
}

func newFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	fake := dynamotest.New().
		AddTable("orders", "order_id", "").
		AddTable("books", "order_id", "").
		AddTable("user_credits", "user_id", "").
		AddTable("credit_ledger", "user_id", "entry_id").
		AddTable("idempotency_keys", "idempotency_key", "").
		AddTable("audit_events", "subject_key", "event_id")

	ordersStore := orders.NewStore(fake, "orders")
	booksStore := books.NewStore(fake, "books")
	creditsStore := credits.NewStore(fake, "user_credits", "credit_ledger", ordersStore)
	reservations := idempotency.NewStore(fake, "idempotency_keys", 0)
	audit := auditlog.NewLog(fake, "audit_events")
	pub := &capturePublisher{}

	return &gatewayFixture{
		fake:      fake,
		gateway:   NewGateway(reservations, audit, ordersStore, booksStore, creditsStore, pub, nil),
		orders:    ordersStore,
		books:     booksStore,
		credits:   creditsStore,
		publisher: pub,
	}
}

func completedEvent(eventID, orderID string) []byte {
	var ev Event
	ev.ID = eventID
	ev.Type = EventCheckoutCompleted
	ev.Data.Object.ID = "cs_" + orderID
	ev.Data.Object.ClientReferenceID = orderID
	ev.Data.Object.PaymentIntent = "pi_" + orderID
	ev.Data.Object.CustomerDetails.Email = "buyer@example.com"
	b, _ := json.Marshal(ev)
	return b
}

func expiredEvent(eventID, orderID string) []byte {
	var ev Event
	ev.ID = eventID
	ev.Type = EventCheckoutExpired
	ev.Data.Object.ClientReferenceID = orderID
	b, _ := json.Marshal(ev)
	return b
}

func seedPendingOrder(t *testing.T, fx *gatewayFixture, orderID string) {
	t.Helper()
	err := fx.orders.Put(context.Background(), orders.Order{
		OrderID:       orderID,
		UserID:        "user-1",
		StoryID:       "story-1",
		PaymentStatus: orders.StatusPending,
		AmountCents:   2999,
		Currency:      "usd",
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestProcess_CompletedHappyPath(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	seedPendingOrder(t, fx, "order-1")

	outcome, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1"))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.Result != ResultProcessed || outcome.OrderID != "order-1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	order, err := fx.orders.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.PaymentStatus != orders.StatusPaid {
		t.Fatalf("expected paid, got %s", order.PaymentStatus)
	}
	if order.ShippingEmail != "buyer@example.com" {
		t.Fatalf("shipping email not captured: %q", order.ShippingEmail)
	}

	book, err := fx.books.GetByOrder(ctx, "order-1")
	if err != nil || book == nil {
		t.Fatalf("expected book for order, got %v err=%v", book, err)
	}

	bal, err := fx.credits.GetBalances(ctx, "user-1")
	if err != nil || bal == nil {
		t.Fatalf("expected credits row, got %v err=%v", bal, err)
	}
	if bal.PaidCreditsCents != credits.PaidRerollCents {
		t.Fatalf("expected %d paid cents, got %d", credits.PaidRerollCents, bal.PaidCreditsCents)
	}

	if len(fx.publisher.bodies) != 1 {
		t.Fatalf("expected 1 fulfillment message, got %d", len(fx.publisher.bodies))
	}
}

func TestProcess_DuplicateDeliveryHasNoSideEffects(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	seedPendingOrder(t, fx, "order-1")

	if _, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1")); err != nil {
		t.Fatalf("first Process error: %v", err)
	}
	outcome, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1"))
	if err != nil {
		t.Fatalf("second Process error: %v", err)
	}
	if outcome.Result != ResultDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome.Result)
	}
	if outcome.OrderID != "order-1" {
		t.Fatalf("duplicate should replay the original order id, got %q", outcome.OrderID)
	}

	if len(fx.publisher.bodies) != 1 {
		t.Fatalf("duplicate caused a second enqueue: %d messages", len(fx.publisher.bodies))
	}
	if got := len(fx.fake.Items("credit_ledger")); got != 1 {
		t.Fatalf("duplicate caused extra ledger entries: %d", got)
	}
}

func TestProcess_DistinctEventSameOrderIsIdempotent(t *testing.T) {
	// providers can emit two different events for the same session; the
	// conditional mark-paid tolerates it and the grant keys on the order id
	fx := newFixture(t)
	ctx := context.Background()
	seedPendingOrder(t, fx, "order-1")

	if _, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1")); err != nil {
		t.Fatalf("first Process error: %v", err)
	}
	outcome, err := fx.gateway.Process(ctx, completedEvent("evt_2", "order-1"))
	if err != nil {
		t.Fatalf("second Process error: %v", err)
	}
	if outcome.Result != ResultProcessed {
		t.Fatalf("expected processed, got %s", outcome.Result)
	}

	if got := len(fx.fake.Items("credit_ledger")); got != 1 {
		t.Fatalf("expected exactly one paid grant, got %d ledger entries", got)
	}
	if got := len(fx.fake.Items("books")); got != 1 {
		t.Fatalf("expected exactly one book, got %d", got)
	}
}

func TestProcess_FailedAttemptIsRetriable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	seedPendingOrder(t, fx, "order-1")

	fx.publisher.fail = true
	if _, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1")); err == nil {
		t.Fatalf("expected error while publisher is down")
	}

	// redelivery after the outage must take over the FAILED slot and finish
	fx.publisher.fail = false
	outcome, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1"))
	if err != nil {
		t.Fatalf("redelivery error: %v", err)
	}
	if outcome.Result != ResultProcessed {
		t.Fatalf("expected processed on redelivery, got %s", outcome.Result)
	}
	if len(fx.publisher.bodies) != 1 {
		t.Fatalf("expected 1 fulfillment message, got %d", len(fx.publisher.bodies))
	}
}

func TestProcess_UnknownOrderSucceeds(t *testing.T) {
	fx := newFixture(t)

	outcome, err := fx.gateway.Process(context.Background(), completedEvent("evt_1", "order-missing"))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.Result != ResultUnknownOrder {
		t.Fatalf("expected unknown_order, got %s", outcome.Result)
	}
	if len(fx.publisher.bodies) != 0 {
		t.Fatalf("unknown order must not enqueue fulfillment")
	}
}

func TestProcess_ExpiredNeverRevertsPaid(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	seedPendingOrder(t, fx, "order-1")

	if _, err := fx.gateway.Process(ctx, completedEvent("evt_1", "order-1")); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	outcome, err := fx.gateway.Process(ctx, expiredEvent("evt_2", "order-1"))
	if err != nil {
		t.Fatalf("expired Process error: %v", err)
	}
	if outcome.Result != ResultIgnored {
		t.Fatalf("expected ignored, got %s", outcome.Result)
	}

	order, _ := fx.orders.Get(ctx, "order-1")
	if order.PaymentStatus != orders.StatusPaid {
		t.Fatalf("paid order was reverted to %s", order.PaymentStatus)
	}
}

func TestProcess_ExpiredPendingOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	seedPendingOrder(t, fx, "order-1")

	outcome, err := fx.gateway.Process(ctx, expiredEvent("evt_1", "order-1"))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.Result != ResultProcessed {
		t.Fatalf("expected processed, got %s", outcome.Result)
	}
	order, _ := fx.orders.Get(ctx, "order-1")
	if order.PaymentStatus != orders.StatusExpired {
		t.Fatalf("expected expired, got %s", order.PaymentStatus)
	}
}

func TestProcess_UnrecognizedTypeIgnored(t *testing.T) {
	fx := newFixture(t)

	raw := []byte(`{"id":"evt_1","type":"invoice.created","data":{"object":{}}}`)
	outcome, err := fx.gateway.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if outcome.Result != ResultIgnored {
		t.Fatalf("expected ignored, got %s", outcome.Result)
	}
}
