package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/inkfable/storypress/internal/assembly"
	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/metrics"
	"github.com/inkfable/storypress/internal/notify"
	"github.com/inkfable/storypress/internal/orders"
)

// Assembler renders and stores a book's PDFs.
type Assembler interface {
	Assemble(ctx context.Context, book *books.Book) (*assembly.Output, error)
}

// Processor handles fulfillment triggers and sequences PDF assembly for paid
// orders. Safe to invoke any number of times for the same order.
type Processor struct {
	orders    *orders.Store
	books     *books.Store
	assembler Assembler
	audit     *auditlog.Log
	notifier  notify.MilestoneSender
	metrics   *metrics.Emitter
}

// NewProcessor wires a Processor.
func NewProcessor(ordersStore *orders.Store, booksStore *books.Store, assembler Assembler, audit *auditlog.Log, notifier notify.MilestoneSender, em *metrics.Emitter) *Processor {
	return &Processor{
		orders:    ordersStore,
		books:     booksStore,
		assembler: assembler,
		audit:     audit,
		notifier:  notifier,
		metrics:   em,
	}
}

// Handle receives an SQS batch event and processes each message. Returning an
// error makes the host retry the batch and eventually DLQ it; returning nil
// marks the work permanently done.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		var msg Message
		if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
			return fmt.Errorf("invalid message body: %w", err)
		}
		log.Printf("[fulfillment] received order=%s source=%s corr=%s", msg.OrderID, msg.Source, msg.CorrelationID)

		result, err := p.ProcessOrder(ctx, msg.OrderID)
		if err != nil {
			log.Printf("[fulfillment] error order=%s: %v", msg.OrderID, err)
			return err
		}
		log.Printf("[fulfillment] done order=%s stage=%s", msg.OrderID, result.Stage)
	}
	return nil
}

// ProcessOrder runs the pipeline for one order:
//   - not paid, or no story: Skipped result, nil error. Explicitly not a
//     failure, so the host scheduler must not retry it.
//   - content not generated yet: waiting_for_assets result, nil error. The
//     next delivery (after generation finishes) completes the pipeline.
//   - anything else going wrong: book marked errored, error returned so the
//     host retries per its own backoff.
func (p *Processor) ProcessOrder(ctx context.Context, orderID string) (*Result, error) {
	order, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil || order.PaymentStatus != orders.StatusPaid || order.StoryID == "" {
		p.metrics.Count(ctx, "FulfillmentSkipped", nil)
		return &Result{OrderID: orderID, Stage: StageSkipped}, nil
	}

	book, err := p.books.EnsureForOrder(ctx, orderID, order.UserID, order.StoryID)
	if err != nil {
		return nil, fmt.Errorf("ensure book: %w", err)
	}
	if err := p.books.SetPrintStatus(ctx, orderID, books.StatusPendingGeneration); err != nil {
		return nil, err
	}

	handle, err := p.audit.Begin(ctx, auditlog.KindFulfillment, orderID, "queued", "fulfillment run", nil)
	if err != nil {
		return nil, err
	}

	output, err := p.assembler.Assemble(ctx, book)
	if err != nil {
		var notReady *assembly.NotReadyError
		if errors.As(err, &notReady) {
			// expected wait state: the book is left untouched and the audit
			// entry records why, as a success
			if aerr := handle.Succeed(ctx, StageWaitingForAssets, map[string]string{"reason": notReady.Reason}); aerr != nil {
				return nil, aerr
			}
			p.metrics.Count(ctx, "FulfillmentWaiting", nil)
			return &Result{OrderID: orderID, Stage: StageWaitingForAssets}, nil
		}

		if serr := p.books.SetPrintStatus(ctx, orderID, books.StatusErrored); serr != nil {
			log.Printf("[fulfillment] failed to mark book errored order=%s: %v", orderID, serr)
		}
		if aerr := handle.Fail(ctx, "", err); aerr != nil {
			log.Printf("[fulfillment] failed to close audit entry order=%s: %v", orderID, aerr)
		}
		p.metrics.Count(ctx, "FulfillmentErrored", nil)
		return nil, fmt.Errorf("assemble book: %w", err)
	}

	if err := handle.Succeed(ctx, StageComplete, output); err != nil {
		return nil, err
	}
	p.metrics.Count(ctx, "FulfillmentCompleted", nil)

	if p.notifier != nil {
		if nerr := p.notifier.SendOrderMilestoneEmail(ctx, orderID, notify.MilestoneProcessingComplete); nerr != nil {
			// notification problems never fail the fulfillment run
			log.Printf("[fulfillment] milestone email order=%s: %v", orderID, nerr)
		}
	}

	return &Result{
		OrderID:     orderID,
		Stage:       StageComplete,
		InteriorURL: output.InteriorURL,
		CoverURL:    output.CoverURL,
	}, nil
}
