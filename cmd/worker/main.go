package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/inkfable/storypress/internal/assembly"
	"github.com/inkfable/storypress/internal/assets"
	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/aws"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/credits"
	"github.com/inkfable/storypress/internal/fulfillment"
	"github.com/inkfable/storypress/internal/idempotency"
	"github.com/inkfable/storypress/internal/metrics"
	"github.com/inkfable/storypress/internal/notify"
	"github.com/inkfable/storypress/internal/orders"
	"github.com/inkfable/storypress/internal/pages"
	"github.com/inkfable/storypress/internal/storage"
)

func buildProcessor(clients *aws.AWSClients) *fulfillment.Processor {
	em := metrics.NewEmitter(clients.CloudWatch, "Storypress")

	ordersStore := orders.NewStore(clients.DynamoDB, os.Getenv("ORDERS_TABLE"))
	booksStore := books.NewStore(clients.DynamoDB, os.Getenv("BOOKS_TABLE"))
	pagesStore := pages.NewStore(clients.DynamoDB, os.Getenv("FINAL_PAGES_TABLE"))
	assetsStore := assets.NewStore(clients.DynamoDB, os.Getenv("GENERATED_ASSETS_TABLE"))
	creditsStore := credits.NewStore(clients.DynamoDB, os.Getenv("USER_CREDITS_TABLE"), os.Getenv("CREDIT_LEDGER_TABLE"), ordersStore)
	reservations := idempotency.NewStore(clients.DynamoDB, os.Getenv("IDEMPOTENCY_TABLE"), 48*time.Hour)
	audit := auditlog.NewLog(clients.DynamoDB, os.Getenv("AUDIT_EVENTS_TABLE"))

	uploader := storage.NewUploader(clients.S3, os.Getenv("PDF_BUCKET"), os.Getenv("PDF_PREFIX"))
	assembler := assembly.NewAssembler(pagesStore, assetsStore, booksStore, uploader, assembly.FetchImageHTTP)

	var mailer notify.Mailer
	if m := notify.NewSESMailer(clients.SES, os.Getenv("SES_FROM_ADDRESS")); m != nil {
		mailer = m
	}
	notifier := notify.NewDispatcher(reservations, audit, ordersStore, creditsStore, mailer, em)

	return fulfillment.NewProcessor(ordersStore, booksStore, assembler, audit, notifier, em)
}

func main() {
	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	processor := buildProcessor(clients)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","source":"local"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{
					Body: testBody,
				},
			},
		}
		if err := processor.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(processor.Handle)
}
