package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/inkfable/storypress/internal/assets"
	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/aws"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/credits"
	"github.com/inkfable/storypress/internal/gateway"
	"github.com/inkfable/storypress/internal/idempotency"
	"github.com/inkfable/storypress/internal/metrics"
	"github.com/inkfable/storypress/internal/notify"
	"github.com/inkfable/storypress/internal/orders"
	"github.com/inkfable/storypress/internal/pages"
	"github.com/inkfable/storypress/internal/printvendor"
	"github.com/inkfable/storypress/internal/validation"
)

// HandlerConfig groups dependencies for the API surface.
type HandlerConfig struct {
	DynamoDBClient aws.DynamoDBAPI
	SQSClient      aws.SQSAPI
	SESClient      aws.SESAPI
	CloudWatch     aws.CloudWatchAPI

	OrdersTable      string
	BooksTable       string
	FinalPagesTable  string
	AssetsTable      string
	UserCreditsTable string
	LedgerTable      string
	IdempotencyTable string
	AuditEventsTable string

	QueueURL  string
	TTLWindow time.Duration

	WebhookSecret    string
	WebhookTolerance time.Duration

	Vendor      printvendor.Config
	FromAddress string
}

type api struct {
	cfg HandlerConfig
	v   *validatorv10.Validate

	reservations *idempotency.Store
	audit        *auditlog.Log
	orders       *orders.Store
	books        *books.Store
	pages        *pages.Store
	assets       *assets.Store
	credits      *credits.Store
	gateway      *gateway.Gateway
	vendor       *printvendor.Adapter
	publisher    *aws.Publisher
	metrics      *metrics.Emitter
}

// RegisterRoutes wires every store and registers the webhook, internal and
// admin routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	em := metrics.NewEmitter(cfg.CloudWatch, "Storypress")

	reservations := idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow)
	audit := auditlog.NewLog(cfg.DynamoDBClient, cfg.AuditEventsTable)
	ordersStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	booksStore := books.NewStore(cfg.DynamoDBClient, cfg.BooksTable)
	pagesStore := pages.NewStore(cfg.DynamoDBClient, cfg.FinalPagesTable)
	assetsStore := assets.NewStore(cfg.DynamoDBClient, cfg.AssetsTable)
	creditsStore := credits.NewStore(cfg.DynamoDBClient, cfg.UserCreditsTable, cfg.LedgerTable, ordersStore)
	publisher := aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)

	var mailer notify.Mailer
	if m := notify.NewSESMailer(cfg.SESClient, cfg.FromAddress); m != nil {
		mailer = m
	}
	notifier := notify.NewDispatcher(reservations, audit, ordersStore, creditsStore, mailer, em)

	a := &api{
		cfg:          cfg,
		v:            validation.New(),
		reservations: reservations,
		audit:        audit,
		orders:       ordersStore,
		books:        booksStore,
		pages:        pagesStore,
		assets:       assetsStore,
		credits:      creditsStore,
		gateway:      gateway.NewGateway(reservations, audit, ordersStore, booksStore, creditsStore, publisher, em),
		vendor:       printvendor.NewAdapter(cfg.Vendor, nil, booksStore, assetsStore, audit, notifier, em),
		publisher:    publisher,
		metrics:      em,
	}

	r.POST("/webhooks/payment", a.handlePaymentWebhook)
	r.POST("/internal/credits/consume", a.handleConsumeCredits)

	admin := r.Group("/admin")
	{
		admin.POST("/orders/:id/retry", a.handleRetryOrder)
		admin.GET("/orders/:id/events", a.handleOrderEvents)
		admin.GET("/books/:id/preflight", a.handlePreflight)
		admin.POST("/books/:id/submit", a.handleSubmit)
		admin.POST("/books/:id/refresh", a.handleRefresh)
		admin.POST("/stories/:id/pages/approve", a.handleApprovePage)
		admin.GET("/users/:id/credits", a.handleUserCredits)
	}
}
