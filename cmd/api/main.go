package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/inkfable/storypress/internal/aws"
	"github.com/inkfable/storypress/internal/handlers"
	"github.com/inkfable/storypress/internal/printvendor"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func vendorConfigFromEnv() printvendor.Config {
	return printvendor.Config{
		BaseURL:       os.Getenv("PRINT_API_BASE_URL"),
		TokenURL:      os.Getenv("PRINT_TOKEN_URL"),
		ClientID:      os.Getenv("PRINT_CLIENT_ID"),
		ClientSecret:  os.Getenv("PRINT_CLIENT_SECRET"),
		ContactEmail:  os.Getenv("PRINT_CONTACT_EMAIL"),
		PODPackageID:  os.Getenv("PRINT_POD_PACKAGE_ID"),
		ShippingLevel: os.Getenv("PRINT_SHIPPING_LEVEL"),
		ShipName:      os.Getenv("PRINT_SHIP_NAME"),
		ShipStreet:    os.Getenv("PRINT_SHIP_STREET"),
		ShipCity:      os.Getenv("PRINT_SHIP_CITY"),
		ShipState:     os.Getenv("PRINT_SHIP_STATE"),
		ShipPostal:    os.Getenv("PRINT_SHIP_POSTAL"),
		ShipCountry:   os.Getenv("PRINT_SHIP_COUNTRY"),
		ShipPhone:     os.Getenv("PRINT_SHIP_PHONE"),
	}
}

func main() {
	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient: clients.DynamoDB,
		SQSClient:      clients.SQS,
		SESClient:      clients.SES,
		CloudWatch:     clients.CloudWatch,

		OrdersTable:      os.Getenv("ORDERS_TABLE"),
		BooksTable:       os.Getenv("BOOKS_TABLE"),
		FinalPagesTable:  os.Getenv("FINAL_PAGES_TABLE"),
		AssetsTable:      os.Getenv("GENERATED_ASSETS_TABLE"),
		UserCreditsTable: os.Getenv("USER_CREDITS_TABLE"),
		LedgerTable:      os.Getenv("CREDIT_LEDGER_TABLE"),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		AuditEventsTable: os.Getenv("AUDIT_EVENTS_TABLE"),

		QueueURL:  os.Getenv("FULFILLMENT_QUEUE_URL"),
		TTLWindow: 48 * time.Hour,

		WebhookSecret:    os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		WebhookTolerance: 5 * time.Minute,

		Vendor:      vendorConfigFromEnv(),
		FromAddress: os.Getenv("SES_FROM_ADDRESS"),
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
