package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkfable/storypress/internal/gateway"
)

// handlePaymentWebhook verifies the provider signature over the raw body and
// hands the event to the gateway. Verified events always return 200 whether or
// not they produced a side effect; signature problems return 400 with no state
// change.
func (a *api) handlePaymentWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if err := gateway.VerifySignature(body, sig, a.cfg.WebhookSecret, a.cfg.WebhookTolerance, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	outcome, err := a.gateway.Process(ctx, body)
	if err != nil {
		// non-2xx makes the provider redeliver; the reservation takeover path
		// lets the redelivery reprocess
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_failed", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}
