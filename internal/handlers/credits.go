package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkfable/storypress/internal/credits"
	"github.com/inkfable/storypress/internal/validation"
)

// handleConsumeCredits is called by the generation pipeline before it runs a
// billable operation. Paid users pass through for free; free users have the
// operation cost debited from their starter balance atomically.
func (a *api) handleConsumeCredits(c *gin.Context) {
	var req validation.ConsumeCreditsRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}

	ctx := c.Request.Context()

	if err := a.credits.EnsureStarterCredits(ctx, req.UserID, req.Email); err != nil {
		log.Printf("[handlers] ensure starter credits user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credit_init_failed"})
		return
	}

	result, err := a.credits.ConsumeGenerationCredit(ctx, req.UserID, req.Operation)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":                   "insufficient_credits",
				"operation":               req.Operation,
				"cost_cents":              result.CostCents,
				"remaining_starter_cents": result.RemainingStarterCents,
			})
			return
		}
		if errors.Is(err, credits.ErrUnknownOperation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_operation", "operation": req.Operation})
			return
		}
		log.Printf("[handlers] consume credit user=%s op=%s: %v", req.UserID, req.Operation, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credit_debit_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":                  result.Source,
		"operation":               req.Operation,
		"cost_cents":              result.CostCents,
		"remaining_starter_cents": result.RemainingStarterCents,
	})
}

// handleUserCredits returns the current balances for an admin lookup.
func (a *api) handleUserCredits(c *gin.Context) {
	userID := c.Param("id")

	bal, err := a.credits.GetBalances(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[handlers] get balances user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "balance_lookup_failed"})
		return
	}
	if bal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":              bal.UserID,
		"starter_credits_cents": bal.StarterCreditsCents,
		"paid_credits_cents":    bal.PaidCreditsCents,
	})
}
