package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/fulfillment"
	"github.com/inkfable/storypress/internal/orders"
	"github.com/inkfable/storypress/internal/printvendor"
	"github.com/inkfable/storypress/internal/validation"
)

// handleRetryOrder re-enqueues a paid order for fulfillment. The worker is
// idempotent per stage, so replaying a partially finished order is safe.
func (a *api) handleRetryOrder(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")

	order, err := a.orders.Get(ctx, orderID)
	if err != nil {
		log.Printf("[handlers] retry order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}
	if order.PaymentStatus != orders.StatusPaid {
		c.JSON(http.StatusConflict, gin.H{"error": "order_not_paid", "payment_status": order.PaymentStatus})
		return
	}

	msg := fulfillment.Message{OrderID: orderID, Source: "admin_retry"}
	body, err := json.Marshal(msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
		return
	}
	if err := a.publisher.SendFulfillmentMessage(ctx, string(body), map[string]string{"source": "admin_retry"}); err != nil {
		log.Printf("[handlers] enqueue retry order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"order_id": orderID, "status": "queued"})
}

// handleOrderEvents returns the audit trail for an order: fulfillment runs,
// notification sends, and print job activity for the order's book.
func (a *api) handleOrderEvents(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")

	fulfillmentEvents, err := a.audit.List(ctx, auditlog.KindFulfillment, orderID)
	if err != nil {
		log.Printf("[handlers] list fulfillment events order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event_lookup_failed"})
		return
	}
	notificationEvents, err := a.audit.List(ctx, auditlog.KindNotification, orderID)
	if err != nil {
		log.Printf("[handlers] list notification events order=%s: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event_lookup_failed"})
		return
	}

	var printEvents []auditlog.Event
	book, err := a.books.GetByOrder(ctx, orderID)
	if err != nil {
		log.Printf("[handlers] book lookup order=%s: %v", orderID, err)
	} else if book != nil {
		printEvents, err = a.audit.List(ctx, auditlog.KindPrintJob, book.BookID)
		if err != nil {
			log.Printf("[handlers] list print events book=%s: %v", book.BookID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event_lookup_failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":     orderID,
		"fulfillment":  fulfillmentEvents,
		"notification": notificationEvents,
		"print_job":    printEvents,
	})
}

// handlePreflight reports whether a book is ready to submit to the print
// vendor without submitting it.
func (a *api) handlePreflight(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := c.Param("id")

	report, book, err := a.vendor.Preflight(ctx, bookID)
	if err != nil {
		if errors.Is(err, printvendor.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book_not_found"})
			return
		}
		log.Printf("[handlers] preflight book=%s: %v", bookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preflight_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book_id":      bookID,
		"print_status": book.PrintStatus,
		"ok":           report.OK(),
		"blockers":     report.Blockers,
		"warnings":     report.Warnings,
	})
}

// handleSubmit submits a book to the print vendor. Preflight blockers return
// 422 with the report so the operator can fix the state and retry.
func (a *api) handleSubmit(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := c.Param("id")

	book, err := a.vendor.Submit(ctx, bookID)
	if err != nil {
		var blocked *printvendor.ErrPreflightBlocked
		if errors.As(err, &blocked) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":    "preflight_blocked",
				"blockers": blocked.Blockers,
			})
			return
		}
		if errors.Is(err, printvendor.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book_not_found"})
			return
		}
		log.Printf("[handlers] submit book=%s: %v", bookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book_id":       book.BookID,
		"print_status":  book.PrintStatus,
		"vendor_job_id": book.VendorJobID,
	})
}

// handleRefresh polls the vendor for the current job status and applies the
// mapped transition.
func (a *api) handleRefresh(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := c.Param("id")

	book, err := a.vendor.Refresh(ctx, bookID)
	if err != nil {
		if errors.Is(err, printvendor.ErrNoVendorJob) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_vendor_job"})
			return
		}
		if errors.Is(err, printvendor.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book_not_found"})
			return
		}
		log.Printf("[handlers] refresh book=%s: %v", bookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book_id":       book.BookID,
		"print_status":  book.PrintStatus,
		"vendor_job_id": book.VendorJobID,
		"tracking_url":  book.TrackingURL,
	})
}

// handleApprovePage pins a page version as the approved one for its scene.
func (a *api) handleApprovePage(c *gin.Context) {
	storyID := c.Param("id")

	var req validation.ApprovePageRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}

	if err := a.pages.Approve(c.Request.Context(), storyID, req.PageID); err != nil {
		log.Printf("[handlers] approve story=%s page=%s: %v", storyID, req.PageID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approve_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"story_id": storyID, "page_id": req.PageID, "approved": true})
}
