package printvendor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/inkfable/storypress/internal/assets"
	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/metrics"
	"github.com/inkfable/storypress/internal/notify"
)

var (
	// ErrBookNotFound is returned when the book id resolves to nothing.
	ErrBookNotFound = errors.New("book not found")
	// ErrNoVendorJob is returned by Refresh when the book was never submitted.
	ErrNoVendorJob = errors.New("book has no vendor job")
)

// Adapter owns print submission and polling for books. All vendor interaction
// is bracketed by audit events; every status change fans out to the
// notification dispatcher.
type Adapter struct {
	cfg      Config
	client   VendorClient
	books    *books.Store
	assets   *assets.Store
	audit    *auditlog.Log
	notifier notify.MilestoneSender
	metrics  *metrics.Emitter
}

// NewAdapter wires an Adapter. client may be nil, in which case a real Client
// is built from cfg.
func NewAdapter(cfg Config, client VendorClient, booksStore *books.Store, assetsStore *assets.Store, audit *auditlog.Log, notifier notify.MilestoneSender, em *metrics.Emitter) *Adapter {
	if client == nil {
		client = NewClient(cfg, nil)
	}
	return &Adapter{
		cfg:      cfg,
		client:   client,
		books:    booksStore,
		assets:   assetsStore,
		audit:    audit,
		notifier: notifier,
		metrics:  em,
	}
}

// Preflight computes submission blockers and warnings from live state. The
// audit log is never consulted: staff must see current truth.
func (a *Adapter) Preflight(ctx context.Context, bookID string) (*PreflightReport, *books.Book, error) {
	report := &PreflightReport{}

	book, err := a.books.GetByBookID(ctx, bookID)
	if err != nil {
		return nil, nil, err
	}
	if book == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrBookNotFound, bookID)
	}

	if !a.cfg.Configured() {
		report.Blockers = append(report.Blockers, "print vendor credentials not configured")
	}
	if a.cfg.PODPackageID == "" {
		report.Blockers = append(report.Blockers, "pod_package_id not configured")
	}
	if a.cfg.ShipStreet == "" || a.cfg.ShipCity == "" || a.cfg.ShipPostal == "" || a.cfg.ShipCountry == "" {
		report.Blockers = append(report.Blockers, "shipping address incomplete")
	}

	interior, err := a.assets.LatestByType(ctx, bookID, assets.TypeInteriorPDF)
	if err != nil {
		return nil, nil, err
	}
	if interior == nil {
		report.Blockers = append(report.Blockers, "no interior PDF asset")
	}
	cover, err := a.assets.LatestByType(ctx, bookID, assets.TypeCoverPDF)
	if err != nil {
		return nil, nil, err
	}
	if cover == nil {
		report.Blockers = append(report.Blockers, "no cover PDF asset")
	}

	if a.cfg.ShipPhone == "" {
		report.Warnings = append(report.Warnings, "no shipping phone number configured")
	}
	if book.VendorJobID != "" {
		report.Warnings = append(report.Warnings, fmt.Sprintf("book already has vendor job %s", book.VendorJobID))
	}

	return report, book, nil
}

// ErrPreflightBlocked wraps the blockers that refused a submission.
type ErrPreflightBlocked struct {
	Blockers []string
}

func (e *ErrPreflightBlocked) Error() string {
	return fmt.Sprintf("preflight blocked: %v", e.Blockers)
}

// Submit runs preflight and creates a vendor print job for the book's latest
// interior and cover PDFs. Each attempt carries a unique external id, so a
// retried submit creates a distinct job rather than colliding with a half
// persisted one.
func (a *Adapter) Submit(ctx context.Context, bookID string) (*books.Book, error) {
	report, book, err := a.Preflight(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !report.OK() {
		return nil, &ErrPreflightBlocked{Blockers: report.Blockers}
	}

	interior, err := a.assets.LatestByType(ctx, bookID, assets.TypeInteriorPDF)
	if err != nil {
		return nil, err
	}
	cover, err := a.assets.LatestByType(ctx, bookID, assets.TypeCoverPDF)
	if err != nil {
		return nil, err
	}

	externalID := fmt.Sprintf("book-%s-%s", bookID, uuid.NewString())
	handle, err := a.audit.Begin(ctx, auditlog.KindPrintJob, bookID, "submit", "vendor submission", map[string]string{"external_id": externalID})
	if err != nil {
		return nil, err
	}

	job, err := a.client.CreateJob(ctx, createJobRequest{
		ContactEmail: a.cfg.ContactEmail,
		ExternalID:   externalID,
		ShippingAddress: shippingAddress{
			Name:        a.cfg.ShipName,
			Street1:     a.cfg.ShipStreet,
			City:        a.cfg.ShipCity,
			StateCode:   a.cfg.ShipState,
			PostalCode:  a.cfg.ShipPostal,
			CountryCode: a.cfg.ShipCountry,
			PhoneNumber: a.cfg.ShipPhone,
		},
		ShippingLevel: a.cfg.ShippingLevel,
		LineItems: []lineItem{
			{
				ExternalID:        externalID,
				Title:             "Personalized Storybook",
				Quantity:          1,
				PODPackageID:      a.cfg.PODPackageID,
				InteriorSourceURL: interior.StorageURL,
				CoverSourceURL:    cover.StorageURL,
			},
		},
	})
	if err != nil {
		if aerr := handle.Fail(ctx, "submit", err); aerr != nil {
			log.Printf("[printvendor] failed to close audit entry book=%s: %v", bookID, aerr)
		}
		a.metrics.Count(ctx, "PrintSubmitFailed", nil)
		return nil, fmt.Errorf("create print job: %w", err)
	}

	return a.applyJob(ctx, book, job, handle)
}

// Refresh polls the vendor for the book's existing job and re-maps its status.
func (a *Adapter) Refresh(ctx context.Context, bookID string) (*books.Book, error) {
	book, err := a.books.GetByBookID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, bookID)
	}
	if book.VendorJobID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoVendorJob, bookID)
	}

	handle, err := a.audit.Begin(ctx, auditlog.KindPrintJob, bookID, "refresh", "vendor status poll", nil)
	if err != nil {
		return nil, err
	}

	job, err := a.client.GetJob(ctx, book.VendorJobID)
	if err != nil {
		if aerr := handle.Fail(ctx, "refresh", err); aerr != nil {
			log.Printf("[printvendor] failed to close audit entry book=%s: %v", bookID, aerr)
		}
		return nil, fmt.Errorf("get print job: %w", err)
	}

	return a.applyJob(ctx, book, job, handle)
}

// applyJob persists the job outcome onto the book and fans out notifications
// when the mapped status changed.
func (a *Adapter) applyJob(ctx context.Context, book *books.Book, job *Job, handle *auditlog.Handle) (*books.Book, error) {
	prev := book.PrintStatus
	next := MapVendorStatus(job.Status)

	if err := a.books.SetVendorJob(ctx, book.OrderID, job.ID, next, job.TrackingURL); err != nil {
		if aerr := handle.Fail(ctx, "", err); aerr != nil {
			log.Printf("[printvendor] failed to close audit entry book=%s: %v", book.BookID, aerr)
		}
		return nil, err
	}
	if err := handle.Succeed(ctx, "", map[string]string{
		"vendor_job_id": job.ID,
		"vendor_status": job.Status,
		"print_status":  next,
	}); err != nil {
		return nil, err
	}
	a.metrics.Count(ctx, "PrintJobUpdated", map[string]string{"status": next})

	if a.notifier != nil && prev != next {
		if milestone := notify.MilestoneForTransition(prev, next); milestone != "" {
			if err := a.notifier.SendOrderMilestoneEmail(ctx, book.OrderID, milestone); err != nil {
				// notification problems never fail the vendor update
				log.Printf("[printvendor] milestone email order=%s: %v", book.OrderID, err)
			}
		}
	}

	book.VendorJobID = job.ID
	book.PrintStatus = next
	book.TrackingURL = job.TrackingURL
	return book, nil
}
