package printvendor

import (
	"context"
	"errors"
	"testing"

	"github.com/inkfable/storypress/internal/assets"
	"github.com/inkfable/storypress/internal/auditlog"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/dynamotest"
)

type stubVendorClient struct {
	createCalls int
	job         *Job
	err         error
}

func (s *stubVendorClient) CreateJob(ctx context.Context, req createJobRequest) (*Job, error) {
	s.createCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *stubVendorClient) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

type milestoneRecorder struct {
	milestones []string
}

func (r *milestoneRecorder) SendOrderMilestoneEmail(ctx context.Context, orderID, milestone string) error {
	r.milestones = append(r.milestones, milestone)
	return nil
}

func fullConfig() Config {
	return Config{
		BaseURL:      "https://api.vendor.test",
		TokenURL:     "https://auth.vendor.test/token",
		ClientID:     "client",
		ClientSecret: "secret",
		ContactEmail: "ops@inkfable.test",
		PODPackageID: "0600X0900BWSTDPB060UW444MXX",
		ShipName:     "Inkfable Fulfillment",
		ShipStreet:   "1 Warehouse Way",
		ShipCity:     "Portland",
		ShipState:    "OR",
		ShipPostal:   "97201",
		ShipCountry:  "US",
		ShipPhone:    "+1 555 0100",
	}
}

type adapterFixture struct {
	fake     *dynamotest.Fake
	adapter  *Adapter
	books    *books.Store
	assets   *assets.Store
	client   *stubVendorClient
	notifier *milestoneRecorder
}

func newAdapterFixture(t *testing.T, cfg Config, client *stubVendorClient) *adapterFixture {
	t.Helper()
	fake := dynamotest.New().
		AddTable("books", "order_id", "").
		AddTable("generated_assets", "entity_id", "asset_id").
		AddTable("audit_events", "subject_key", "event_id")

	booksStore := books.NewStore(fake, "books")
	assetsStore := assets.NewStore(fake, "generated_assets")
	audit := auditlog.NewLog(fake, "audit_events")
	notifier := &milestoneRecorder{}

	return &adapterFixture{
		fake:     fake,
		adapter:  NewAdapter(cfg, client, booksStore, assetsStore, audit, notifier, nil),
		books:    booksStore,
		assets:   assetsStore,
		client:   client,
		notifier: notifier,
	}
}

func seedReadyBook(t *testing.T, fx *adapterFixture) *books.Book {
	t.Helper()
	ctx := context.Background()
	book, err := fx.books.EnsureForOrder(ctx, "order-1", "user-1", "story-1")
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	if _, err := fx.assets.Append(ctx, book.BookID, assets.TypeInteriorPDF, "https://bucket/interior.pdf"); err != nil {
		t.Fatalf("seed interior: %v", err)
	}
	if _, err := fx.assets.Append(ctx, book.BookID, assets.TypeCoverPDF, "https://bucket/cover.pdf"); err != nil {
		t.Fatalf("seed cover: %v", err)
	}
	return book
}

func TestPreflight_ReadyBook(t *testing.T) {
	fx := newAdapterFixture(t, fullConfig(), &stubVendorClient{})
	book := seedReadyBook(t, fx)

	report, got, err := fx.adapter.Preflight(context.Background(), book.BookID)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected no blockers, got %v", report.Blockers)
	}
	if got.BookID != book.BookID {
		t.Fatalf("wrong book resolved: %s", got.BookID)
	}
}

func TestPreflight_Blockers(t *testing.T) {
	cfg := fullConfig()
	cfg.ClientSecret = ""
	cfg.PODPackageID = ""
	cfg.ShipStreet = ""
	fx := newAdapterFixture(t, cfg, &stubVendorClient{})

	ctx := context.Background()
	book, err := fx.books.EnsureForOrder(ctx, "order-1", "user-1", "story-1")
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}

	report, _, err := fx.adapter.Preflight(ctx, book.BookID)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	// creds, package id, address, interior pdf, cover pdf
	if len(report.Blockers) != 5 {
		t.Fatalf("expected 5 blockers, got %v", report.Blockers)
	}
}

func TestPreflight_UnknownBook(t *testing.T) {
	fx := newAdapterFixture(t, fullConfig(), &stubVendorClient{})

	_, _, err := fx.adapter.Preflight(context.Background(), "book-missing")
	if !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestSubmit_HappyPath(t *testing.T) {
	client := &stubVendorClient{job: &Job{ID: "job-9", Status: "CREATED"}}
	fx := newAdapterFixture(t, fullConfig(), client)
	book := seedReadyBook(t, fx)

	got, err := fx.adapter.Submit(context.Background(), book.BookID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.VendorJobID != "job-9" {
		t.Fatalf("vendor job not recorded: %+v", got)
	}
	if got.PrintStatus != books.StatusSubmittedAPI {
		t.Fatalf("expected submitted_api, got %s", got.PrintStatus)
	}
	if client.createCalls != 1 {
		t.Fatalf("expected one CreateJob call, got %d", client.createCalls)
	}
	// no customer-visible transition yet
	if len(fx.notifier.milestones) != 0 {
		t.Fatalf("unexpected milestones: %v", fx.notifier.milestones)
	}
}

func TestSubmit_BlockedByPreflight(t *testing.T) {
	cfg := fullConfig()
	cfg.PODPackageID = ""
	client := &stubVendorClient{job: &Job{ID: "job-9", Status: "CREATED"}}
	fx := newAdapterFixture(t, cfg, client)
	book := seedReadyBook(t, fx)

	_, err := fx.adapter.Submit(context.Background(), book.BookID)
	var blocked *ErrPreflightBlocked
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ErrPreflightBlocked, got %v", err)
	}
	if client.createCalls != 0 {
		t.Fatalf("blocked submit must not reach the vendor")
	}
}

func TestRefresh_TransitionFansOutMilestones(t *testing.T) {
	client := &stubVendorClient{job: &Job{ID: "job-9", Status: "CREATED"}}
	fx := newAdapterFixture(t, fullConfig(), client)
	book := seedReadyBook(t, fx)
	ctx := context.Background()

	if _, err := fx.adapter.Submit(ctx, book.BookID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	client.job = &Job{ID: "job-9", Status: "IN_PRODUCTION"}
	got, err := fx.adapter.Refresh(ctx, book.BookID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.PrintStatus != books.StatusInProduction {
		t.Fatalf("expected in_production, got %s", got.PrintStatus)
	}

	client.job = &Job{ID: "job-9", Status: "SHIPPED", TrackingURL: "https://track.test/1"}
	got, err = fx.adapter.Refresh(ctx, book.BookID)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if got.PrintStatus != books.StatusShipped || got.TrackingURL != "https://track.test/1" {
		t.Fatalf("shipped state not applied: %+v", got)
	}

	// repeating the same vendor status must not re-announce
	if _, err := fx.adapter.Refresh(ctx, book.BookID); err != nil {
		t.Fatalf("third Refresh: %v", err)
	}

	want := []string{"printing", "shipped"}
	if len(fx.notifier.milestones) != len(want) {
		t.Fatalf("expected milestones %v, got %v", want, fx.notifier.milestones)
	}
	for i := range want {
		if fx.notifier.milestones[i] != want[i] {
			t.Fatalf("expected milestones %v, got %v", want, fx.notifier.milestones)
		}
	}
}

func TestRefresh_WithoutJob(t *testing.T) {
	fx := newAdapterFixture(t, fullConfig(), &stubVendorClient{})
	book := seedReadyBook(t, fx)

	_, err := fx.adapter.Refresh(context.Background(), book.BookID)
	if !errors.Is(err, ErrNoVendorJob) {
		t.Fatalf("expected ErrNoVendorJob, got %v", err)
	}
}
