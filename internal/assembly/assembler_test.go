package assembly

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/inkfable/storypress/internal/assets"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/dynamotest"
	"github.com/inkfable/storypress/internal/pages"
)

// 1x1 transparent PNG
var testPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

type memUploader struct {
	keys []string
}

func (u *memUploader) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("empty body")
	}
	u.keys = append(u.keys, key)
	return "https://cdn.test/" + key, nil
}

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.calls++
	return testPNG, "PNG", nil
}

type assemblyFixture struct {
	fake      *dynamotest.Fake
	assembler *Assembler
	pages     *pages.Store
	books     *books.Store
	uploader  *memUploader
	fetcher   *countingFetcher
}

func newAssemblyFixture(t *testing.T) *assemblyFixture {
	t.Helper()
	fake := dynamotest.New().
		AddTable("final_pages", "story_id", "page_id").
		AddTable("generated_assets", "entity_id", "asset_id").
		AddTable("books", "order_id", "")

	pagesStore := pages.NewStore(fake, "final_pages")
	assetsStore := assets.NewStore(fake, "generated_assets")
	booksStore := books.NewStore(fake, "books")
	uploader := &memUploader{}
	fetcher := &countingFetcher{}

	return &assemblyFixture{
		fake:      fake,
		assembler: NewAssembler(pagesStore, assetsStore, booksStore, uploader, fetcher.fetch),
		pages:     pagesStore,
		books:     booksStore,
		uploader:  uploader,
		fetcher:   fetcher,
	}
}

func seedBook(t *testing.T, fx *assemblyFixture) *books.Book {
	t.Helper()
	book, err := fx.books.EnsureForOrder(context.Background(), "order-1", "user-1", "story-1")
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func seedScenePage(t *testing.T, fx *assemblyFixture, sceneNo, version int, imageURL string) {
	t.Helper()
	err := fx.pages.Put(context.Background(), pages.FinalPage{
		StoryID:   "story-1",
		Kind:      pages.KindScene,
		SceneNo:   sceneNo,
		Version:   version,
		ImageURL:  imageURL,
		Text:      "Once upon a time.",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(version) * time.Minute),
	})
	if err != nil {
		t.Fatalf("seed page: %v", err)
	}
}

func TestAssemble_NoScenes(t *testing.T) {
	fx := newAssemblyFixture(t)
	book := seedBook(t, fx)

	_, err := fx.assembler.Assemble(context.Background(), book)
	var notReady *NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
}

func TestAssemble_SceneWithoutImage(t *testing.T) {
	fx := newAssemblyFixture(t)
	book := seedBook(t, fx)
	seedScenePage(t, fx, 1, 1, "https://img.test/1.png")
	seedScenePage(t, fx, 2, 1, "")

	_, err := fx.assembler.Assemble(context.Background(), book)
	var notReady *NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
	if len(fx.uploader.keys) != 0 {
		t.Fatalf("nothing may be uploaded for an incomplete story")
	}
}

func TestAssemble_Complete(t *testing.T) {
	fx := newAssemblyFixture(t)
	book := seedBook(t, fx)
	seedScenePage(t, fx, 1, 1, "https://img.test/1.png")
	seedScenePage(t, fx, 2, 1, "https://img.test/2.png")

	// cover hero
	err := fx.pages.Put(context.Background(), pages.FinalPage{
		StoryID:  "story-1",
		Kind:     pages.KindFinalCover,
		Version:  1,
		ImageURL: "https://img.test/cover.png",
	})
	if err != nil {
		t.Fatalf("seed cover: %v", err)
	}

	out, err := fx.assembler.Assemble(context.Background(), book)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if out.InteriorURL == "" || out.CoverURL == "" {
		t.Fatalf("missing output URLs: %+v", out)
	}

	// two scene images plus the cover hero
	if fx.fetcher.calls != 3 {
		t.Fatalf("expected 3 image fetches, got %d", fx.fetcher.calls)
	}
	if len(fx.uploader.keys) != 2 {
		t.Fatalf("expected interior and cover uploads, got %v", fx.uploader.keys)
	}
	if got := len(fx.fake.Items("generated_assets")); got != 2 {
		t.Fatalf("expected 2 asset rows, got %d", got)
	}

	updated, _ := fx.books.GetByOrder(context.Background(), "order-1")
	if updated.PrintStatus != books.StatusPDFReady {
		t.Fatalf("expected pdf_ready, got %s", updated.PrintStatus)
	}
	if updated.PDFURL != out.InteriorURL {
		t.Fatalf("book pdf_url not repointed: %s", updated.PDFURL)
	}
}

func TestAssemble_RerunAppendsFreshAssets(t *testing.T) {
	fx := newAssemblyFixture(t)
	book := seedBook(t, fx)
	seedScenePage(t, fx, 1, 1, "https://img.test/1.png")

	ctx := context.Background()
	if _, err := fx.assembler.Assemble(ctx, book); err != nil {
		t.Fatalf("first Assemble: %v", err)
	}
	if _, err := fx.assembler.Assemble(ctx, book); err != nil {
		t.Fatalf("second Assemble: %v", err)
	}

	// history is append-only: 2 runs x 2 assets
	if got := len(fx.fake.Items("generated_assets")); got != 4 {
		t.Fatalf("expected 4 asset rows after rerun, got %d", got)
	}
}
