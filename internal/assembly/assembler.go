package assembly

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/inkfable/storypress/internal/assets"
	"github.com/inkfable/storypress/internal/books"
	"github.com/inkfable/storypress/internal/pages"
	"github.com/inkfable/storypress/internal/pdfgen"
)

// Output carries the durable URLs of a finished render.
type Output struct {
	InteriorURL string `json:"interior_url"`
	CoverURL    string `json:"cover_url"`
}

// Uploader stores rendered bytes and returns a durable URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ImageFetcher retrieves an image by URL.
type ImageFetcher func(ctx context.Context, url string) ([]byte, string, error)

// Assembler turns a story's approved final pages into interior and cover PDFs.
// Re-invocation is safe: every run appends fresh asset rows and repoints the
// book's pdf_url; nothing is deleted.
type Assembler struct {
	pages    *pages.Store
	assets   *assets.Store
	books    *books.Store
	uploader Uploader
	fetch    ImageFetcher
}

// NewAssembler wires an Assembler. fetch may be nil, in which case a default
// HTTP fetcher is used.
func NewAssembler(pagesStore *pages.Store, assetsStore *assets.Store, booksStore *books.Store, uploader Uploader, fetch ImageFetcher) *Assembler {
	if fetch == nil {
		fetch = FetchImageHTTP
	}
	return &Assembler{
		pages:    pagesStore,
		assets:   assetsStore,
		books:    booksStore,
		uploader: uploader,
		fetch:    fetch,
	}
}

// Assemble renders and stores both PDFs for the book's story.
// Returns *NotReadyError when the story has zero scenes or any scene lacks a
// canonical image.
func (a *Assembler) Assemble(ctx context.Context, book *books.Book) (*Output, error) {
	all, err := a.pages.ListByStory(ctx, book.StoryID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	byScene := map[int][]pages.FinalPage{}
	var coverFinal, coverSketch []pages.FinalPage
	for _, p := range all {
		switch p.Kind {
		case pages.KindScene:
			byScene[p.SceneNo] = append(byScene[p.SceneNo], p)
		case pages.KindFinalCover:
			coverFinal = append(coverFinal, p)
		case pages.KindStoryboardCover:
			coverSketch = append(coverSketch, p)
		}
	}

	if len(byScene) == 0 {
		return nil, &NotReadyError{Reason: "story has no scenes"}
	}

	sceneNos := make([]int, 0, len(byScene))
	for n := range byScene {
		sceneNos = append(sceneNos, n)
	}
	sort.Ints(sceneNos)

	spreads := make([]pdfgen.Spread, 0, len(sceneNos))
	for _, n := range sceneNos {
		canonical := pages.Canonical(byScene[n])
		if canonical == nil || canonical.ImageURL == "" {
			return nil, &NotReadyError{Reason: fmt.Sprintf("scene %d has no final image", n)}
		}
		img, imgType, err := a.fetch(ctx, canonical.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch scene %d image: %w", n, err)
		}
		spreads = append(spreads, pdfgen.Spread{
			Caption:   canonical.Text,
			Image:     img,
			ImageType: imgType,
		})
	}

	// cover hero: personalized final cover over storyboard sketch over none
	var hero []byte
	var heroType string
	if pick := pages.Canonical(coverFinal); pick == nil {
		pick = pages.Canonical(coverSketch)
		if pick != nil && pick.ImageURL != "" {
			hero, heroType, err = a.fetch(ctx, pick.ImageURL)
		}
	} else if pick.ImageURL != "" {
		hero, heroType, err = a.fetch(ctx, pick.ImageURL)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch cover image: %w", err)
	}

	title := "Your Storybook"
	interior, err := pdfgen.RenderInterior(title, spreads)
	if err != nil {
		return nil, err
	}
	cover, err := pdfgen.RenderCover(title, hero, heroType)
	if err != nil {
		return nil, err
	}

	interiorURL, err := a.uploader.Upload(ctx, fmt.Sprintf("books/%s/interior.pdf", book.BookID), "application/pdf", interior)
	if err != nil {
		return nil, fmt.Errorf("upload interior: %w", err)
	}
	coverURL, err := a.uploader.Upload(ctx, fmt.Sprintf("books/%s/cover.pdf", book.BookID), "application/pdf", cover)
	if err != nil {
		return nil, fmt.Errorf("upload cover: %w", err)
	}

	if _, err := a.assets.Append(ctx, book.BookID, assets.TypeInteriorPDF, interiorURL); err != nil {
		return nil, err
	}
	if _, err := a.assets.Append(ctx, book.BookID, assets.TypeCoverPDF, coverURL); err != nil {
		return nil, err
	}

	if err := a.books.SetPDFReady(ctx, book.OrderID, interiorURL); err != nil {
		return nil, err
	}

	return &Output{InteriorURL: interiorURL, CoverURL: coverURL}, nil
}

// FetchImageHTTP is the default ImageFetcher. The returned type string is what
// the PDF renderer expects ("JPG" or "PNG").
func FetchImageHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	imgType := "JPG"
	if strings.Contains(http.DetectContentType(body), "png") {
		imgType = "PNG"
	}
	return body, imgType, nil
}
