package pdfgen

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Spread is one interior unit: a full-bleed scene image with its caption text.
type Spread struct {
	Caption   string
	Image     []byte
	ImageType string // "JPG" or "PNG"
}

// RenderInterior produces the interior PDF, one landscape spread per scene.
func RenderInterior(title string, spreads []Spread) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)

	for i, spread := range spreads {
		pdf.AddPage()

		name := fmt.Sprintf("scene-%d", i)
		opts := fpdf.ImageOptions{ImageType: spread.ImageType, ReadDpi: true}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(spread.Image))
		// image on the left half of the spread
		pdf.ImageOptions(name, 10, 10, 180, 0, false, opts, 0, "")

		pdf.SetFont("Helvetica", "", 14)
		pdf.SetXY(200, 40)
		pdf.MultiCell(85, 8, spread.Caption, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render interior: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderCover produces the cover PDF. hero may be nil, in which case the cover
// is title-only.
func RenderCover(title string, hero []byte, heroType string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	if len(hero) > 0 {
		opts := fpdf.ImageOptions{ImageType: heroType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("hero", opts, bytes.NewReader(hero))
		pdf.ImageOptions("hero", 15, 30, 180, 0, false, opts, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetXY(15, 10)
	pdf.MultiCell(180, 12, title, "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render cover: %w", err)
	}
	return buf.Bytes(), nil
}
