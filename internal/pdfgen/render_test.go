package pdfgen

import (
	"bytes"
	"encoding/base64"
	"testing"
)

// 1x1 transparent PNG
var testPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestRenderInterior(t *testing.T) {
	spreads := []Spread{
		{Caption: "Page one.", Image: testPNG, ImageType: "PNG"},
		{Caption: "Page two.", Image: testPNG, ImageType: "PNG"},
	}

	out, err := RenderInterior("Test Book", spreads)
	if err != nil {
		t.Fatalf("RenderInterior: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestRenderCover_WithHero(t *testing.T) {
	out, err := RenderCover("Test Book", testPNG, "PNG")
	if err != nil {
		t.Fatalf("RenderCover: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestRenderCover_TitleOnly(t *testing.T) {
	out, err := RenderCover("Test Book", nil, "")
	if err != nil {
		t.Fatalf("RenderCover without hero: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("empty output")
	}
}
