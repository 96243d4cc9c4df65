package pdf

import (
	"bytes"
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"
)

// Renderer рендерит страницы PDF в PNG (MuPDF через go-fitz)
type Renderer struct{}

// NewRenderer создаёт новый рендерер
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderFirstPage читает PDF с диска и рендерит первую страницу
func (r *Renderer) RenderFirstPage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	return r.ConvertFirstPage(data)
}

// ConvertFirstPage конвертирует первую страницу PDF в PNG
func (r *Renderer) ConvertFirstPage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	return buf.Bytes(), nil
}
