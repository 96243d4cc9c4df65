package pdf

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var disableConfigOnce sync.Once

// Inspector проверяет, что загрузка читается как PDF
type Inspector struct{}

// NewInspector создаёт новый Inspector
func NewInspector() *Inspector {
	// pdfcpu по умолчанию пишет config.yml в домашний каталог
	disableConfigOnce.Do(api.DisableConfigDir)
	return &Inspector{}
}

// PageCount возвращает число страниц или ошибку для повреждённого файла
func (i *Inspector) PageCount(path string) (int, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}
