package domain

import (
	"io"
	"time"
)

// Artifact открытый на чтение производный файл (обычно XLSX)
type Artifact struct {
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
	Body        io.ReadCloser
}
