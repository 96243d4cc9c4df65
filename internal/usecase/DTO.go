package usecase

import (
	"github.com/plastinin/docgateway/internal/domain"
)

// ExtractRequest входные данные для одного запуска воркера
type ExtractRequest struct {
	FilePath string // Абсолютный путь к сохранённой загрузке
	WorkDir  string // Рабочий каталог процесса, туда же воркер пишет артефакт
}

// UploadInput входные данные загрузки
type UploadInput struct {
	Principal domain.Principal
	File      domain.IncomingFile
}

// UploadResult результат синхронной загрузки
type UploadResult struct {
	Extraction *domain.Extraction
	Document   domain.Document // Документ воркера со ссылкой на скачивание
}

// DownloadInput параметры скачивания артефакта
type DownloadInput struct {
	Principal    domain.Principal
	ExtractionID string // Пусто для артефакта в корне хранилища
	FileName     string // Пусто для output.xlsx
}
