package domain

import (
	"errors"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DefaultArtifactName имя артефакта, которое пишет воркер
	DefaultArtifactName = "output.xlsx"

	fallbackUploadName = "upload.pdf"
)

// Маппинг расширений на MIME типы для скачивания
var extToContentType = map[string]string{
	".pdf":  ContentTypePDF,
	".xlsx": ContentTypeXLSX,
	".xls":  "application/vnd.ms-excel",
	".csv":  "text/csv",
	".json": "application/json",
}

// normalizeContentType убирает параметры типа charset
func normalizeContentType(contentType string) string {
	ct := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(ct))
}

// IsPDF проверяет, является ли файл PDF по MIME типу или расширению
func IsPDF(fileName, contentType string) bool {
	if normalizeContentType(contentType) == ContentTypePDF {
		return true
	}
	return strings.EqualFold(filepath.Ext(fileName), ".pdf")
}

// ValidatePDFUpload проверяет, что загрузка похожа на PDF
func ValidatePDFUpload(fileName, contentType string) error {
	if !IsPDF(fileName, contentType) {
		return ErrUnsupportedFileType
	}
	return nil
}

// ContentTypeFromFileName определяет MIME тип по имени файла
func ContentTypeFromFileName(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := extToContentType[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// StoredFileName превращает имя от клиента в безопасное имя на диске.
// Каталоги отбрасываются, пустое имя заменяется на upload.pdf.
func StoredFileName(original string) string {
	name := strings.ReplaceAll(original, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "\x00", "")
	if name == "" || name == "." || name == ".." || name == "/" {
		return fallbackUploadName
	}
	return name
}

// ValidateArtifactName отклоняет имена с разделителями путей и "..".
// Пустое имя означает артефакт по умолчанию.
func ValidateArtifactName(name string) (string, error) {
	if name == "" {
		return DefaultArtifactName, nil
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	if filepath.Base(name) != name || name == "." {
		return "", ErrInvalidFileName
	}
	return name, nil
}

// DownloadLink ссылка на артефакт запуска для ответа клиенту
func DownloadLink(id uuid.UUID, name string) string {
	return "/download/excel?id=" + url.QueryEscape(id.String()) + "&file=" + url.QueryEscape(name)
}
