package domain

// ExtractionStatus статус запуска извлечения
type ExtractionStatus string

const (
	ExtractionStatusPending    ExtractionStatus = "pending"    // Файл сохранён, ожидает воркера
	ExtractionStatusProcessing ExtractionStatus = "processing" // Воркер запущен
	ExtractionStatusCompleted  ExtractionStatus = "completed"  // Воркер вернул документ
	ExtractionStatusFailed     ExtractionStatus = "failed"     // Воркер завершился с ошибкой
)

// IsValid проверяет валидность статуса
func (s ExtractionStatus) IsValid() bool {
	switch s {
	case ExtractionStatusPending, ExtractionStatusProcessing, ExtractionStatusCompleted, ExtractionStatusFailed:
		return true
	}
	return false
}

// IsFinal проверяет, является ли статус финальным
func (s ExtractionStatus) IsFinal() bool {
	return s == ExtractionStatusCompleted || s == ExtractionStatusFailed
}

func (s ExtractionStatus) String() string {
	return string(s)
}
