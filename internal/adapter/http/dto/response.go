package dto

// ErrorResponse ответ с ошибкой
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	RawOutput string `json:"rawOutput,omitempty"` // stdout воркера при ошибке разбора
	Retryable bool   `json:"retryable,omitempty"`
}

// NewErrorResponse создаёт ответ с ошибкой
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: message,
		Code:  code,
	}
}
