package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// PageConverter конвертирует первую страницу PDF в PNG
type PageConverter interface {
	ConvertFirstPage(pdfData []byte) ([]byte, error)
}

// OllamaExtractor извлечение через vision модель Ollama вместо подпроцесса
type OllamaExtractor struct {
	httpClient *http.Client
	baseURL    string
	model      string
	fields     []string
	timeout    time.Duration
	converter  PageConverter
	logger     *zap.Logger
}

// NewOllamaExtractor создаёт новый экземпляр OllamaExtractor
func NewOllamaExtractor(cfg config.OllamaConfig, converter PageConverter, logger *zap.Logger) *OllamaExtractor {
	return &OllamaExtractor{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.Host, "/"),
		model:      cfg.Model,
		fields:     cfg.Fields,
		timeout:    cfg.RequestTimeout,
		converter:  converter,
		logger:     logger.Named("ollama"),
	}
}

// Extract читает файл, при необходимости рендерит PDF и отправляет в модель
func (c *OllamaExtractor) Extract(ctx context.Context, req usecase.ExtractRequest) (domain.Document, error) {
	fileData, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, &domain.WorkerExecutionError{ExitCode: -1, Err: fmt.Errorf("failed to read upload: %w", err)}
	}

	imageData := fileData
	if domain.IsPDF(req.FilePath, "") {
		if c.converter == nil {
			return nil, &domain.WorkerExecutionError{ExitCode: -1, Err: errors.New("PDF converter not available")}
		}
		imageData, err = c.converter.ConvertFirstPage(fileData)
		if err != nil {
			return nil, &domain.WorkerExecutionError{ExitCode: -1, Err: fmt.Errorf("failed to convert PDF: %w", err)}
		}
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer cancel()

	content, err := c.chat(runCtx, imageData)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrExtractionCanceled, ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &domain.WorkerTimeoutError{Timeout: c.timeout}
		}
		return nil, err
	}

	// Логируем ответ модели для отладки
	c.logger.Debug("Raw LLM response", zap.String("response", content))

	return c.parseResponse(content)
}

// chat отправляет изображение в /api/chat и возвращает текст ответа
func (c *OllamaExtractor) chat(ctx context.Context, imageData []byte) (string, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": c.buildPrompt(),
				"images":  []string{base64.StdEncoding.EncodeToString(imageData)},
			},
		},
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0.1,
			"num_predict": 2048,
		},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.WorkerExecutionError{ExitCode: -1, Err: fmt.Errorf("failed to send request to Ollama: %w", err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("Ollama request completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("status_code", resp.StatusCode),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &domain.WorkerExecutionError{
			ExitCode: -1,
			Stderr:   strings.TrimSpace(string(body)),
			Err:      fmt.Errorf("ollama returned status %d", resp.StatusCode),
		}
	}

	var chatResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error,omitempty"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &domain.OutputParseError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if chatResp.Error != "" {
		return "", &domain.WorkerExecutionError{ExitCode: -1, Stderr: chatResp.Error, Err: errors.New("ollama error")}
	}

	return chatResp.Message.Content, nil
}

// buildPrompt формирует промпт для извлечения полей
func (c *OllamaExtractor) buildPrompt() string {
	fieldsJSON, _ := json.Marshal(c.fields)

	return fmt.Sprintf(`You are a data extraction assistant. Analyze the provided document page and extract the requested information.

TASK: Extract any of the following fields if found:
%s

INSTRUCTIONS:
1. If a field is not found, omit it
2. For dates, use ISO 8601 format (YYYY-MM-DD)
3. For rates and amounts, extract the numeric value only
4. Return ONLY valid JSON, no additional text or commentary`, string(fieldsJSON))
}

// parseResponse достаёт JSON объект из ответа модели
func (c *OllamaExtractor) parseResponse(response string) (domain.Document, error) {
	// Очищаем ответ от возможных markdown блоков
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	startIdx := strings.Index(cleaned, "{")
	endIdx := strings.LastIndex(cleaned, "}")
	if startIdx == -1 || endIdx == -1 || startIdx > endIdx {
		return nil, &domain.OutputParseError{Raw: response, Err: errors.New("no valid JSON found in response")}
	}

	doc, err := domain.ParseDocument([]byte(cleaned[startIdx : endIdx+1]))
	if err != nil {
		var parseErr *domain.OutputParseError
		if errors.As(err, &parseErr) {
			parseErr.Raw = response
		}
		return nil, err
	}

	return doc, nil
}

// CheckHealth проверяет доступность Ollama
func (c *OllamaExtractor) CheckHealth(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status: %d", resp.StatusCode)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	for _, model := range tagsResp.Models {
		if strings.HasPrefix(model.Name, strings.Split(c.model, ":")[0]) {
			return nil
		}
	}

	return fmt.Errorf("model %s not found, please run: ollama pull %s", c.model, c.model)
}
