package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxStderrBytes = 1 << 20 // 1 MB
	// Сколько ждать закрытия каналов после kill
	waitDelay = 5 * time.Second
)

// OutputValidator дополнительная проверка документа воркера
type OutputValidator interface {
	Validate(doc domain.Document) error
}

// ProcessExtractor запускает внешний воркер подпроцессом.
// Воркер получает путь к файлу последним аргументом и печатает JSON в stdout.
type ProcessExtractor struct {
	argv      []string
	timeout   time.Duration
	maxOutput int64
	validator OutputValidator
	logger    *zap.Logger
}

// NewProcessExtractor создаёт новый экземпляр ProcessExtractor
func NewProcessExtractor(cfg config.WorkerConfig, validator OutputValidator, logger *zap.Logger) (*ProcessExtractor, error) {
	argv := cfg.Argv()
	if len(argv) == 0 {
		return nil, errors.New("worker command is empty")
	}

	return &ProcessExtractor{
		argv:      argv,
		timeout:   cfg.Timeout,
		maxOutput: cfg.MaxOutput,
		validator: validator,
		logger:    logger.Named("extractor"),
	}, nil
}

// processOutput накопленный вывод процесса
type processOutput struct {
	stdout    bytes.Buffer
	stderr    strings.Builder
	truncated bool
}

// Extract запускает воркер и разбирает его stdout.
// Процесс завершается на всех путях: успех, ошибка, таймаут, отмена запроса.
func (e *ProcessExtractor) Extract(ctx context.Context, req usecase.ExtractRequest) (domain.Document, error) {
	filePath, err := filepath.Abs(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file path: %w", err)
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	args := make([]string, 0, len(e.argv))
	args = append(args, e.argv[1:]...)
	args = append(args, filePath)

	cmd := exec.CommandContext(runCtx, e.argv[0], args...)
	cmd.Dir = req.WorkDir
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	log := e.logger.With(zap.String("path", filePath))

	out, runErr := e.run(cmd, log)

	// Причина завершения важнее кода выхода: процесс убит нами
	if ctx.Err() != nil {
		log.Warn("Worker canceled by caller", zap.Error(ctx.Err()))
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionCanceled, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.Error("Worker timed out", zap.Duration("timeout", e.timeout))
		return nil, &domain.WorkerTimeoutError{Timeout: e.timeout, Stderr: strings.TrimSpace(out.stderr.String())}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			log.Error("Worker exited with error",
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", out.stderr.String()),
			)
			return nil, &domain.WorkerExecutionError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(out.stderr.String()),
				Err:      runErr,
			}
		}
		return nil, runErr
	}

	log.Debug("Worker stdout", zap.ByteString("stdout", out.stdout.Bytes()))

	if out.truncated {
		return nil, &domain.OutputParseError{
			Raw: out.stdout.String(),
			Err: fmt.Errorf("worker output exceeds %d bytes", e.maxOutput),
		}
	}

	doc, err := domain.ParseDocument(out.stdout.Bytes())
	if err != nil {
		log.Error("Failed to parse worker output", zap.Error(err))
		return nil, err
	}

	if e.validator != nil {
		if err := e.validator.Validate(doc); err != nil {
			log.Error("Worker output does not match schema", zap.Error(err))
			return nil, &domain.OutputParseError{Raw: out.stdout.String(), Err: err}
		}
	}

	return doc, nil
}

// run стартует процесс, параллельно дочитывает stdout и stderr и ждёт выхода.
// Wait вызывается только после того, как оба потока прочитаны.
func (e *ProcessExtractor) run(cmd *exec.Cmd, log *zap.Logger) (*processOutput, error) {
	out := &processOutput{}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return out, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return out, &domain.WorkerExecutionError{ExitCode: -1, Err: err}
	}

	start := time.Now()
	log.Debug("Worker started", zap.Int("pid", cmd.Process.Pid))

	var g errgroup.Group
	g.Go(func() error {
		return e.readStdout(stdout, out)
	})
	g.Go(func() error {
		return readStderr(stderr, out, log)
	})

	readErr := g.Wait()
	waitErr := cmd.Wait()

	log.Info("Worker finished",
		zap.Int("exit_code", cmd.ProcessState.ExitCode()),
		zap.Duration("duration", time.Since(start)),
		zap.Int("stdout_bytes", out.stdout.Len()),
	)

	if waitErr != nil {
		return out, waitErr
	}
	if readErr != nil {
		return out, fmt.Errorf("failed to read worker output: %w", readErr)
	}
	return out, nil
}

func (e *ProcessExtractor) readStdout(r io.Reader, out *processOutput) error {
	if e.maxOutput <= 0 {
		_, err := io.Copy(&out.stdout, r)
		return err
	}

	n, err := io.Copy(&out.stdout, io.LimitReader(r, e.maxOutput))
	if err != nil {
		return err
	}
	if n == e.maxOutput {
		// Остаток вычитываем, иначе воркер заблокируется на записи
		rest, err := io.Copy(io.Discard, r)
		if rest > 0 {
			out.truncated = true
		}
		return err
	}
	return nil
}

// readStderr логирует stderr построчно и накапливает его для ответа
func readStderr(r io.Reader, out *processOutput, log *zap.Logger) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
				log.Warn("Worker stderr", zap.String("line", trimmed))
			}
			if out.stderr.Len()+len(line) <= maxStderrBytes {
				out.stderr.WriteString(line)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
