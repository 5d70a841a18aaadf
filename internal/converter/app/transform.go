package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"media_pipeline/internal/converter/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/config"
	"media_pipeline/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	defaultFFmpegPath = "ffmpeg"
	defaultFormat     = "mp3"
	// stderr 只保留尾巴放進 error_detail
	stderrTail = 512
)

// 讓 test 換掉實際執行的指令
var execCommand = exec.CommandContext

// NewTransformer build the transformer selected by cfg.Kind, "ffmpeg" (default) or "passthrough"
func NewTransformer(cfg config.TransformConfig) (domain.Transformer, error) {
	switch cfg.Kind {
	case "", "ffmpeg":
		return NewFFmpegTransformer(cfg.FFmpegPath, cfg.Format, cfg.Timeout), nil
	case "passthrough":
		return PassthroughTransformer{}, nil
	}
	return nil, fmt.Errorf("unknown transform kind %q", cfg.Kind)
}

// FFmpegTransformer extracts the audio track of the input with an ffmpeg subprocess
type FFmpegTransformer struct {
	Path    string
	Format  string
	Timeout time.Duration
}

// NewFFmpegTransformer create FFmpegTransformer, timeout <= 0 means no per-job limit
func NewFFmpegTransformer(path, format string, timeout time.Duration) *FFmpegTransformer {
	if path == "" {
		path = defaultFFmpegPath
	}
	if format == "" {
		format = defaultFormat
	}
	return &FFmpegTransformer{Path: path, Format: format, Timeout: timeout}
}

// Transform pipe req.Input through ffmpeg. A non-zero exit means the input is bad and is
// permanent, a timeout, a cancelled ctx or a missing binary is transient.
func (f *FFmpegTransformer) Transform(ctx context.Context, req domain.TransformReq) (*domain.TransformRes, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	cmdArgs := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", f.Format,
		"pipe:1",
	}
	logger.Log.Debug("執行 FFmpeg", zap.String("path", f.Path), zap.Strings("args", cmdArgs))

	cmd := execCommand(ctx, f.Path, cmdArgs...)
	var stdout, stderr bytes.Buffer
	src := &sourceReader{r: req.Input}
	cmd.Stdin = src
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return &domain.TransformRes{
			Data:        stdout.Bytes(),
			ContentType: mimetype.Detect(stdout.Bytes()).String(),
		}, nil
	case src.err != nil:
		// ffmpeg only saw a truncated input, the store read is what failed
		return nil, pipeline.Transient(fmt.Errorf("read source: %w", src.err))
	case ctx.Err() != nil:
		return nil, pipeline.Transient(fmt.Errorf("ffmpeg: %w", ctx.Err()))
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return nil, pipeline.Transient(fmt.Errorf("ffmpeg binary %s: %w", f.Path, err))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, pipeline.Permanent(fmt.Errorf("ffmpeg exited with status %d: %s",
			exitErr.ExitCode(), tail(stderr.String(), stderrTail)))
	}
	return nil, pipeline.Transient(fmt.Errorf("ffmpeg: %w", err))
}

// sourceReader remembers a read error of the source stream. cmd.Run waits for the stdin
// copy to finish, so err is settled once Run returns.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// PassthroughTransformer returns the input unchanged
type PassthroughTransformer struct{}

// Transform copy req.Input, a read error is transient
func (PassthroughTransformer) Transform(ctx context.Context, req domain.TransformReq) (*domain.TransformRes, error) {
	data, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("read input: %w", err))
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return &domain.TransformRes{Data: data, ContentType: contentType}, nil
}
