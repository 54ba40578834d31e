// Package usecase implements the application services between the HTTP
// layer and the ports: submission, result resolution and queue management.
package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/dispatch"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// copyChunkSize is the buffer used when streaming uploads to the shared dir.
const copyChunkSize = 8 << 20

// SubmitRequest carries one submission.
type SubmitRequest struct {
	FileName string `validate:"required,max=512"`
	File     io.Reader
	Backend  string `validate:"omitempty,oneof=auto pipeline vlm-transformers vlm-vllm-engine deepseek-ocr paddleocr-vl sensevoice video fasta genbank"`
	Priority int
	Options  domain.Options
}

// SubmitService validates submissions, stages the payload on the shared
// filesystem and enqueues the task.
type SubmitService struct {
	Repo      domain.TaskRepository
	UploadDir string
	MaxBytes  int64

	validate *validator.Validate
}

// NewSubmitService constructs a SubmitService.
func NewSubmitService(repo domain.TaskRepository, uploadDir string, maxBytes int64) SubmitService {
	return SubmitService{Repo: repo, UploadDir: uploadDir, MaxBytes: maxBytes, validate: validator.New()}
}

// Submit stages the file as {uuidhex}_{basename} and creates the pending
// task on behalf of identity. The options bag is stored verbatim.
func (s SubmitService) Submit(ctx context.Context, identity domain.Identity, req SubmitRequest) (string, error) {
	if !identity.HasPermission(domain.PermTaskSubmit) {
		return "", fmt.Errorf("op=submit: %w", domain.ErrForbidden)
	}
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("op=submit: %w: %v", domain.ErrInvalidArgument, err)
	}
	if req.File == nil {
		return "", fmt.Errorf("op=submit: %w: missing file", domain.ErrInvalidArgument)
	}

	base := filepath.Base(req.FileName)
	staged := filepath.Join(s.UploadDir, strings.ReplaceAll(uuid.New().String(), "-", "")+"_"+base)
	size, err := s.stage(req.File, staged)
	if err != nil {
		return "", err
	}
	if size == 0 {
		_ = os.Remove(staged)
		return "", fmt.Errorf("op=submit: %w: empty file", domain.ErrInvalidArgument)
	}
	// Sniff the real content type; the result travels in the options bag for
	// diagnostics, the extension still drives dispatch.
	opts := domain.Options{}
	for k, v := range req.Options {
		opts[k] = v
	}
	if mt, err := mimetype.DetectFile(staged); err == nil {
		opts["detected_mime"] = mt.String()
	}

	backend := req.Backend
	if backend == "" {
		backend = "auto"
	}
	id, err := s.Repo.Create(ctx, domain.Task{
		UserID:   identity.UserID,
		FileName: base,
		FilePath: staged,
		Backend:  backend,
		Options:  opts,
		Priority: req.Priority,
	})
	if err != nil {
		_ = os.Remove(staged)
		return "", err
	}
	observability.TasksSubmittedTotal.WithLabelValues(dispatch.ChooseEngine(base, backend)).Inc()
	return id, nil
}

func (s SubmitService) stage(src io.Reader, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("op=submit.stage: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("op=submit.stage: %w", err)
	}
	defer func() { _ = f.Close() }()
	if s.MaxBytes > 0 {
		src = io.LimitReader(src, s.MaxBytes+1)
	}
	n, err := io.CopyBuffer(f, src, make([]byte, copyChunkSize))
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("op=submit.stage: %w", err)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("op=submit.stage: %w: file exceeds %d bytes", domain.ErrInvalidArgument, s.MaxBytes)
	}
	return n, nil
}
