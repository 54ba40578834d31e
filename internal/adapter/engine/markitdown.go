package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fairyhunter13/docqueue/internal/dispatch"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// MarkItDown wraps the markitdown CLI, the catch-all converter for office
// documents, HTML, ebooks and anything no specialized engine claims.
type MarkItDown struct {
	run Runner
	bin string
}

// NewMarkItDown constructs the engine.
func NewMarkItDown(run Runner) *MarkItDown {
	return &MarkItDown{run: run, bin: "markitdown"}
}

// Info implements domain.Engine.
func (e *MarkItDown) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        dispatch.EngineMarkItDown,
		DisplayName: "MarkItDown",
		Description: "Generic document to Markdown conversion",
		Category:    "document",
		Extensions:  []string{".docx", ".xlsx", ".pptx", ".html", ".csv", ".epub", ".txt", ".md"},
	}
}

// Available implements domain.Engine.
func (e *MarkItDown) Available() error {
	return binaryAvailable("markitdown", e.bin)
}

// Parse implements domain.Engine. markitdown prints to stdout, so the
// wrapper owns the output file.
func (e *MarkItDown) Parse(ctx context.Context, req domain.ParseRequest) error {
	out, err := e.run.RunCapture(ctx, e.bin, req.FilePath)
	if err != nil {
		return fmt.Errorf("op=engine.markitdown: %w", err)
	}
	stem := strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	dst := filepath.Join(req.OutputDir, stem+".md")
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("op=engine.markitdown: write output: %w", err)
	}
	return nil
}
