package engine

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/docqueue/internal/dispatch"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// DeepSeekOCR wraps the deepseek-ocr runner, a vision-language OCR backend
// for PDF and image files.
type DeepSeekOCR struct {
	run Runner
	bin string
}

// NewDeepSeekOCR constructs the engine.
func NewDeepSeekOCR(run Runner) *DeepSeekOCR {
	return &DeepSeekOCR{run: run, bin: "deepseek-ocr"}
}

// Info implements domain.Engine.
func (e *DeepSeekOCR) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        dispatch.EngineDeepSeekOCR,
		DisplayName: "DeepSeek OCR",
		Description: "Vision-language OCR for scanned documents and images",
		Category:    "document",
		Extensions:  []string{".pdf", ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".webp"},
	}
}

// Available implements domain.Engine.
func (e *DeepSeekOCR) Available() error {
	return binaryAvailable("deepseek-ocr", e.bin)
}

// Parse implements domain.Engine.
func (e *DeepSeekOCR) Parse(ctx context.Context, req domain.ParseRequest) error {
	args := []string{
		"--input", req.FilePath,
		"--output", req.OutputDir,
		"--resolution", req.Options.String("deepseek_resolution", "base"),
		"--prompt-type", req.Options.String("deepseek_prompt_type", "document"),
	}
	if dir := req.Options.String("deepseek_cache_dir", ""); dir != "" {
		args = append(args, "--cache-dir", dir)
	}
	if err := e.run.Run(ctx, e.bin, args...); err != nil {
		return fmt.Errorf("op=engine.deepseek_ocr: %w", err)
	}
	return nil
}

// PaddleOCRVL wraps the paddleocr-vl runner. Language detection is automatic,
// so no lang flag is passed.
type PaddleOCRVL struct {
	run Runner
	bin string
}

// NewPaddleOCRVL constructs the engine.
func NewPaddleOCRVL(run Runner) *PaddleOCRVL {
	return &PaddleOCRVL{run: run, bin: "paddleocr-vl"}
}

// Info implements domain.Engine.
func (e *PaddleOCRVL) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        dispatch.EnginePaddleOCRVL,
		DisplayName: "PaddleOCR-VL",
		Description: "Multilingual vision-language OCR with automatic language detection",
		Category:    "document",
		Extensions:  []string{".pdf", ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".webp"},
	}
}

// Available implements domain.Engine.
func (e *PaddleOCRVL) Available() error {
	return binaryAvailable("paddleocr-vl", e.bin)
}

// Parse implements domain.Engine.
func (e *PaddleOCRVL) Parse(ctx context.Context, req domain.ParseRequest) error {
	err := e.run.Run(ctx, e.bin, "--input", req.FilePath, "--output", req.OutputDir)
	if err != nil {
		return fmt.Errorf("op=engine.paddleocr_vl: %w", err)
	}
	return nil
}
