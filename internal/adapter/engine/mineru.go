package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/fairyhunter13/docqueue/internal/dispatch"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// MinerU wraps the mineru CLI, the default parser for PDF and image files.
type MinerU struct {
	run       Runner
	bin       string
	modelsDir string
}

// NewMinerU constructs the engine. modelsDir is optional; when set, its
// existence is part of the availability probe.
func NewMinerU(run Runner, modelsDir string) *MinerU {
	return &MinerU{run: run, bin: "mineru", modelsDir: modelsDir}
}

// Info implements domain.Engine.
func (e *MinerU) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        dispatch.EngineMinerU,
		DisplayName: "MinerU",
		Description: "Layout-aware PDF and image parsing with formula and table extraction",
		Category:    "document",
		Extensions:  []string{".pdf", ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".webp"},
	}
}

// Available implements domain.Engine.
func (e *MinerU) Available() error {
	if err := binaryAvailable("mineru", e.bin); err != nil {
		return err
	}
	if e.modelsDir != "" {
		if _, err := os.Stat(e.modelsDir); err != nil {
			return fmt.Errorf("mineru engine: models dir %q: %w", e.modelsDir, err)
		}
	}
	return nil
}

// Parse implements domain.Engine. The CLI writes the markdown, the
// content-list JSON and extracted images under req.OutputDir itself.
func (e *MinerU) Parse(ctx context.Context, req domain.ParseRequest) error {
	if err := e.run.Run(ctx, e.bin, e.argv(req)...); err != nil {
		return fmt.Errorf("op=engine.mineru: %w", err)
	}
	return nil
}

// argv builds the CLI arguments. The vlm-* backend variants are forwarded
// as-is; auto and pipeline use the CLI default.
func (e *MinerU) argv(req domain.ParseRequest) []string {
	args := []string{
		"-p", req.FilePath,
		"-o", req.OutputDir,
		"--lang", req.Options.String("lang", "ch"),
		"--method", req.Options.String("method", "auto"),
	}
	if b := req.Backend; b != "" && b != "auto" && b != "pipeline" {
		args = append(args, "--backend", b)
	}
	if !req.Options.Bool("formula_enable", true) {
		args = append(args, "--formula", "false")
	}
	if !req.Options.Bool("table_enable", true) {
		args = append(args, "--table", "false")
	}
	return args
}
