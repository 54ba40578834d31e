// Package engine provides the processing-engine adapters. Each engine wraps
// an external tool (MinerU, MarkItDown, the OCR and speech runners) as a
// child process; the bioformats subpackage parses specialty formats natively.
//
// Device binding happens here: a Runner carries the accelerator index its
// worker owns and injects CUDA_VISIBLE_DEVICES into every child environment,
// so the tool always sees its device as logical index 0.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
)

// Runner executes engine child processes bound to one device.
type Runner struct {
	// Device is the physical accelerator index, or -1 for CPU-only.
	Device int
}

// stderrTailBytes bounds how much child stderr ends up in task error messages.
const stderrTailBytes = 2048

// Run executes the named binary with args, waiting for completion. On a
// non-zero exit the tail of stderr is folded into the returned error so task
// failures carry a usable message.
func (r Runner) Run(ctx context.Context, name string, args ...string) error {
	tracer := otel.Tracer("engine.runner")
	ctx, span := tracer.Start(ctx, "runner.Run")
	defer span.End()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.childEnv()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(stderr.Bytes(), stderrTailBytes))
	}
	return nil
}

// RunCapture is Run with stdout captured, for tools that write their output
// to stdout instead of files.
func (r Runner) RunCapture(ctx context.Context, name string, args ...string) ([]byte, error) {
	tracer := otel.Tracer("engine.runner")
	ctx, span := tracer.Start(ctx, "runner.RunCapture")
	defer span.End()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.childEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, tail(stderr.Bytes(), stderrTailBytes))
	}
	return stdout.Bytes(), nil
}

func (r Runner) childEnv() []string {
	env := os.Environ()
	if r.Device >= 0 {
		env = append(env, "CUDA_VISIBLE_DEVICES="+strconv.Itoa(r.Device))
	}
	return env
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

// binaryAvailable is the shared availability probe for CLI-backed engines.
func binaryAvailable(name, bin string) error {
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s engine: %q not found on PATH", name, bin)
	}
	return nil
}
