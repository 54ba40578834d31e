// Package domain holds the core entities and ports of the document-processing
// task queue: tasks, identities, the task store contract, and the processing
// engine contract. Adapters (postgres, HTTP, engines) depend on this package,
// never the other way around.
package domain

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrNoTask            = errors.New("no pending task")
	ErrEngineUnavailable = errors.New("engine not available")
	ErrInternal          = errors.New("internal error")
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// ValidTransition reports whether a task may move from one status to the next.
// The allowed edges: pending→processing, pending→cancelled,
// processing→{completed,failed}, and processing→pending (stale recovery).
func ValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskProcessing || to == TaskCancelled
	case TaskProcessing:
		return to == TaskCompleted || to == TaskFailed || to == TaskPending
	default:
		return false
	}
}

// Options is the opaque engine-specific parameter bag preserved verbatim from
// submission. It is stored as JSON and decoded lazily at the engine boundary.
type Options map[string]any

// String returns the string value for key, or def when absent or mistyped.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool returns the boolean value for key, tolerating JSON round-trips that
// stringify booleans, or def when absent.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return def
}

// Float returns the numeric value for key, tolerating stringified numbers
// from form submissions, or def when absent or mistyped.
func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Task is the unit of file-processing work tracked by the store.
type Task struct {
	ID           string
	UserID       string
	FileName     string
	FilePath     string
	Backend      string
	Options      Options
	Priority     int
	Status       TaskStatus
	WorkerID     string
	RetryCount   int
	ResultPath   string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TaskFilter narrows List results. Zero values mean "no constraint";
// Limit<=0 applies the repository default.
type TaskFilter struct {
	Status TaskStatus
	UserID string
	Limit  int
}

// TaskRepository is the durable task store (spec: Task Store). Every method
// is a single transaction against the backing database.
type TaskRepository interface {
	// Create inserts a fresh pending row and returns the assigned task id.
	Create(ctx context.Context, t Task) (string, error)
	// LeaseNext atomically claims the highest-priority pending task for
	// workerID (ties broken by oldest created_at), stamping worker_id and
	// started_at. Returns ErrNoTask when the queue is empty. No two
	// concurrent callers ever receive the same task.
	LeaseNext(ctx context.Context, workerID string) (Task, error)
	// Complete transitions processing→completed|failed. The update applies
	// only while the row's worker_id matches the caller; it returns
	// applied=false (and mutates nothing) otherwise, protecting against a
	// stale worker overwriting a re-leased task.
	Complete(ctx context.Context, id string, status TaskStatus, resultPath, errMsg, workerID string) (bool, error)
	// Cancel transitions pending→cancelled; any other state is rejected.
	Cancel(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (Task, error)
	List(ctx context.Context, f TaskFilter) ([]Task, error)
	Stats(ctx context.Context) (map[TaskStatus]int64, error)
	// ResetStale returns processing tasks whose lease is older than timeout
	// back to pending, bumping retry_count. Returns the number reset.
	ResetStale(ctx context.Context, timeout time.Duration) (int64, error)
	// CleanupOld deletes terminal rows completed more than age ago.
	CleanupOld(ctx context.Context, age time.Duration) (int64, error)
	// ExpiredResults lists terminal rows older than age that still point at
	// a result directory; ClearResultPath marks one as swept. Together they
	// drive the on-disk retention sweeper while rows remain queryable.
	ExpiredResults(ctx context.Context, age time.Duration, limit int) ([]Task, error)
	ClearResultPath(ctx context.Context, id string) error
}

// EngineInfo describes a processing engine for the registry.
type EngineInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Extensions  []string `json:"supported_formats"`
}

// ParseRequest carries one engine invocation.
type ParseRequest struct {
	TaskID    string
	FileName  string
	FilePath  string
	OutputDir string
	// Backend is the submission's requested backend; engines that expose
	// backend variants (mineru vlm-*) forward it to the underlying tool.
	Backend string
	Options Options
}

// Engine is the processing-engine collaborator contract. Parse writes its
// artifacts (at least one Markdown file, optionally a JSON artifact and an
// images/ subtree) under req.OutputDir.
type Engine interface {
	Info() EngineInfo
	// Available returns nil when the engine can serve tasks, or a
	// descriptive error naming the missing dependency otherwise.
	Available() error
	Parse(ctx context.Context, req ParseRequest) error
}

// EngineRegistry exposes the worker-registered engine inventory to the API.
type EngineRegistry interface {
	Snapshot(ctx context.Context) ([]EngineStatus, error)
}

// EngineStatus is a registry entry: an engine plus its availability as
// reported by the registering worker.
type EngineStatus struct {
	EngineInfo
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// ObjectStore uploads result images for the upload_images rewrite and
// returns a publicly reachable URL.
type ObjectStore interface {
	UploadFile(ctx context.Context, localPath, objectName string) (string, error)
}
