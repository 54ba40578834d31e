package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/docqueue/internal/domain"
	"github.com/fairyhunter13/docqueue/internal/usecase"
)

// submitMemoryLimit caps the in-memory portion of multipart parsing; larger
// file parts spill to temp files and are streamed from there.
const submitMemoryLimit = 8 << 20

// optionFields are the known submission form fields folded into the opaque
// options bag, exactly as received.
var optionFields = []string{
	"lang", "method", "formula_enable", "table_enable",
	"deepseek_resolution", "deepseek_prompt_type", "deepseek_cache_dir",
	"keep_audio", "enable_keyframe_ocr", "ocr_backend", "keep_keyframes",
	"remove_watermark", "watermark_conf_threshold", "watermark_dilation",
	"include_full_sequence", "max_sequence_preview",
}

// Server wires the application services into HTTP handlers.
type Server struct {
	Submit   usecase.SubmitService
	Result   usecase.ResultService
	Queue    usecase.QueueService
	Registry domain.EngineRegistry
	// LocalProbe is the fallback engine listing when the shared registry is
	// unreachable.
	LocalProbe func() []domain.EngineStatus

	MaxUploadBytes int64
	StaleTimeout   time.Duration
	RetentionAge   time.Duration
	ReadyCheck     func(ctx context.Context) error
}

// SubmitTask handles POST /api/v1/tasks/submit.
func (s *Server) SubmitTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(submitMemoryLimit); err != nil {
		writeError(w, r, fmt.Errorf("%w: parse multipart: %v", domain.ErrInvalidArgument, err), nil)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field", domain.ErrInvalidArgument), nil)
		return
	}
	defer func() { _ = file.Close() }()

	priority := 0
	if v := r.FormValue("priority"); v != "" {
		priority, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: priority must be an integer", domain.ErrInvalidArgument), nil)
			return
		}
	}
	opts := domain.Options{}
	for _, k := range optionFields {
		if v := r.FormValue(k); v != "" {
			opts[k] = v
		}
	}

	id, err := s.Submit.Submit(r.Context(), identity, usecase.SubmitRequest{
		FileName: header.Filename,
		File:     file,
		Backend:  r.FormValue("backend"),
		Priority: priority,
		Options:  opts,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	LoggerFrom(r).Info("task submitted",
		"task_id", id, "file", header.Filename, "user_id", identity.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"task_id":    id,
		"status":     string(domain.TaskPending),
		"message":    "Task submitted successfully",
		"file_name":  header.Filename,
		"user_id":    identity.UserID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// taskJSON is the wire projection of a task.
func taskJSON(t domain.Task) map[string]any {
	out := map[string]any{
		"task_id":       t.ID,
		"status":        string(t.Status),
		"file_name":     t.FileName,
		"backend":       t.Backend,
		"priority":      t.Priority,
		"error_message": t.ErrorMessage,
		"worker_id":     t.WorkerID,
		"retry_count":   t.RetryCount,
		"user_id":       t.UserID,
		"created_at":    t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.StartedAt != nil {
		out["started_at"] = t.StartedAt.UTC().Format(time.RFC3339)
	}
	if t.CompletedAt != nil {
		out["completed_at"] = t.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// GetTask handles GET /api/v1/tasks/{id}.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	id := chi.URLParam(r, "id")
	format := r.URL.Query().Get("format")
	uploadImages := r.URL.Query().Get("upload_images") == "true"

	view, err := s.Result.Get(r.Context(), identity, id, format, uploadImages)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	resp := taskJSON(view.Task)
	resp["success"] = true
	if view.Task.Status == domain.TaskCompleted {
		if view.Data != nil {
			resp["data"] = view.Data
		} else {
			resp["data"] = nil
			resp["message"] = view.Reason
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelTask handles DELETE /api/v1/tasks/{id}.
func (s *Server) CancelTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Queue.Cancel(r.Context(), identity, id); err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task cancelled successfully",
	})
}

// QueueStats handles GET /api/v1/queue/stats.
func (s *Server) QueueStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	stats, err := s.Queue.Stats(r.Context(), identity)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	counts := map[string]int64{}
	var total int64
	for status, n := range stats {
		counts[string(status)] = n
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   counts,
		"total":   total,
	})
}

// ListTasks handles GET /api/v1/queue/tasks.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	f := domain.TaskFilter{
		Status: domain.TaskStatus(r.URL.Query().Get("status")),
		UserID: r.URL.Query().Get("user_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidArgument), nil)
			return
		}
		f.Limit = limit
	}
	tasks, err := s.Queue.List(r.Context(), identity, f)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"count":        len(out),
		"tasks":        out,
		"can_view_all": identity.HasPermission(domain.PermTaskViewAll),
	})
}

// AdminCleanup handles POST /api/v1/admin/cleanup.
func (s *Server) AdminCleanup(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	age := s.RetentionAge
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			writeError(w, r, fmt.Errorf("%w: days must be a non-negative integer", domain.ErrInvalidArgument), nil)
			return
		}
		age = time.Duration(days) * 24 * time.Hour
	}
	n, err := s.Queue.Cleanup(r.Context(), identity, age)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"deleted_count": n,
		"message":       fmt.Sprintf("Cleaned up tasks older than %s", age),
	})
}

// AdminResetStale handles POST /api/v1/admin/reset-stale.
func (s *Server) AdminResetStale(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthorized, nil)
		return
	}
	timeout := s.StaleTimeout
	if v := r.URL.Query().Get("timeout_minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			writeError(w, r, fmt.Errorf("%w: timeout_minutes must be a positive integer", domain.ErrInvalidArgument), nil)
			return
		}
		timeout = time.Duration(minutes) * time.Minute
	}
	n, err := s.Queue.ResetStale(r.Context(), identity, timeout)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"reset_count": n,
	})
}

// ListEngines handles GET /api/v1/engines. The shared registry reflects
// live worker inventory; the local probe covers the degraded case.
func (s *Server) ListEngines(w http.ResponseWriter, r *http.Request) {
	var engines []domain.EngineStatus
	if s.Registry != nil {
		if snap, err := s.Registry.Snapshot(r.Context()); err == nil && len(snap) > 0 {
			engines = snap
		} else if err != nil {
			LoggerFrom(r).Warn("engine registry unreachable", "error", err)
		}
	}
	if engines == nil && s.LocalProbe != nil {
		engines = s.LocalProbe()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"engines": engines,
	})
}

// Health handles GET /api/v1/health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.ReadyCheck != nil {
		if err := s.ReadyCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}
