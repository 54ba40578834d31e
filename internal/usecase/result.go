package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fairyhunter13/docqueue/internal/domain"
	"github.com/fairyhunter13/docqueue/pkg/markdownx"
)

// Result formats accepted by the status endpoint.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatBoth     = "both"
)

// TaskView is the API-facing task projection, with lazily resolved result
// content when the task is terminal.
type TaskView struct {
	Task domain.Task
	// Data holds the requested artifact content; nil with Reason set when
	// the result files are gone.
	Data   map[string]any
	Reason string
}

// ResultService reads task status and resolves result artifacts from disk
// on demand; nothing about artifacts is stored in the task row beyond the
// result directory.
type ResultService struct {
	Repo  domain.TaskRepository
	Store domain.ObjectStore
}

// NewResultService constructs a ResultService. store may be nil when no
// object store is configured; upload_images then degrades to a no-op.
func NewResultService(repo domain.TaskRepository, store domain.ObjectStore) ResultService {
	return ResultService{Repo: repo, Store: store}
}

// Get returns the task and, for completed tasks, its artifacts in the
// requested format. Visibility: owner or TASK_VIEW_ALL.
func (s ResultService) Get(ctx context.Context, identity domain.Identity, id, format string, uploadImages bool) (TaskView, error) {
	switch format {
	case "", FormatMarkdown, FormatJSON, FormatBoth:
	default:
		return TaskView{}, fmt.Errorf("op=result.get: %w: format %q", domain.ErrInvalidArgument, format)
	}
	if format == "" {
		format = FormatMarkdown
	}
	task, err := s.Repo.Get(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	if !identity.CanAccessTask(task, domain.PermTaskViewAll) {
		return TaskView{}, fmt.Errorf("op=result.get: %w", domain.ErrForbidden)
	}
	view := TaskView{Task: task}
	if task.Status != domain.TaskCompleted {
		return view, nil
	}
	if task.ResultPath == "" {
		view.Reason = "result files have been cleaned up"
		return view, nil
	}
	data := map[string]any{}
	if format == FormatMarkdown || format == FormatBoth {
		md, err := s.readMarkdown(ctx, task.ResultPath, id, uploadImages)
		if err != nil {
			return TaskView{}, fmt.Errorf("op=result.get: %w", err)
		}
		data["md_content"] = md
	}
	if format == FormatJSON || format == FormatBoth {
		raw, err := readJSONArtifact(task.ResultPath)
		if err != nil {
			return TaskView{}, fmt.Errorf("op=result.get: %w", err)
		}
		data["json_content"] = raw
	}
	view.Data = data
	return view, nil
}

// readMarkdown concatenates every markdown artifact under dir, optionally
// rewriting local image references through the object store.
func (s ResultService) readMarkdown(ctx context.Context, dir, taskID string, uploadImages bool) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	sort.Strings(files)
	var parts []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		md := string(b)
		if uploadImages && s.Store != nil {
			base := filepath.Dir(f)
			md = markdownx.RewriteImages(md, func(ref string) (string, error) {
				local := ref
				if !filepath.IsAbs(local) {
					local = filepath.Join(base, ref)
				}
				object := filepath.ToSlash(filepath.Join(taskID, filepath.Base(ref)))
				return s.Store.UploadFile(ctx, local, object)
			})
		}
		parts = append(parts, md)
	}
	return strings.Join(parts, "\n\n"), nil
}

// jsonArtifact reports whether name matches the artifact patterns the
// engines emit.
func jsonArtifact(name string) bool {
	return strings.HasSuffix(name, "_content_list.json") ||
		name == "content.json" || name == "result.json"
}

// readJSONArtifact finds the engine's JSON artifact under dir, skipping
// per-page intermediate directories.
func readJSONArtifact(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "page_") {
				return filepath.SkipDir
			}
			return nil
		}
		if found == "" && jsonArtifact(d.Name()) {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", nil
	}
	b, err := os.ReadFile(found)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
