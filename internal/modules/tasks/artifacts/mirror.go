// Package artifacts mirrors generated tasks to a local directory, and optionally to a bucket,
// for human inspection. Nothing reads the mirror back.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/fsutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/gcp"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

const TaskFile = "task.json"

type Mirror struct {
	log    *logger.Logger
	dir    string
	bucket gcp.Bucket
}

// NewMirror writes under dir. bucket may be nil.
func NewMirror(log *logger.Logger, dir string, bucket gcp.Bucket) *Mirror {
	return &Mirror{log: log.With("service", "ArtifactMirror"), dir: dir, bucket: bucket}
}

type Result struct {
	Dir      string
	Files    []string
	Uploaded int
	// UploadErrors counts bucket uploads that failed; they do not fail Write.
	UploadErrors int
}

// Write stores doc as <dir>/<taskID>/task.json and every file at its relative path beneath it.
func (m *Mirror) Write(ctx context.Context, taskID string, doc any, files map[string]string) (*Result, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return nil, fmt.Errorf("invalid task id %q", taskID)
	}
	root := filepath.Join(m.dir, taskID)
	res := &Result{Dir: root}

	if _, err := fsutil.WriteJSONSafe(filepath.Join(root, TaskFile), doc, true); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, TaskFile)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rel, err := cleanRel(name)
		if err != nil {
			return res, err
		}
		if rel == TaskFile {
			m.log.Warn("code file shadows task.json; skipped", "task_id", taskID)
			continue
		}
		if err := fsutil.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(files[name])); err != nil {
			return res, err
		}
		res.Files = append(res.Files, rel)
	}
	m.log.Info("artifacts written", "task_id", taskID, "dir", root, "files", len(res.Files))

	if m.bucket != nil {
		m.upload(ctx, taskID, root, res)
	}
	return res, nil
}

func (m *Mirror) upload(ctx context.Context, taskID, root string, res *Result) {
	for _, rel := range res.Files {
		raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err == nil {
			err = m.bucket.Upload(ctx, path.Join(taskID, rel), bytes.NewReader(raw))
		}
		if err != nil {
			res.UploadErrors++
			m.log.Warn("artifact upload failed", "task_id", taskID, "file", rel, "error", err)
			continue
		}
		res.Uploaded++
	}
	m.log.Info("artifacts uploaded", "task_id", taskID, "bucket", m.bucket.Name(), "uploaded", res.Uploaded, "failed", res.UploadErrors)
}

// cleanRel normalizes a code-file path and rejects paths that leave the task directory.
func cleanRel(name string) (string, error) {
	p := strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"), "/")
	p = path.Clean(p)
	if p == "." || p == "" || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("code file path %q escapes the task directory", name)
	}
	return p, nil
}
