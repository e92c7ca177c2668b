package provision

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/httpx"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
)

const refPollAttempts = 5

// CommitFiles writes every file in one commit on branch: one blob per file, one tree on top
// of the head tree, one commit whose parent is the old head, then a fast-forward of the ref.
// Any failure aborts before the ref moves; created blobs are left unreferenced.
func (p *Provisioner) CommitFiles(ctx context.Context, owner, repo, branch string, files map[string]any, message string) (*github.Commit, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("commit to %s/%s: no files", owner, repo)
	}
	if branch == "" {
		branch = p.cfg.Branch
	}
	ref := "heads/" + branch
	log := p.log.With("repo", owner+"/"+repo, "branch", branch)

	head, err := p.waitForRef(ctx, owner, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("read %s of %s/%s: %w", ref, owner, repo, err)
	}
	headSHA := head.Object.SHA
	headCommit, err := p.repos.GetCommit(ctx, owner, repo, headSHA)
	if err != nil {
		return nil, fmt.Errorf("read head commit %s: %w", headSHA, err)
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	entries := make([]github.TreeEntry, 0, len(paths))
	for _, path := range paths {
		clean := strings.TrimLeft(path, "/")
		if clean == "" {
			continue
		}
		blob, err := p.repos.CreateBlob(ctx, owner, repo, types.FileContent(files[path]))
		if err != nil {
			return nil, fmt.Errorf("create blob for %s: %w", clean, err)
		}
		entries = append(entries, github.TreeEntry{Path: clean, Mode: "100644", Type: "blob", SHA: blob.SHA})
	}

	tree, err := p.repos.CreateTree(ctx, owner, repo, headCommit.Tree.SHA, entries)
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}
	commit, err := p.repos.CreateCommit(ctx, owner, repo, github.CreateCommitRequest{
		Message: message,
		Tree:    tree.SHA,
		Parents: []string{headSHA},
	})
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	if _, err := p.repos.UpdateRef(ctx, owner, repo, ref, commit.SHA, false); err != nil {
		return nil, fmt.Errorf("update %s to %s: %w", ref, commit.SHA, err)
	}

	log.Info("files committed", "files", len(entries), "commit", commit.SHA, "parent", headSHA)
	return commit, nil
}

// waitForRef polls for a branch that may not exist yet right after template generation.
func (p *Provisioner) waitForRef(ctx context.Context, owner, repo, ref string) (*github.Ref, error) {
	var lastErr error
	for attempt := 1; attempt <= refPollAttempts; attempt++ {
		head, err := p.repos.GetRef(ctx, owner, repo, ref)
		if err == nil {
			return head, nil
		}
		lastErr = err
		code := github.StatusCode(err)
		if code != http.StatusNotFound && code != http.StatusConflict {
			return nil, err
		}
		if attempt < refPollAttempts {
			if err := httpx.Sleep(ctx, p.refWait); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}
