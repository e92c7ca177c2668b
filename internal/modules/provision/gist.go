package provision

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
)

type GistOptions struct {
	MaxFileSize int64
	MaxFiles    int
	Public      bool
}

const (
	DefaultGistMaxFileSize = 100 * 1024
	DefaultGistMaxFiles    = 50
	maxGistNameLen         = 100
	// Gist files display in name order and the first one titles the gist. gistName moves any
	// repo file that would sort before this one.
	folderStructureFile = "!_folder_structure.md"
)

func (o GistOptions) withDefaults() GistOptions {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultGistMaxFileSize
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultGistMaxFiles
	}
	return o
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".webp": true, ".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".tgz": true, ".rar": true,
	".7z": true, ".jar": true, ".war": true, ".class": true, ".exe": true, ".dll": true, ".so": true,
	".dylib": true, ".bin": true, ".o": true, ".a": true, ".pyc": true, ".pyo": true, ".woff": true,
	".woff2": true, ".ttf": true, ".otf": true, ".eot": true, ".mp3": true, ".mp4": true, ".mov": true,
	".avi": true, ".wav": true, ".db": true, ".sqlite": true, ".sqlite3": true, ".parquet": true,
}

var vendorDirs = map[string]bool{
	"node_modules": true, "vendor": true, "__pycache__": true, "venv": true, "env": true,
	"dist": true, "build": true, "target": true, "bower_components": true,
}

// ParseRepoURL accepts https://github.com/owner/repo[.git], git@github.com:owner/repo.git
// and owner/repo.
func ParseRepoURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty repository url")
	}
	ep, err := transport.NewEndpoint(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse repository url %q: %w", raw, err)
	}
	p := strings.TrimSuffix(strings.Trim(ep.Path, "/"), ".git")
	parts := strings.Split(p, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("repository url %q has no owner/repo", raw)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// CreateGistFromRepo mirrors a repository into a single flat gist and returns its URL. Every
// failure is logged and reported as "".
func (p *Provisioner) CreateGistFromRepo(ctx context.Context, repoURL, branch string) string {
	log := p.log.With("repo_url", repoURL)
	if p.gists == nil {
		log.Warn("gist client not configured; skipping gist")
		return ""
	}
	if _, err := p.repos.CurrentUser(ctx); err != nil {
		log.Error("repo token check failed", "error", err)
		return ""
	}
	if _, err := p.gists.CurrentUser(ctx); err != nil {
		log.Error("gist token check failed", "error", err)
		return ""
	}

	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		log.Error("gist source url invalid", "error", err)
		return ""
	}

	tree, usedBranch := p.findTree(ctx, owner, repo, branch)
	if tree == nil {
		log.Error("no readable branch for gist", "tried", branchCandidates(branch))
		return ""
	}

	files, included := p.collectGistFiles(ctx, owner, repo, tree)
	if len(files) == 0 {
		log.Warn("repository has no files eligible for a gist", "branch", usedBranch)
		return ""
	}
	files[folderStructureFile] = github.GistFile{Content: renderFolderStructure(repo, included)}

	gist, err := p.gists.CreateGist(ctx, github.CreateGistRequest{
		Description: fmt.Sprintf("%s (%s/%s@%s)", repo, owner, repo, usedBranch),
		Public:      p.cfg.Gist.Public,
		Files:       files,
	})
	if err != nil {
		log.Error("gist creation failed", "error", err)
		return ""
	}
	log.Info("gist created", "gist_url", gist.HTMLURL, "files", len(files))
	return gist.HTMLURL
}

func branchCandidates(branch string) []string {
	out := []string{}
	for _, b := range []string{branch, "main", "master"} {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			dup = dup || seen == b
		}
		if !dup {
			out = append(out, b)
		}
	}
	return out
}

func (p *Provisioner) findTree(ctx context.Context, owner, repo, branch string) (*github.Tree, string) {
	for _, b := range branchCandidates(branch) {
		tree, err := p.repos.GetTree(ctx, owner, repo, b, true)
		if err == nil {
			return tree, b
		}
		p.log.Debug("branch tree unavailable", "repo", owner+"/"+repo, "branch", b, "error", err)
	}
	return nil, ""
}

func (p *Provisioner) collectGistFiles(ctx context.Context, owner, repo string, tree *github.Tree) (map[string]github.GistFile, []string) {
	opts := p.cfg.Gist
	files := map[string]github.GistFile{}
	var included []string
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if len(files) >= opts.MaxFiles {
			p.log.Warn("gist file cap reached", "repo", owner+"/"+repo, "max_files", opts.MaxFiles)
			break
		}
		if skipGistPath(entry.Path) || entry.Size > opts.MaxFileSize {
			continue
		}
		raw, err := p.repos.GetBlob(ctx, owner, repo, entry.SHA)
		if err != nil {
			p.log.Warn("blob fetch failed", "path", entry.Path, "error", err)
			continue
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}
		name := gistName(entry.Path)
		if _, taken := files[name]; taken {
			p.log.Warn("flattened gist name collides; skipping", "path", entry.Path, "name", name)
			continue
		}
		files[name] = github.GistFile{Content: string(raw)}
		included = append(included, entry.Path)
	}
	return files, included
}

func skipGistPath(p string) bool {
	if path.Base(p) == ".gitignore" {
		return true
	}
	if binaryExtensions[strings.ToLower(path.Ext(p))] {
		return true
	}
	dirs := strings.Split(path.Dir(p), "/")
	for _, d := range dirs {
		if d == "." || d == "" || d == ".git" || d == ".github" {
			continue
		}
		if strings.HasPrefix(d, ".") || vendorDirs[d] {
			return true
		}
	}
	return false
}

// gistName is GistFileName moved past the folder-structure file when it would sort first.
func gistName(p string) string {
	name := GistFileName(p)
	if name <= folderStructureFile {
		name = "_" + name
	}
	return name
}

// GistFileName flattens a repository path into a gist file name, keeping the extension when
// the result has to be shortened.
func GistFileName(p string) string {
	name := strings.ReplaceAll(strings.TrimLeft(p, "/"), "/", "_")
	if len(name) <= maxGistNameLen {
		return name
	}
	ext := path.Ext(name)
	if len(ext) >= maxGistNameLen {
		ext = ""
	}
	return name[:maxGistNameLen-len(ext)] + ext
}

type dirNode struct {
	children map[string]*dirNode
}

func renderFolderStructure(root string, paths []string) string {
	top := &dirNode{children: map[string]*dirNode{}}
	for _, p := range paths {
		n := top
		for _, part := range strings.Split(p, "/") {
			child, ok := n.children[part]
			if !ok {
				child = &dirNode{children: map[string]*dirNode{}}
				n.children[part] = child
			}
			n = child
		}
	}
	var b strings.Builder
	b.WriteString("# Folder structure\n\n```\n")
	b.WriteString(root + "/\n")
	writeTree(&b, top, "")
	b.WriteString("```\n")
	return b.String()
}

func writeTree(b *strings.Builder, n *dirNode, prefix string) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	// Directories first, then files, each alphabetical.
	sort.Slice(names, func(i, j int) bool {
		di := len(n.children[names[i]].children) > 0
		dj := len(n.children[names[j]].children) > 0
		if di != dj {
			return di
		}
		return names[i] < names[j]
	})
	for i, name := range names {
		child := n.children[name]
		last := i == len(names)-1
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		label := name
		if len(child.children) > 0 {
			label += "/"
		}
		b.WriteString(prefix + branch + label + "\n")
		writeTree(b, child, prefix+next)
	}
}
