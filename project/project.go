// CLAUDE:SUMMARY Owned project directory: clean-slate materialization of generated files, single-file edits, sorted listing and snapshots over go-billy.
// Package project owns the on-disk generated site. Exactly one snapshot
// exists at a time: Materialize wipes the directory and writes a new batch,
// Write edits one file in place.
//
// Storage goes through a billy.Filesystem: osfs in production, memfs in tests.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/hazyhaar/siteforge/horosafe"
)

var (
	ErrStorage     = errors.New("project: storage failure")
	ErrNotFound    = errors.New("project: file not found")
	ErrInvalidName = errors.New("project: invalid file name")
)

// File is one generated file. Name is relative to the project root and uses
// forward slashes.
type File struct {
	Name    string
	Content []byte
}

// Snapshot is the set of files currently materialized, sorted by name.
type Snapshot struct {
	Files []File
}

// Names returns the sorted file names.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.Files))
	for i, f := range s.Files {
		names[i] = f.Name
	}
	return names
}

// Get returns the content of name.
func (s *Snapshot) Get(name string) ([]byte, bool) {
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Name >= name })
	if i < len(s.Files) && s.Files[i].Name == name {
		return s.Files[i].Content, true
	}
	return nil, false
}

// Len returns the number of files.
func (s *Snapshot) Len() int { return len(s.Files) }

func newSnapshot(files []File) *Snapshot {
	byName := make(map[string]File, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}
	out := make([]File, 0, len(byName))
	for _, f := range byName {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return &Snapshot{Files: out}
}

// Config configures a Workspace.
type Config struct {
	// FS holds the project directory. When nil, an osfs rooted at the parent
	// of Dir is used.
	FS billy.Filesystem
	// Root is the project directory inside FS. Ignored when FS is nil.
	Root string
	// Dir is the absolute OS path of the project directory, when it lives on
	// the local disk. Used by the preview server and file watcher.
	Dir    string
	Logger *slog.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.FS == nil {
		if c.Dir == "" {
			return fmt.Errorf("%w: no directory configured", ErrStorage)
		}
		abs, err := filepath.Abs(c.Dir)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		c.Dir = abs
		c.FS = osfs.New(filepath.Dir(abs))
		c.Root = filepath.Base(abs)
	}
	if c.Root == "" {
		c.Root = "site"
	}
	return nil
}

// Workspace is the single owner of the project directory. Mutations take
// the write lock; reads hold the read lock while they copy data out.
type Workspace struct {
	fs     billy.Filesystem
	root   string
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates a Workspace. It does not touch the filesystem.
func New(cfg Config) (*Workspace, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	return &Workspace{
		fs:     cfg.FS,
		root:   cfg.Root,
		dir:    cfg.Dir,
		logger: cfg.Logger,
	}, nil
}

// Dir returns the OS path of the project directory, or "" when the
// workspace is not backed by the local disk.
func (w *Workspace) Dir() string { return w.dir }

// ValidateName checks that name is a safe relative file name.
func ValidateName(name string) (string, error) {
	clean, err := horosafe.ValidateRelPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	return clean, nil
}

func (w *Workspace) fsPath(name string) string {
	return w.fs.Join(append([]string{w.root}, strings.Split(name, "/")...)...)
}

// Materialize replaces the whole project with files: the directory is
// removed, recreated and every file written fresh. All names are validated
// before anything is deleted, so a bad batch leaves the previous snapshot
// intact. A write failure aborts the cycle and may leave a partial project.
func (w *Workspace) Materialize(ctx context.Context, files []File) (*Snapshot, error) {
	for _, f := range files {
		if _, err := ValidateName(f.Name); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := util.RemoveAll(w.fs, w.root); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: clear %s: %w", ErrStorage, w.root, err)
	}
	if err := w.fs.MkdirAll(w.root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorage, w.root, err)
	}
	for _, f := range files {
		if err := w.writeLocked(f.Name, f.Content); err != nil {
			return nil, err
		}
	}

	snap := newSnapshot(files)
	w.logger.Info("project: materialized", "files", snap.Len(), "root", w.root)
	return snap, nil
}

// Write creates or overwrites one file. Siblings are untouched.
func (w *Workspace) Write(ctx context.Context, name string, content []byte) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeLocked(name, content); err != nil {
		return err
	}
	w.logger.Info("project: file written", "file", name, "bytes", len(content))
	return nil
}

func (w *Workspace) writeLocked(name string, content []byte) error {
	dir := w.root
	if d := path.Dir(name); d != "." {
		dir = w.fsPath(d)
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %w", ErrStorage, name, err)
	}
	if content == nil {
		content = []byte{}
	}
	if err := util.WriteFile(w.fs, w.fsPath(name), content, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, name, err)
	}
	return nil
}

// Read returns the content of name.
func (w *Workspace) Read(ctx context.Context, name string) ([]byte, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.readLocked(name)
}

func (w *Workspace) readLocked(name string) ([]byte, error) {
	fi, err := w.fs.Stat(w.fsPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrStorage, name, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := util.ReadFile(w.fs, w.fsPath(name))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, name, err)
	}
	return data, nil
}

// Exists reports whether name is a file of the current snapshot.
func (w *Workspace) Exists(ctx context.Context, name string) bool {
	name, err := ValidateName(name)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	fi, err := w.fs.Stat(w.fsPath(name))
	return err == nil && !fi.IsDir()
}

// List returns the sorted names of all files. A missing project directory
// yields an empty list.
func (w *Workspace) List(ctx context.Context) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := []string{}
	err := w.walk("", func(name string) error {
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Snapshot reads every file of the project.
func (w *Workspace) Snapshot(ctx context.Context) (*Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var files []File
	err := w.walk("", func(name string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := w.readLocked(name)
		if err != nil {
			return err
		}
		files = append(files, File{Name: name, Content: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSnapshot(files), nil
}

// walk visits every regular file below rel, depth first.
func (w *Workspace) walk(rel string, fn func(name string) error) error {
	dir := w.root
	if rel != "" {
		dir = w.fsPath(rel)
	}
	infos, err := w.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && rel == "" {
			return nil
		}
		return fmt.Errorf("%w: list %s: %w", ErrStorage, dir, err)
	}
	for _, fi := range infos {
		name := path.Join(rel, fi.Name())
		if fi.IsDir() {
			if err := w.walk(name, fn); err != nil {
				return err
			}
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}
