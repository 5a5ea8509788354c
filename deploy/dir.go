package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// DirTarget mirrors the site into a local directory, for local static
// hosting or inspection. Fingerprints are recomputed from file contents on
// List, so Diff works without a metadata store. Headers are not persisted.
type DirTarget struct {
	fs   billy.Filesystem
	root string
}

// NewDirTarget mirrors into dir on the local disk.
func NewDirTarget(dir string) *DirTarget {
	return &DirTarget{fs: osfs.New(dir), root: "/"}
}

// NewFSTarget mirrors into root inside an arbitrary billy filesystem.
func NewFSTarget(fs billy.Filesystem, root string) *DirTarget {
	if root == "" {
		root = "/"
	}
	return &DirTarget{fs: fs, root: root}
}

func (d *DirTarget) Name() string { return "dir" }

func (d *DirTarget) path(name string) string {
	return d.fs.Join(append([]string{d.root}, strings.Split(name, "/")...)...)
}

func (d *DirTarget) EnsureContainer(ctx context.Context) error {
	return d.fs.MkdirAll(d.root, 0o755)
}

func (d *DirTarget) List(ctx context.Context) ([]BlobInfo, error) {
	var out []BlobInfo
	var walk func(rel string) error
	walk = func(rel string) error {
		dir := d.root
		if rel != "" {
			dir = d.path(rel)
		}
		infos, err := d.fs.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && rel == "" {
				return nil
			}
			return err
		}
		for _, fi := range infos {
			name := path.Join(rel, fi.Name())
			if fi.IsDir() {
				if err := walk(name); err != nil {
					return err
				}
				continue
			}
			data, err := util.ReadFile(d.fs, d.path(name))
			if err != nil {
				return err
			}
			out = append(out, BlobInfo{Name: name, Hash: Fingerprint(data)})
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, fmt.Errorf("dir target: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes name and prunes directories left empty.
func (d *DirTarget) Delete(ctx context.Context, name string) error {
	if err := d.fs.Remove(d.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
		infos, err := d.fs.ReadDir(d.path(dir))
		if err != nil || len(infos) > 0 {
			break
		}
		d.fs.Remove(d.path(dir))
	}
	return nil
}

func (d *DirTarget) Upload(ctx context.Context, name string, data []byte, h Headers, hash string) error {
	if dir := path.Dir(name); dir != "." {
		if err := d.fs.MkdirAll(d.path(dir), 0o755); err != nil {
			return err
		}
	}
	return util.WriteFile(d.fs, d.path(name), data, 0o644)
}
