// CLAUDE:SUMMARY Deployment synchronizer: makes a blob container mirror the project snapshot (full wipe or content-hash diff).
// Package deploy publishes a project snapshot to a static-site container.
//
// After a successful Sync the container's key set equals the snapshot's
// file-name set. Sync is not atomic: a failure part-way leaves the container
// in whatever state the completed operations produced, and nothing is
// retried or rolled back.
package deploy

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/hazyhaar/siteforge/project"
)

// ErrDeploy wraps every failure reported by a Target during Sync.
var ErrDeploy = errors.New("deploy: failed")

// HashMetadataKey is the blob metadata key holding the content fingerprint.
const HashMetadataKey = "contenthash"

// BlobInfo describes one remote object.
type BlobInfo struct {
	Name string
	// Hash is the stored content fingerprint, empty when unknown.
	Hash string
}

// Headers are the HTTP properties stored with an uploaded blob.
type Headers struct {
	ContentType  string
	CacheControl string
}

// Target is a remote container keyed by blob name.
type Target interface {
	// EnsureContainer creates the container when it does not exist.
	EnsureContainer(ctx context.Context) error
	List(ctx context.Context) ([]BlobInfo, error)
	Delete(ctx context.Context, name string) error
	// Upload creates or overwrites name. hash is stored as blob metadata
	// when the target supports it.
	Upload(ctx context.Context, name string, data []byte, h Headers, hash string) error
	Name() string
}

// Strategy selects how the container is brought in line with the snapshot.
type Strategy string

const (
	// FullWipe deletes every remote blob, then uploads every file.
	FullWipe Strategy = "wipe"
	// Diff uploads added and changed files, deletes removed ones and skips
	// files whose fingerprint already matches.
	Diff Strategy = "diff"
)

// ParseStrategy maps a configuration value to a Strategy. Empty means FullWipe.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FullWipe, "full":
		return FullWipe, nil
	case Diff:
		return Diff, nil
	}
	return "", fmt.Errorf("deploy: unknown strategy %q", s)
}

// Result summarizes one Sync.
type Result struct {
	URL      string        `json:"url"`
	Target   string        `json:"target"`
	Strategy Strategy      `json:"strategy"`
	Uploaded []string      `json:"uploaded"`
	Deleted  []string      `json:"deleted"`
	Skipped  []string      `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Config configures a Syncer.
type Config struct {
	Target   Target
	Strategy Strategy
	// PublicURL is returned as-is in every Result. It is not derived from
	// the uploads.
	PublicURL string
	// Minify shrinks HTML, CSS, JS, JSON and SVG before upload.
	Minify bool
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Strategy == "" {
		c.Strategy = FullWipe
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Syncer mirrors snapshots into a Target.
type Syncer struct {
	cfg    Config
	minify *Minifier
}

// NewSyncer creates a Syncer. A nil Target is allowed; Sync then fails with
// ErrDeploy.
func NewSyncer(cfg Config) *Syncer {
	cfg.defaults()
	s := &Syncer{cfg: cfg}
	if cfg.Minify {
		s.minify = NewMinifier()
	}
	return s
}

// Strategy returns the configured strategy.
func (s *Syncer) Strategy() Strategy { return s.cfg.Strategy }

type payload struct {
	name    string
	data    []byte
	headers Headers
	hash    string
}

func (s *Syncer) prepare(snap *project.Snapshot) []payload {
	out := make([]payload, 0, snap.Len())
	for _, f := range snap.Files {
		data := f.Content
		if s.minify != nil {
			data = s.minify.Bytes(f.Name, data)
		}
		out = append(out, payload{
			name:    f.Name,
			data:    data,
			headers: HeadersFor(f.Name),
			hash:    Fingerprint(data),
		})
	}
	return out
}

// Sync makes the target mirror snap.
func (s *Syncer) Sync(ctx context.Context, snap *project.Snapshot) (*Result, error) {
	t := s.cfg.Target
	if t == nil {
		return nil, fmt.Errorf("%w: no deployment target configured", ErrDeploy)
	}
	start := time.Now()
	res := &Result{
		URL:      s.cfg.PublicURL,
		Target:   t.Name(),
		Strategy: s.cfg.Strategy,
		Uploaded: []string{},
		Deleted:  []string{},
		Skipped:  []string{},
	}

	if err := t.EnsureContainer(ctx); err != nil {
		return nil, fmt.Errorf("%w: ensure container: %w", ErrDeploy, err)
	}
	remote, err := t.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrDeploy, err)
	}

	files := s.prepare(snap)
	switch s.cfg.Strategy {
	case Diff:
		err = s.syncDiff(ctx, t, remote, files, res)
	default:
		err = s.syncWipe(ctx, t, remote, files, res)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	s.cfg.Logger.Info("deploy: synced",
		"target", res.Target,
		"strategy", res.Strategy,
		"uploaded", len(res.Uploaded),
		"deleted", len(res.Deleted),
		"skipped", len(res.Skipped),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (s *Syncer) syncWipe(ctx context.Context, t Target, remote []BlobInfo, files []payload, res *Result) error {
	for _, b := range remote {
		if err := t.Delete(ctx, b.Name); err != nil {
			return fmt.Errorf("%w: delete %s: %w", ErrDeploy, b.Name, err)
		}
		res.Deleted = append(res.Deleted, b.Name)
	}
	for _, f := range files {
		if err := t.Upload(ctx, f.name, f.data, f.headers, f.hash); err != nil {
			return fmt.Errorf("%w: upload %s: %w", ErrDeploy, f.name, err)
		}
		res.Uploaded = append(res.Uploaded, f.name)
	}
	return nil
}

func (s *Syncer) syncDiff(ctx context.Context, t Target, remote []BlobInfo, files []payload, res *Result) error {
	remoteHash := make(map[string]string, len(remote))
	for _, b := range remote {
		remoteHash[b.Name] = b.Hash
	}
	local := make(map[string]struct{}, len(files))

	for _, f := range files {
		local[f.name] = struct{}{}
		if h, ok := remoteHash[f.name]; ok && h != "" && h == f.hash {
			res.Skipped = append(res.Skipped, f.name)
			continue
		}
		if err := t.Upload(ctx, f.name, f.data, f.headers, f.hash); err != nil {
			return fmt.Errorf("%w: upload %s: %w", ErrDeploy, f.name, err)
		}
		res.Uploaded = append(res.Uploaded, f.name)
	}
	for _, b := range remote {
		if _, keep := local[b.Name]; keep {
			continue
		}
		if err := t.Delete(ctx, b.Name); err != nil {
			return fmt.Errorf("%w: delete %s: %w", ErrDeploy, b.Name, err)
		}
		res.Deleted = append(res.Deleted, b.Name)
	}
	return nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
