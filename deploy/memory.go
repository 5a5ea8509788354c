package deploy

import (
	"context"
	"sort"
	"sync"
)

// Blob is an object held by a MemoryTarget.
type Blob struct {
	Data    []byte
	Headers Headers
	Hash    string
}

// MemoryTarget is an in-process container for tests and dry runs.
// FailOn, when set, is consulted before every operation ("ensure", "list",
// "delete", "upload") and its error is returned.
type MemoryTarget struct {
	FailOn func(op, name string) error

	mu      sync.Mutex
	exists  bool
	blobs   map[string]Blob
	uploads int
}

// NewMemoryTarget returns an empty target.
func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{blobs: make(map[string]Blob)}
}

func (m *MemoryTarget) Name() string { return "memory" }

func (m *MemoryTarget) fail(op, name string) error {
	if m.FailOn == nil {
		return nil
	}
	return m.FailOn(op, name)
}

func (m *MemoryTarget) EnsureContainer(ctx context.Context) error {
	if err := m.fail("ensure", ""); err != nil {
		return err
	}
	m.mu.Lock()
	m.exists = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryTarget) List(ctx context.Context) ([]BlobInfo, error) {
	if err := m.fail("list", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BlobInfo, 0, len(m.blobs))
	for name, b := range m.blobs {
		out = append(out, BlobInfo{Name: name, Hash: b.Hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryTarget) Delete(ctx context.Context, name string) error {
	if err := m.fail("delete", name); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTarget) Upload(ctx context.Context, name string, data []byte, h Headers, hash string) error {
	if err := m.fail("upload", name); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.blobs[name] = Blob{Data: cp, Headers: h, Hash: hash}
	m.uploads++
	m.mu.Unlock()
	return nil
}

// Keys returns the sorted blob names.
func (m *MemoryTarget) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the blob stored under name.
func (m *MemoryTarget) Get(name string) (Blob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	return b, ok
}

// Put stores a blob directly, bypassing FailOn. Used to seed stale content.
func (m *MemoryTarget) Put(name string, data []byte) {
	m.mu.Lock()
	m.blobs[name] = Blob{Data: data}
	m.mu.Unlock()
}

// Uploads returns the number of successful Upload calls.
func (m *MemoryTarget) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

// Exists reports whether EnsureContainer has run.
func (m *MemoryTarget) Exists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists
}
