package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hazyhaar/siteforge/project"
)

func TestWrite_RoundTrip(t *testing.T) {
	snap := &project.Snapshot{Files: []project.File{
		{Name: "index.html", Content: []byte("<h1>" + strings.Repeat("hello ", 500) + "</h1>")},
		{Name: "script.js", Content: []byte("console.log('x')")},
		{Name: "empty.txt", Content: []byte{}},
		{Name: "assets/logo.svg", Content: []byte("<svg/>")},
	}}

	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, snap); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != len(snap.Files) {
		t.Fatalf("entries = %d, want %d", len(zr.File), len(snap.Files))
	}
	for i, zf := range zr.File {
		want := snap.Files[i]
		if zf.Name != want.Name {
			t.Errorf("entry %d name = %q, want %q", i, zf.Name, want.Name)
		}
		if zf.Method != zip.Deflate {
			t.Errorf("%s: method = %d, want deflate", zf.Name, zf.Method)
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want.Content) {
			t.Errorf("%s: content mismatch", zf.Name)
		}
	}

	if idx := zr.File[0]; idx.CompressedSize64 >= idx.UncompressedSize64 {
		t.Errorf("repetitive html not compressed: %d >= %d", idx.CompressedSize64, idx.UncompressedSize64)
	}
}

func TestWrite_EmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, &project.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 0 {
		t.Errorf("entries = %d", len(zr.File))
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }

func TestWrite_WriterFailure(t *testing.T) {
	snap := &project.Snapshot{Files: []project.File{{Name: "a.txt", Content: bytes.Repeat([]byte("x"), 1<<16)}}}
	if err := Write(context.Background(), failWriter{}, snap); err == nil {
		t.Fatal("expected error from failing writer")
	}
}
