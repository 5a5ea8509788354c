// Package bundle streams a project snapshot as a zip archive.
package bundle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/hazyhaar/siteforge/project"
)

// Filename is the attachment name used by the download route.
const Filename = "generated-site.zip"

// ContentType is the MIME type of the archive.
const ContentType = "application/zip"

// Write streams snap to w as a zip archive. Entries use the snapshot names
// with no wrapper directory and Deflate at maximum compression. w may
// already have received bytes when an error is returned.
func Write(ctx context.Context, w io.Writer, snap *project.Snapshot) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	now := time.Now()
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: now,
		}
		hdr.SetMode(0o644)
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("bundle: add %s: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Content); err != nil {
			return fmt.Errorf("bundle: write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("bundle: finalize: %w", err)
	}
	return nil
}
