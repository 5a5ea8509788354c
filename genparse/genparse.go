// CLAUDE:SUMMARY Pure parser that splits a model's multi-file text output into named files using "--- name ---" markers.
// Package genparse turns the free-text output of a code-generating model into
// a set of named files.
//
// Grammar:
//
//	output     = preamble { segment }
//	segment    = marker body
//	marker     = "---" space* filename space* "---" space* newline
//	filename   = 1*( ALPHA | DIGIT | "_" | "." | "-" )
//	body       = any text up to the next terminator or end of input
//	terminator = "---" space* filename space* "---"   (anywhere, newline not required)
//
// space is any whitespace, newlines included, so a filename alone on the line
// between two "---" rules is a marker too. A consequence: a bare "---" rule, a
// one-word line and another "---" end the current body and open a file named
// after that word. Filenames made only of dots are matched but rejected, and their body is discarded. Text before
// the first marker, and malformed markers (a filename with spaces or path
// separators), never start a segment: malformed markers stay inside the
// preceding body.
//
// Bodies are trimmed, and a surrounding ``` fence (with optional language
// tag) is removed. A filename that appears twice keeps the later body.
package genparse

import (
	"errors"
	"regexp"
	"strings"
)

// MarkerToken delimits both sides of a filename in a marker.
const MarkerToken = "---"

// ErrNoFiles is returned when the output contains no recognizable segment.
var ErrNoFiles = errors.New("genparse: no file markers found in model output")

var (
	markerRe     = regexp.MustCompile(`---\s*([\w.\-]+)\s*---\s*\n`)
	terminatorRe = regexp.MustCompile(`---\s*[\w.\-]+\s*---`)
	fenceOpenRe  = regexp.MustCompile("^```[\\w+#.\\-]*[ \\t]*(?:\\r?\\n)?")
)

const fence = "```"

// File is one parsed segment.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Batch is the ordered result of Parse. Order is the position of each
// filename's first occurrence.
type Batch struct {
	Files []File `json:"files"`
	// Rejected lists filenames that matched the charset but were refused
	// (dot-only names).
	Rejected []string `json:"rejected,omitempty"`

	index map[string]int
}

func newBatch() *Batch {
	return &Batch{index: make(map[string]int)}
}

func (b *Batch) put(name, content string) {
	if i, ok := b.index[name]; ok {
		b.Files[i].Content = content
		return
	}
	b.index[name] = len(b.Files)
	b.Files = append(b.Files, File{Name: name, Content: content})
}

// Len returns the number of distinct files.
func (b *Batch) Len() int { return len(b.Files) }

// Names returns filenames in batch order.
func (b *Batch) Names() []string {
	names := make([]string, len(b.Files))
	for i, f := range b.Files {
		names[i] = f.Name
	}
	return names
}

// Get returns the content stored under name.
func (b *Batch) Get(name string) (string, bool) {
	i, ok := b.index[name]
	if !ok {
		return "", false
	}
	return b.Files[i].Content, true
}

// Map returns a filename → content view of the batch.
func (b *Batch) Map() map[string]string {
	m := make(map[string]string, len(b.Files))
	for _, f := range b.Files {
		m[f.Name] = f.Content
	}
	return m
}

// Parse splits raw model output into files. When no segment is found it
// returns an empty, non-nil Batch together with ErrNoFiles.
func Parse(raw string) (*Batch, error) {
	b := newBatch()
	pos := 0
	for pos < len(raw) {
		loc := markerRe.FindStringSubmatchIndex(raw[pos:])
		if loc == nil {
			break
		}
		name := raw[pos+loc[2] : pos+loc[3]]
		bodyStart := pos + loc[1]
		bodyEnd := len(raw)
		if t := terminatorRe.FindStringIndex(raw[bodyStart:]); t != nil {
			bodyEnd = bodyStart + t[0]
		}

		if strings.Trim(name, ".") == "" {
			b.Rejected = append(b.Rejected, name)
		} else {
			b.put(name, CleanBody(raw[bodyStart:bodyEnd]))
		}
		pos = bodyEnd
	}

	if b.Len() == 0 {
		return b, ErrNoFiles
	}
	return b, nil
}

// CleanBody trims a segment body and strips a surrounding code fence.
// The closing fence is optional; the opening fence and its language tag are
// removed only when the trimmed body starts with one.
func CleanBody(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, fence) {
		return body
	}
	body = fenceOpenRe.ReplaceAllString(body, "")
	body = strings.TrimSuffix(body, fence)
	return strings.TrimSpace(body)
}
