package genparse

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     []File
		rejected []string
	}{
		{
			name: "two files",
			raw:  "--- a.txt ---\nX\n--- b.txt ---\nY",
			want: []File{{"a.txt", "X"}, {"b.txt", "Y"}},
		},
		{
			name: "preamble ignored",
			raw:  "Here is your site:\n\n--- index.html ---\n<h1>Hi</h1>\n",
			want: []File{{"index.html", "<h1>Hi</h1>"}},
		},
		{
			name: "fenced with language tag",
			raw:  "--- index.html ---\n```html\n<!DOCTYPE html>\n<p>x</p>\n```\n",
			want: []File{{"index.html", "<!DOCTYPE html>\n<p>x</p>"}},
		},
		{
			name: "fence without tag",
			raw:  "--- a.txt ---\n```\nX\n```",
			want: []File{{"a.txt", "X"}},
		},
		{
			name: "fence never closed",
			raw:  "--- style.css ---\n```css\nbody { margin: 0; }\n",
			want: []File{{"style.css", "body { margin: 0; }"}},
		},
		{
			name: "duplicate keeps last body and first position",
			raw:  "--- a ---\n1\n--- b ---\n2\n--- a ---\n3",
			want: []File{{"a", "3"}, {"b", "2"}},
		},
		{
			name: "malformed marker stays in previous body",
			raw:  "--- index.html ---\nA\n--- my page.html ---\nsee more\n--- style.css ---\nC",
			want: []File{{"index.html", "A\n--- my page.html ---\nsee more"}, {"style.css", "C"}},
		},
		{
			name: "terminator mid-line",
			raw:  "--- a.js ---\nconst x = 1; --- b.js ---\nY",
			want: []File{{"a.js", "const x = 1;"}, {"b.js", "Y"}},
		},
		{
			name: "marker at end of input without newline is not a segment",
			raw:  "--- a.txt ---\nA\n--- b.txt ---",
			want: []File{{"a.txt", "A"}},
		},
		{
			name:     "dot-only names rejected",
			raw:      "--- .. ---\nevil\n--- . ---\nworse\n--- ok.txt ---\nfine",
			want:     []File{{"ok.txt", "fine"}},
			rejected: []string{"..", "."},
		},
		{
			name: "dotfile accepted",
			raw:  "--- .nojekyll ---\n\n--- index.html ---\nx",
			want: []File{{".nojekyll", ""}, {"index.html", "x"}},
		},
		{
			name: "crlf line endings",
			raw:  "--- a.txt ---\r\nX\r\n--- b.txt ---\r\nY\r\n",
			want: []File{{"a.txt", "X"}, {"b.txt", "Y"}},
		},
		{
			name: "empty body",
			raw:  "--- a.txt ---\n--- b.txt ---\nB",
			want: []File{{"a.txt", ""}, {"b.txt", "B"}},
		},
		{
			name: "extra spaces and tabs around name",
			raw:  "---   index.html\t---   \n<p>ok</p>",
			want: []File{{"index.html", "<p>ok</p>"}},
		},
		{
			name: "marker spread over lines",
			raw:  "---\nindex.html\n---\n<p>x</p>",
			want: []File{{"index.html", "<p>x</p>"}},
		},
		{
			name: "rule then word then rule opens a file",
			raw:  "--- a.css ---\nbody{}\n---\nb.js\n---\nrun()",
			want: []File{{"a.css", "body{}"}, {"b.js", "run()"}},
		},
		{
			name: "blank lines after marker",
			raw:  "--- a.txt ---\n\n\n  X  \n\n",
			want: []File{{"a.txt", "X"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(b.Files, tt.want) {
				t.Errorf("files = %q, want %q", b.Files, tt.want)
			}
			if !reflect.DeepEqual(b.Rejected, tt.rejected) {
				t.Errorf("rejected = %q, want %q", b.Rejected, tt.rejected)
			}
		})
	}
}

func TestParse_NoFiles(t *testing.T) {
	for _, raw := range []string{
		"",
		"   \n\t",
		"I could not generate that site, sorry.",
		"-- index.html --\n<p>two dashes</p>",
		"--- .. ---\nonly a rejected name",
	} {
		b, err := Parse(raw)
		if !errors.Is(err, ErrNoFiles) {
			t.Errorf("Parse(%q) err = %v, want ErrNoFiles", raw, err)
		}
		if b == nil || b.Len() != 0 || len(b.Map()) != 0 {
			t.Errorf("Parse(%q) batch = %+v, want empty", raw, b)
		}
	}
}

func TestBatchAccessors(t *testing.T) {
	b, err := Parse("--- index.html ---\n<h1>Home</h1>\n--- script.js ---\nrun();")
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Names(); !reflect.DeepEqual(got, []string{"index.html", "script.js"}) {
		t.Errorf("Names = %v", got)
	}
	if c, ok := b.Get("script.js"); !ok || c != "run();" {
		t.Errorf("Get(script.js) = %q, %v", c, ok)
	}
	if _, ok := b.Get("missing.css"); ok {
		t.Error("Get(missing.css) should report absent")
	}
	m := b.Map()
	if len(m) != 2 || m["index.html"] != "<h1>Home</h1>" {
		t.Errorf("Map = %v", m)
	}
}

func TestCleanBody(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  plain  ", "plain"},
		{"```js\na();\n\nb();\n```", "a();\n\nb();"},
		{"```\n```", ""},
		{"```", ""},
		{"```c++\nint x;\n```", "int x;"},
		{"not ```fenced```", "not ```fenced```"},
	}
	for _, tt := range tests {
		if got := CleanBody(tt.in); got != tt.want {
			t.Errorf("CleanBody(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
