package project

import (
	"bytes"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MissingReferences returns the local asset references found in the HTML
// files of snap that do not resolve to a snapshot member. References are
// resolved relative to the referencing file; a leading "/" means the
// project root. External URLs, fragments and data/mailto/tel/javascript
// links are ignored. The result is sorted and de-duplicated.
func MissingReferences(snap *Snapshot) []string {
	missing := make(map[string]struct{})
	for _, f := range snap.Files {
		if !isHTML(f.Name) {
			continue
		}
		doc, err := html.Parse(bytes.NewReader(f.Content))
		if err != nil {
			continue
		}
		for _, ref := range collectRefs(doc) {
			target, ok := resolveRef(f.Name, ref)
			if !ok {
				continue
			}
			if _, found := snap.Get(target); found {
				continue
			}
			if _, found := snap.Get(path.Join(target, "index.html")); found {
				continue
			}
			missing[target] = struct{}{}
		}
	}

	out := make([]string, 0, len(missing))
	for m := range missing {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// refAttrs maps elements to the attribute that points at another file.
var refAttrs = map[atom.Atom]string{
	atom.A:      "href",
	atom.Link:   "href",
	atom.Script: "src",
	atom.Img:    "src",
	atom.Source: "src",
	atom.Iframe: "src",
	atom.Audio:  "src",
	atom.Video:  "src",
	atom.Embed:  "src",
}

func collectRefs(n *html.Node) []string {
	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if key, ok := refAttrs[n.DataAtom]; ok {
				for _, a := range n.Attr {
					if a.Namespace == "" && a.Key == key {
						refs = append(refs, strings.TrimSpace(a.Val))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return refs
}

// resolveRef turns ref, found in file from, into a snapshot member name.
// ok is false for references that do not point at a local file.
func resolveRef(from, ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p := u.Path
	if p == "" {
		return "", false
	}

	var target string
	if strings.HasPrefix(p, "/") {
		target = path.Clean(strings.TrimPrefix(p, "/"))
	} else {
		target = path.Join(path.Dir(from), p)
	}
	if strings.HasSuffix(p, "/") || target == "." {
		target = path.Join(target, "index.html")
	}
	return target, true
}
