// Package markdownx holds small reusable markdown helpers.
package markdownx

import (
	"fmt"
	"regexp"
	"strings"
)

var imageRefPattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

// RewriteImages replaces local image references with <img> tags whose src
// comes from resolve (typically an object-store upload). References that
// fail to resolve, and absolute URLs, are left untouched.
func RewriteImages(md string, resolve func(path string) (string, error)) string {
	return imageRefPattern.ReplaceAllStringFunc(md, func(ref string) string {
		m := imageRefPattern.FindStringSubmatch(ref)
		alt, path := m[1], m[2]
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			return ref
		}
		url, err := resolve(path)
		if err != nil {
			return ref
		}
		return fmt.Sprintf(`<img src="%s" alt="%s">`, url, alt)
	})
}

// ImagePaths lists the local image paths referenced in md, in order of
// appearance, without duplicates.
func ImagePaths(md string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range imageRefPattern.FindAllStringSubmatch(md, -1) {
		path := m[2]
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			continue
		}
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}
