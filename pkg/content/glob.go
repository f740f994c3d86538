package content

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// hasMeta reports whether pattern contains glob metacharacters.
func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[\`)
}

// glob expands pattern like filepath.Glob and also accepts "**" path
// segments, which match any number of directories. Results are sorted.
func glob(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		matches, err := filepath.Glob(pattern)
		sort.Strings(matches)
		return matches, err
	}

	slashed := filepath.ToSlash(pattern)
	segments := strings.Split(slashed, "/")
	root := ""
	for len(segments) > 0 && !hasMeta(segments[0]) {
		root = path.Join(root, segments[0])
		if segments[0] == "" {
			root = "/"
		}
		segments = segments[1:]
	}
	if root == "" {
		root = "."
	}
	for _, seg := range segments {
		if _, err := path.Match(seg, ""); err != nil {
			return nil, err
		}
	}

	var matches []string
	err := filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.FromSlash(root), p)
		if err != nil {
			return nil
		}
		if matchSegments(segments, strings.Split(filepath.ToSlash(rel), "/")) {
			matches = append(matches, p)
		}
		return nil
	})
	sort.Strings(matches)
	return matches, err
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(name); i++ {
			if matchSegments(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if ok, _ := path.Match(pattern[0], name[0]); !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}
