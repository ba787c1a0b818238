// Package scenario identifies the test grouping a log record belongs to.
//
// A scenario is a directory under the test root, for example
// tests/login/test_form.py belongs to "login" and
// tests/login/remember_me/test_cookie.py belongs to "login/remember_me".
// At most two directory levels are used.
//
// The current scenario of a running test travels in its context.Context, see
// SetScenario and Bind.
package scenario

import (
	"path"
	"strings"
)

// Key is a normalized scenario identifier such as "group_a" or
// "group_a/submodule_b".
type Key string

// Global is the scenario used when none can be resolved. Its sinks receive
// every record.
const Global Key = "Global"

// DefaultMarker is the path component that roots the test tree.
const DefaultMarker = "tests"

// maxDepth is the number of directory levels below the marker that form a key.
const maxDepth = 2

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }

// IsGlobal reports whether k is empty or the Global key.
func (k Key) IsGlobal() bool { return k == "" || k == Global }

// Resolver derives scenario keys from test locations.
type Resolver struct {
	marker string
}

// NewResolver returns a Resolver rooted at marker. An empty marker means
// DefaultMarker.
func NewResolver(marker string) *Resolver {
	marker = strings.Trim(strings.TrimSpace(marker), `/\`)
	if marker == "" {
		marker = DefaultMarker
	}
	return &Resolver{marker: marker}
}

// Marker returns the root marker.
func (r *Resolver) Marker() string { return r.marker }

// ResolveFromPath extracts the scenario from a test location such as
// "tests/group_a/sub_b/test_x.py::test_y" or `C:\repo\tests\group_a\x_test.go`.
//
// The "::" node suffix is dropped and both separator styles are accepted. The
// first occurrence of the marker wins. Up to two directory components after
// the marker form the key; descent stops at the first file-like component.
// It returns false when the marker is missing or is followed only by a file.
func (r *Resolver) ResolveFromPath(testPath string) (Key, bool) {
	if i := strings.Index(testPath, "::"); i >= 0 {
		testPath = testPath[:i]
	}
	testPath = strings.ReplaceAll(testPath, `\`, "/")

	parts := strings.Split(testPath, "/")
	start := -1
	for i, p := range parts {
		if p == r.marker {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}

	dirs := make([]string, 0, maxDepth)
	for _, p := range parts[start:] {
		if p == "" || p == "." {
			continue
		}
		if isFileLike(p) || len(dirs) == maxDepth {
			break
		}
		dirs = append(dirs, p)
	}
	if len(dirs) == 0 {
		return "", false
	}
	return Key(strings.Join(dirs, "/")), true
}

// Resolve is ResolveFromPath falling back to Global.
func (r *Resolver) Resolve(testPath string) Key {
	if k, ok := r.ResolveFromPath(testPath); ok {
		return k
	}
	return Global
}

// ResolveFromPath resolves with the default marker.
func ResolveFromPath(testPath string) (Key, bool) {
	return defaultResolver.ResolveFromPath(testPath)
}

var defaultResolver = NewResolver(DefaultMarker)

func isFileLike(component string) bool {
	ext := path.Ext(component)
	return ext != "" && ext != component
}

// SafeName turns a key into a single path component: separators and any
// character outside [A-Za-z0-9._-] become '_'.
func SafeName(k Key) string {
	if k == "" {
		return string(Global)
	}
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range string(k) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "." || name == ".." {
		return strings.Repeat("_", len(name))
	}
	return name
}
