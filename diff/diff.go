// Package diff turns a raw unified diff into per-file sections and
// applies path-pattern and size filters to them.
package diff

import (
	"fmt"
	"strings"
)

// ChangedFile is one file's section of a pull request diff.
type ChangedFile struct {
	Path string
	// ChangedLineCount is the number of added plus removed lines.
	ChangedLineCount int
	// Content is the file's diff text, headers included. When
	// Truncated is set it holds the truncation marker instead.
	Content   string
	Truncated bool
}

// Parse splits a raw unified diff into per-file sections. Files appear
// in the order the diff lists them.
func Parse(raw string) []ChangedFile {
	var files []ChangedFile
	var current *ChangedFile
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Content = body.String()
			files = append(files, *current)
		}
		body.Reset()
	}

	for _, line := range strings.SplitAfter(raw, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			current = &ChangedFile{Path: pathFromHeader(line)}
		}
		if current == nil {
			continue
		}
		body.WriteString(line)

		if isChangeLine(line) {
			current.ChangedLineCount++
		}
	}
	flush()

	return files
}

// pathFromHeader extracts the destination path from a
// "diff --git a/path b/path" line.
func pathFromHeader(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 4 {
		return ""
	}
	path := fields[len(fields)-1]
	return strings.TrimPrefix(path, "b/")
}

// isChangeLine reports whether a diff line is an addition or removal,
// excluding the +++/--- file headers.
func isChangeLine(line string) bool {
	if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return false
	}
	return strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")
}

// FilterSpec selects and limits changed files.
type FilterSpec struct {
	// Patterns are glob-or-prefix path patterns, OR-ed together. An
	// empty set matches every file.
	Patterns []string
	// MaxDiffSize elides the body of files with more changed lines
	// than this. 0 means no limit.
	MaxDiffSize int
}

// Filter returns the files matching spec, in input order. Oversized
// files stay in the result with their content replaced by a truncation
// marker, so file counts and totals remain accurate. An empty result
// is a valid outcome, not an error.
func Filter(files []ChangedFile, spec FilterSpec) []ChangedFile {
	var out []ChangedFile
	for _, f := range files {
		if !matchAny(spec.Patterns, f.Path) {
			continue
		}
		if spec.MaxDiffSize > 0 && f.ChangedLineCount > spec.MaxDiffSize {
			f.Content = TruncationMarker(f.ChangedLineCount, spec.MaxDiffSize)
			f.Truncated = true
		}
		out = append(out, f)
	}
	return out
}

// TruncationMarker is the body shown in place of an elided diff.
func TruncationMarker(changedLines, maxDiffSize int) string {
	return fmt.Sprintf("[diff omitted: %d changed lines exceed the limit of %d]\n", changedLines, maxDiffSize)
}

// matchAny reports whether path matches at least one pattern. No
// patterns means match-all.
func matchAny(patterns []string, path string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if Match(p, path) {
			return true
		}
	}
	return false
}

// Match tests a repository-relative path against one pattern. A
// pattern ending in "/" matches every path under that directory,
// recursively. Otherwise the pattern must match the whole path, with
// "*" matching any run of characters within a single path segment.
// The patterns describe repository paths, not local files, so this is
// a small matcher of its own rather than a filesystem glob.
func Match(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	return globMatch(pattern, path)
}

// globMatch matches pattern against s where "*" cannot cross a "/".
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		if pattern[0] == '*' {
			rest := pattern[1:]
			for i := 0; ; i++ {
				if globMatch(rest, s[i:]) {
					return true
				}
				if i >= len(s) || s[i] == '/' {
					return false
				}
			}
		}
		if len(s) == 0 || pattern[0] != s[0] {
			return false
		}
		pattern = pattern[1:]
		s = s[1:]
	}
	return len(s) == 0
}
