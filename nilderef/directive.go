package nilderef

import (
	"go/ast"
	"go/token"
	"strings"
)

const directivePrefix = "nilderef:"

// isIgnoreDirective checks if a comment is an ignore directive.
// Supports "//nilderef:ignore", "// nilderef:ignore", and the block form
// "/*nilderef:ignore*/".
func isIgnoreDirective(text string) bool {
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, directivePrefix+"ignore")
}

// ignoreEntry tracks an ignore directive and whether it suppressed anything.
type ignoreEntry struct {
	pos  token.Pos
	used bool
}

// ignoreMap tracks the lines carrying ignore directives in one file.
type ignoreMap map[int]*ignoreEntry

// buildIgnoreMap scans a file's comments for ignore directives.
//
// A directive suppresses findings on its own line and on the next line:
//
//	//nilderef:ignore
//	_ = p.f            // suppressed
//
//	_ = p.f //nilderef:ignore  (same line, also suppressed)
func buildIgnoreMap(fset *token.FileSet, file *ast.File) ignoreMap {
	m := make(ignoreMap)
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			if isIgnoreDirective(c.Text) {
				line := fset.Position(c.Pos()).Line
				m[line] = &ignoreEntry{pos: c.Pos()}
			}
		}
	}
	return m
}

// shouldIgnore reports whether a finding on the given line is suppressed,
// marking the directive as used.
func (m ignoreMap) shouldIgnore(line int) bool {
	if m == nil {
		return false
	}
	for _, l := range []int{line, line - 1} {
		if entry, ok := m[l]; ok {
			entry.used = true
			return true
		}
	}
	return false
}

// unused returns the positions of directives that never suppressed a
// finding, in no particular order.
func (m ignoreMap) unused() []token.Pos {
	var out []token.Pos
	for _, entry := range m {
		if !entry.used {
			out = append(out, entry.pos)
		}
	}
	return out
}
