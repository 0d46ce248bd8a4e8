// Package markdown finds the parts of Markdown files whose links must not be
// rewritten. Links inside fenced or indented code blocks are sample code,
// so they are left exactly as written.
package markdown

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extensions are the file extensions treated as Markdown.
var Extensions = []string{".md", ".mdx", ".markdown"}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CodeLines returns the 1-based numbers of the lines inside code blocks.
func CodeLines(content []byte) map[int]bool {
	lines := map[int]bool{}
	if len(content) == 0 {
		return lines
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(content))
	index := buildLineIndex(content)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindCodeBlock && n.Kind() != ast.KindFencedCodeBlock {
			return ast.WalkContinue, nil
		}

		segs := n.Lines()
		for i := 0; i < segs.Len(); i++ {
			lines[lineOf(index, segs.At(i).Start)] = true
		}
		if fenced, ok := n.(*ast.FencedCodeBlock); ok && fenced.Info != nil {
			lines[lineOf(index, fenced.Info.Segment.Start)] = true
		}
		return ast.WalkSkipChildren, nil
	})

	return lines
}

// SkipLines returns the code-block lines of path when it is a Markdown
// file, and nil otherwise. It matches fixer.LineSkipper.
func SkipLines(path string, content []byte) map[int]bool {
	if !IsMarkdown(path) {
		return nil
	}
	return CodeLines(content)
}

// buildLineIndex returns the byte offset at which each line starts.
func buildLineIndex(content []byte) []int {
	index := make([]int, 1, 64)
	for i, b := range content {
		if b == '\n' {
			index = append(index, i+1)
		}
	}
	return index
}

// lineOf converts a byte offset into a 1-based line number.
func lineOf(index []int, offset int) int {
	return sort.Search(len(index), func(i int) bool { return index[i] > offset })
}
