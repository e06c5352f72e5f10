package chunker

import (
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// blockBound is a byte offset at which a markdown block begins.
type blockBound struct {
	offset  int
	heading bool
}

// blockBoundaries parses source as markdown and returns the offsets at
// which headings and paragraphs begin, sorted ascending. Offsets are
// rounded down to the start of their line so heading markers stay with
// their text when a chunk is cut at the boundary.
func blockBoundaries(source []byte) []blockBound {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	seen := make(map[int]bool)
	var bounds []blockBound

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph:
			lines := n.Lines()
			if lines == nil || lines.Len() == 0 {
				return ast.WalkContinue, nil
			}
			offset := lineStart(source, lines.At(0).Start)
			if offset > 0 && !seen[offset] {
				seen[offset] = true
				bounds = append(bounds, blockBound{
					offset:  offset,
					heading: n.Kind() == ast.KindHeading,
				})
			}
		}
		return ast.WalkContinue, nil
	})

	sort.Slice(bounds, func(i, j int) bool { return bounds[i].offset < bounds[j].offset })
	return bounds
}

// lineStart walks back from offset to the first character of its line.
func lineStart(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}
