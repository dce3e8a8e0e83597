package types

import "sort"

// ComputeLineColumn computes line and column numbers from a byte offset in content.
// Lines and columns are 1-indexed (first line is 1, first column is 1).
func ComputeLineColumn(content []byte, byteOffset int) (line, column int) {
	return NewLineIndex(content).LineColumn(byteOffset)
}

// LineIndex maps byte offsets to line/column positions. Building it costs
// one pass over the content; every lookup after that is a binary search,
// which matters when a blob yields many matches.
type LineIndex struct {
	newlines []int // offsets of '\n' bytes, ascending
	size     int
}

// NewLineIndex indexes the newlines of content.
func NewLineIndex(content []byte) *LineIndex {
	idx := &LineIndex{size: len(content)}
	for i, b := range content {
		if b == '\n' {
			idx.newlines = append(idx.newlines, i)
		}
	}
	return idx
}

// LineColumn returns the 1-based line and column of byteOffset.
// Offsets past the end are clamped to the end of the content.
func (idx *LineIndex) LineColumn(byteOffset int) (line, column int) {
	if byteOffset > idx.size {
		byteOffset = idx.size
	}
	if byteOffset < 0 {
		byteOffset = 0
	}
	// number of newlines strictly before byteOffset
	n := sort.SearchInts(idx.newlines, byteOffset)
	lineStart := 0
	if n > 0 {
		lineStart = idx.newlines[n-1] + 1
	}
	return n + 1, byteOffset - lineStart + 1
}

// Point returns the SourcePoint of byteOffset.
func (idx *LineIndex) Point(byteOffset int) SourcePoint {
	line, col := idx.LineColumn(byteOffset)
	return SourcePoint{Line: line, Column: col}
}

// Location builds a Location for the byte range [start, end).
func (idx *LineIndex) Location(start, end int) Location {
	return Location{
		Offset: Span(start, end),
		Source: SourceSpan{Start: idx.Point(start), End: idx.Point(end)},
	}
}
