package matcher

import (
	"bytes"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// Snippet builds the snippet for the enclosing region [start, end) of
// content: the region itself plus up to lines lines on either side.
//
// Before starts lines newlines above the line holding start, so it also
// carries the text between that line's start and start. After runs from
// end through the lines-th following newline; a newline right at end is
// the region's own line ending and is skipped. All slices are copies, so a
// stored snippet never pins the blob.
func Snippet(content []byte, start, end, lines int) types.Snippet {
	if start < 0 || end > len(content) || start > end {
		return types.Snippet{}
	}
	s := types.Snippet{Matching: bytes.Clone(content[start:end])}
	if lines > 0 {
		s.Before = cloneNonEmpty(linesBefore(content, start, lines))
		s.After = cloneNonEmpty(linesAfter(content, end, lines))
	}
	return s
}

func linesBefore(content []byte, start, lines int) []byte {
	from := start
	for n := 0; n <= lines; n++ {
		k := bytes.LastIndexByte(content[:from], '\n')
		if k < 0 {
			return content[:start]
		}
		from = k
	}
	return content[from+1 : start]
}

func linesAfter(content []byte, end, lines int) []byte {
	if end < len(content) && content[end] == '\n' {
		end++
	}
	to := end
	for n := 0; n < lines; n++ {
		k := bytes.IndexByte(content[to:], '\n')
		if k < 0 {
			return content[end:]
		}
		to += k + 1
	}
	return content[end:to]
}

func cloneNonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return bytes.Clone(b)
}
