package types

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// Span builds an OffsetSpan from int offsets.
func Span(start, end int) OffsetSpan {
	return OffsetSpan{Start: int64(start), End: int64(end)}
}

// Len returns End - Start.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// Of returns the text covered by the span, or "" if the span does not fit.
func (s OffsetSpan) Of(input string) string {
	if s.Start < 0 || s.End > int64(len(input)) || s.Start > s.End {
		return ""
	}
	return input[s.Start:s.End]
}

// SourcePoint is line:column position (1-based, column counted in bytes).
type SourcePoint struct {
	Line   int
	Column int
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint
	End   SourcePoint
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan
	Source SourceSpan
}
