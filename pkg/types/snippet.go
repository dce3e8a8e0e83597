package types

// Snippet contains context around a match.
type Snippet struct {
	Before   []byte // lines before the enclosing region
	Matching []byte // identifier + content + terminator
	After    []byte // lines after the enclosing region
}
