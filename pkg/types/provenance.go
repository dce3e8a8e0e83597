package types

import "time"

// Provenance tracks where a blob was discovered.
type Provenance interface {
	Kind() string
	// Path returns displayable path (if applicable)
	Path() string
}

// FileProvenance for filesystem files.
type FileProvenance struct {
	FilePath string
}

// Kind returns "file".
func (f FileProvenance) Kind() string {
	return "file"
}

// Path returns the file path.
func (f FileProvenance) Path() string {
	return f.FilePath
}

// GitProvenance for blobs read from a git commit tree.
type GitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata // nil if not tracking commit info
	BlobPath string          // path within repo at commit
}

// Kind returns "git".
func (g GitProvenance) Kind() string {
	return "git"
}

// Path returns the blob path within the repository.
func (g GitProvenance) Path() string {
	return g.BlobPath
}

// CommitMetadata holds git commit information.
type CommitMetadata struct {
	CommitID           string
	AuthorName         string
	AuthorEmail        string
	AuthorTimestamp    time.Time
	CommitterName      string
	CommitterEmail     string
	CommitterTimestamp time.Time
	Message            string
}

// ArchiveProvenance for text extracted from a document or archive member.
type ArchiveProvenance struct {
	ArchivePath string // file the member was extracted from
	MemberPath  string // member within it, e.g. "word/document.xml"
}

// Kind returns "archive".
func (a ArchiveProvenance) Kind() string {
	return "archive"
}

// Path returns "archive:member".
func (a ArchiveProvenance) Path() string {
	return a.ArchivePath + ":" + a.MemberPath
}

// ExtendedProvenance for content handed in by a caller (serve requests, stdin).
type ExtendedProvenance struct {
	Payload map[string]interface{}
}

// Kind returns "extended".
func (e ExtendedProvenance) Kind() string {
	return "extended"
}

// Path returns the "source" payload entry when it is a string.
func (e ExtendedProvenance) Path() string {
	if s, ok := e.Payload["source"].(string); ok {
		return s
	}
	return ""
}

// DisplayPath renders a provenance for human output, e.g. "repo:path@abc1234".
func DisplayPath(p Provenance) string {
	switch v := p.(type) {
	case GitProvenance:
		out := v.RepoPath + ":" + v.BlobPath
		if v.Commit != nil && v.Commit.CommitID != "" {
			id := v.Commit.CommitID
			if len(id) > 7 {
				id = id[:7]
			}
			out += "@" + id
		}
		return out
	case nil:
		return ""
	default:
		return p.Path()
	}
}
