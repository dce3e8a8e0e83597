package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// provenanceRow is the flattened form of a provenance stored in one table row.
type provenanceRow struct {
	kind        string
	path        string
	repoPath    string
	commitHash  string
	authorName  string
	authorEmail string
	authorTime  string
	message     string
	payloadJSON string
}

func toProvenanceRow(prov types.Provenance) (provenanceRow, error) {
	switch p := prov.(type) {
	case types.FileProvenance:
		return provenanceRow{kind: p.Kind(), path: p.FilePath}, nil
	case types.GitProvenance:
		row := provenanceRow{kind: p.Kind(), path: p.BlobPath, repoPath: p.RepoPath}
		if c := p.Commit; c != nil {
			row.commitHash = c.CommitID
			row.authorName = c.AuthorName
			row.authorEmail = c.AuthorEmail
			row.message = c.Message
			if !c.AuthorTimestamp.IsZero() {
				row.authorTime = c.AuthorTimestamp.UTC().Format(time.RFC3339)
			}
		}
		return row, nil
	case types.ArchiveProvenance:
		return provenanceRow{kind: p.Kind(), path: p.MemberPath, repoPath: p.ArchivePath}, nil
	case types.ExtendedProvenance:
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return provenanceRow{}, fmt.Errorf("marshaling payload: %w", err)
		}
		return provenanceRow{kind: p.Kind(), path: p.Path(), payloadJSON: string(payload)}, nil
	default:
		return provenanceRow{}, fmt.Errorf("unknown provenance type: %T", prov)
	}
}

func (r provenanceRow) provenance() (types.Provenance, error) {
	switch r.kind {
	case "file":
		return types.FileProvenance{FilePath: r.path}, nil
	case "git":
		p := types.GitProvenance{RepoPath: r.repoPath, BlobPath: r.path}
		if r.commitHash != "" {
			p.Commit = &types.CommitMetadata{
				CommitID:    r.commitHash,
				AuthorName:  r.authorName,
				AuthorEmail: r.authorEmail,
				Message:     r.message,
			}
			if r.authorTime != "" {
				ts, err := time.Parse(time.RFC3339, r.authorTime)
				if err != nil {
					return nil, fmt.Errorf("parsing author time: %w", err)
				}
				p.Commit.AuthorTimestamp = ts
			}
		}
		return p, nil
	case "archive":
		return types.ArchiveProvenance{ArchivePath: r.repoPath, MemberPath: r.path}, nil
	case "extended":
		p := types.ExtendedProvenance{}
		if r.payloadJSON != "" {
			if err := json.Unmarshal([]byte(r.payloadJSON), &p.Payload); err != nil {
				return nil, fmt.Errorf("unmarshaling payload: %w", err)
			}
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provenance type %q", r.kind)
	}
}

// provenanceKey identifies a provenance the way the provenance table's
// unique constraint does.
func provenanceKey(prov types.Provenance) (string, error) {
	r, err := toProvenanceRow(prov)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{r.kind, r.path, r.repoPath, r.commitHash, r.payloadJSON}, "\x00"), nil
}
