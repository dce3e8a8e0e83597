package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/betwixt/pkg/types"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// openDB opens path and makes sure the schema exists.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// AddBlob stores a blob record.
func (s *SQLiteStore) AddBlob(id types.BlobID, size int64) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO blobs (id, size) VALUES (?, ?)", id.Hex(), size)
	if err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddRule stores a rule. The first rule stored under an ID wins.
func (s *SQLiteStore) AddRule(r *types.Rule) error {
	identifiers, err := json.Marshal(r.Identifiers)
	if err != nil {
		return fmt.Errorf("marshaling identifiers: %w", err)
	}
	terminators, err := json.Marshal(r.Terminators)
	if err != nil {
		return fmt.Errorf("marshaling terminators: %w", err)
	}

	structuralID := r.StructuralID
	if structuralID == "" {
		structuralID = r.ComputeStructuralID()
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO rules (id, name, structural_id, identifiers_json, terminators_json, single_shot, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Name,
		structuralID,
		string(identifiers),
		string(terminators),
		r.SingleShot,
		r.Description,
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// AddMatch stores a match record. Matches with a known structural ID are ignored.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	groupsJSON, err := json.Marshal(m.Groups)
	if err != nil {
		return fmt.Errorf("marshaling groups: %w", err)
	}

	loc, enc := m.Location, m.Enclosing
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.BlobID.Hex(),
		m.RuleID,
		m.RuleName,
		m.StructuralID,
		m.FindingID,
		m.Content,
		loc.Offset.Start,
		loc.Offset.End,
		loc.Source.Start.Line,
		loc.Source.Start.Column,
		loc.Source.End.Line,
		loc.Source.End.Column,
		enc.Offset.Start,
		enc.Offset.End,
		enc.Source.Start.Line,
		enc.Source.Start.Column,
		enc.Source.End.Line,
		enc.Source.End.Column,
		m.Identifier.Text,
		m.Identifier.Anchor.String(),
		m.Terminator.Text,
		m.Terminator.Anchor.String(),
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
		string(groupsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// AddFinding stores a finding (deduplicated).
func (s *SQLiteStore) AddFinding(f *types.Finding) error {
	groupsJSON, err := json.Marshal(f.Groups)
	if err != nil {
		return fmt.Errorf("marshaling groups: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO findings (structural_id, rule_id, groups_json)
		VALUES (?, ?, ?)
	`,
		f.ID,
		f.RuleID,
		string(groupsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// AddProvenance associates provenance with a blob.
func (s *SQLiteStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	row, err := toProvenanceRow(prov)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO provenance
		(blob_id, type, path, repo_path, commit_hash, author_name, author_email, author_time, message, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		blobID.Hex(),
		row.kind,
		row.path,
		row.repoPath,
		row.commitHash,
		row.authorName,
		row.authorEmail,
		row.authorTime,
		row.message,
		row.payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

// matchColumns lists the matches table columns in the order scanMatch reads them.
const matchColumns = `blob_id, rule_id, rule_name, structural_id, finding_id, content,
	offset_start, offset_end, start_line, start_column, end_line, end_column,
	enclosing_start, enclosing_end, enclosing_start_line, enclosing_start_column,
	enclosing_end_line, enclosing_end_column,
	identifier_text, identifier_anchor, terminator_text, terminator_anchor,
	snippet_before, snippet_matching, snippet_after, groups_json`

// GetMatches retrieves matches for a blob.
func (s *SQLiteStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches("SELECT "+matchColumns+" FROM matches WHERE blob_id = ? ORDER BY id", blobID.Hex())
}

// GetAllMatches retrieves all matches in insertion order.
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches("SELECT " + matchColumns + " FROM matches ORDER BY id")
}

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*types.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

func scanMatch(rows *sql.Rows) (*types.Match, error) {
	var m types.Match
	var blobIDHex, identAnchor, termAnchor, groupsJSON string
	var ruleName, findingID sql.NullString
	loc, enc := &m.Location, &m.Enclosing

	err := rows.Scan(
		&blobIDHex,
		&m.RuleID,
		&ruleName,
		&m.StructuralID,
		&findingID,
		&m.Content,
		&loc.Offset.Start,
		&loc.Offset.End,
		&loc.Source.Start.Line,
		&loc.Source.Start.Column,
		&loc.Source.End.Line,
		&loc.Source.End.Column,
		&enc.Offset.Start,
		&enc.Offset.End,
		&enc.Source.Start.Line,
		&enc.Source.Start.Column,
		&enc.Source.End.Line,
		&enc.Source.End.Column,
		&m.Identifier.Text,
		&identAnchor,
		&m.Terminator.Text,
		&termAnchor,
		&m.Snippet.Before,
		&m.Snippet.Matching,
		&m.Snippet.After,
		&groupsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning match: %w", err)
	}
	m.RuleName = ruleName.String
	m.FindingID = findingID.String

	if m.BlobID, err = types.ParseBlobID(blobIDHex); err != nil {
		return nil, fmt.Errorf("parsing blob ID: %w", err)
	}
	if m.Identifier.Anchor, err = types.ParseAnchor(identAnchor); err != nil {
		return nil, fmt.Errorf("parsing identifier anchor: %w", err)
	}
	if m.Terminator.Anchor, err = types.ParseAnchor(termAnchor); err != nil {
		return nil, fmt.Errorf("parsing terminator anchor: %w", err)
	}
	if err := json.Unmarshal([]byte(groupsJSON), &m.Groups); err != nil {
		return nil, fmt.Errorf("unmarshaling groups: %w", err)
	}
	return &m, nil
}

// GetFindings retrieves all findings in insertion order.
func (s *SQLiteStore) GetFindings() ([]*types.Finding, error) {
	rows, err := s.db.Query(`
		SELECT structural_id, rule_id, groups_json
		FROM findings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	findings := []*types.Finding{}
	for rows.Next() {
		var f types.Finding
		var groupsJSON string

		if err := rows.Scan(&f.ID, &f.RuleID, &groupsJSON); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		if err := json.Unmarshal([]byte(groupsJSON), &f.Groups); err != nil {
			return nil, fmt.Errorf("unmarshaling groups: %w", err)
		}
		findings = append(findings, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	return findings, nil
}

// GetRules retrieves all stored rules in insertion order.
func (s *SQLiteStore) GetRules() ([]*types.Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, structural_id, identifiers_json, terminators_json, single_shot, description
		FROM rules
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	rules := []*types.Rule{}
	for rows.Next() {
		var r types.Rule
		var identifiers, terminators string
		var description sql.NullString

		err := rows.Scan(&r.ID, &r.Name, &r.StructuralID, &identifiers, &terminators, &r.SingleShot, &description)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		r.Description = description.String
		if err := json.Unmarshal([]byte(identifiers), &r.Identifiers); err != nil {
			return nil, fmt.Errorf("unmarshaling identifiers of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(terminators), &r.Terminators); err != nil {
			return nil, fmt.Errorf("unmarshaling terminators of %s: %w", r.ID, err)
		}
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// GetProvenance retrieves every provenance recorded for a blob.
func (s *SQLiteStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	rows, err := s.db.Query(`
		SELECT type, path, repo_path, commit_hash, author_name, author_email, author_time, message, payload_json
		FROM provenance
		WHERE blob_id = ?
		ORDER BY id
	`, blobID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	provs := []types.Provenance{}
	for rows.Next() {
		var row provenanceRow
		var authorName, authorEmail, authorTime, message sql.NullString

		err := rows.Scan(&row.kind, &row.path, &row.repoPath, &row.commitHash,
			&authorName, &authorEmail, &authorTime, &message, &row.payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		row.authorName = authorName.String
		row.authorEmail = authorEmail.String
		row.authorTime = authorTime.String
		row.message = message.String

		prov, err := row.provenance()
		if err != nil {
			return nil, err
		}
		provs = append(provs, prov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return provs, nil
}

// FindingExists checks if a finding with this ID exists.
func (s *SQLiteStore) FindingExists(id string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM findings WHERE structural_id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking finding existence: %w", err)
	}
	return count > 0, nil
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLiteStore) BlobExists(id types.BlobID) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM blobs WHERE id = ?", id.Hex()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking blob existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
