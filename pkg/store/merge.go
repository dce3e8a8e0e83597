package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	BlobsMerged      int
	RulesMerged      int
	MatchesMerged    int
	FindingsMerged   int
	ProvenanceMerged int
	SourcesProcessed int
}

// mergeTable describes the columns copied for one table. Rows are
// deduplicated by the table's unique constraints via INSERT OR IGNORE.
type mergeTable struct {
	name    string
	columns string
	count   func(*MergeStats) *int
}

var mergeTables = []mergeTable{
	{"blobs", "id, size", func(s *MergeStats) *int { return &s.BlobsMerged }},
	{"rules", "id, name, structural_id, identifiers_json, terminators_json, single_shot, description",
		func(s *MergeStats) *int { return &s.RulesMerged }},
	{"matches", matchColumns, func(s *MergeStats) *int { return &s.MatchesMerged }},
	{"findings", "structural_id, rule_id, groups_json", func(s *MergeStats) *int { return &s.FindingsMerged }},
	{"provenance", "blob_id, type, path, repo_path, commit_hash, author_name, author_email, author_time, message, payload_json",
		func(s *MergeStats) *int { return &s.ProvenanceMerged }},
}

// Merge combines multiple result databases into one.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := openDB(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer destDB.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		if err := mergeFrom(destDB, sourcePath, stats); err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.SourcesProcessed++
	}
	return stats, nil
}

// mergeFrom copies every table of one source database into destDB inside
// a single transaction.
func mergeFrom(destDB *sql.DB, sourcePath string, stats *MergeStats) error {
	sourceDB, err := sql.Open(driverName, sourcePath)
	if err != nil {
		return fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	version, err := schemaVersion(sourceDB)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version %d, expected %d", version, SchemaVersion)
	}

	tx, err := destDB.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var local MergeStats
	for _, table := range mergeTables {
		n, err := copyTable(tx, sourceDB, table)
		if err != nil {
			return fmt.Errorf("merging %s: %w", table.name, err)
		}
		*table.count(&local) = n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for _, table := range mergeTables {
		*table.count(stats) += *table.count(&local)
	}
	return nil
}

// copyTable inserts every row of table from sourceDB and returns the
// number of rows that were new to the destination.
func copyTable(tx *sql.Tx, sourceDB *sql.DB, table mergeTable) (int, error) {
	rows, err := sourceDB.Query("SELECT " + table.columns + " FROM " + table.name + " ORDER BY rowid")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO " + table.name + " (" + table.columns + ") VALUES (" + placeholders + ")")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
