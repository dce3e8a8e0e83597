package store

import (
	"fmt"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// Record persists one scanned blob: the blob row, its provenance, every
// match, and a finding per distinct (rule, content) pair. It returns the
// number of findings that were new to the store.
func Record(s Store, blobID types.BlobID, size int64, prov types.Provenance, matches []*types.Match) (int, error) {
	if err := s.AddBlob(blobID, size); err != nil {
		return 0, err
	}
	if prov != nil {
		if err := s.AddProvenance(blobID, prov); err != nil {
			return 0, err
		}
	}

	newFindings := 0
	for _, m := range matches {
		if err := s.AddMatch(m); err != nil {
			return newFindings, fmt.Errorf("recording match %s: %w", m.StructuralID, err)
		}
		if m.FindingID == "" {
			continue
		}

		exists, err := s.FindingExists(m.FindingID)
		if err != nil {
			return newFindings, err
		}
		if exists {
			continue
		}
		f := &types.Finding{ID: m.FindingID, RuleID: m.RuleID, Groups: m.Groups}
		if err := s.AddFinding(f); err != nil {
			return newFindings, err
		}
		newFindings++
	}
	return newFindings, nil
}

// RecordRules stores every rule in rules.
func RecordRules(s Store, rules []*types.Rule) error {
	for _, r := range rules {
		if err := s.AddRule(r); err != nil {
			return fmt.Errorf("recording rule %s: %w", r.ID, err)
		}
	}
	return nil
}

// Findings returns the stored findings with their matches attached,
// ordered as GetFindings returns them.
func Findings(s Store) ([]*types.Finding, error) {
	findings, err := s.GetFindings()
	if err != nil {
		return nil, err
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.Finding, len(findings))
	for i, f := range findings {
		c := *f
		c.Matches = nil
		findings[i] = &c
		byID[c.ID] = &c
	}
	for _, m := range matches {
		if f, ok := byID[m.FindingID]; ok {
			f.Matches = append(f.Matches, m)
		}
	}
	return findings, nil
}
