package store

import (
	"sync"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// blobRecord stores blob metadata.
type blobRecord struct {
	id   types.BlobID
	size int64
}

// MemoryStore implements Store using in-memory data structures.
// Results are kept in insertion order and lost on Close.
type MemoryStore struct {
	mu           sync.RWMutex
	blobs        map[types.BlobID]blobRecord
	rules        map[string]*types.Rule
	ruleOrder    []string
	matches      []*types.Match
	matchIDs     map[string]struct{} // keyed by structural ID
	findings     map[string]*types.Finding
	findingOrder []string
	provenance   map[types.BlobID][]types.Provenance
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[types.BlobID]blobRecord),
		rules:      make(map[string]*types.Rule),
		matchIDs:   make(map[string]struct{}),
		findings:   make(map[string]*types.Finding),
		provenance: make(map[types.BlobID][]types.Provenance),
	}
}

// AddBlob stores a blob record.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; exists {
		return nil
	}
	m.blobs[id] = blobRecord{id: id, size: size}
	return nil
}

// AddRule stores a rule. The first rule stored under an ID wins.
func (m *MemoryStore) AddRule(r *types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[r.ID]; exists {
		return nil
	}
	m.rules[r.ID] = r
	m.ruleOrder = append(m.ruleOrder, r.ID)
	return nil
}

// AddMatch stores a match record. Matches with a known structural ID are ignored.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if match.StructuralID != "" {
		if _, exists := m.matchIDs[match.StructuralID]; exists {
			return nil
		}
		m.matchIDs[match.StructuralID] = struct{}{}
	}
	m.matches = append(m.matches, match)
	return nil
}

// AddFinding stores a finding (deduplicated).
func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findings[f.ID]; exists {
		return nil
	}
	m.findings[f.ID] = f
	m.findingOrder = append(m.findingOrder, f.ID)
	return nil
}

// AddProvenance associates provenance with a blob.
func (m *MemoryStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	key, err := provenanceKey(prov)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.provenance[blobID] {
		if existing, _ := provenanceKey(p); existing == key {
			return nil
		}
	}
	m.provenance[blobID] = append(m.provenance[blobID], prov)
	return nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	return result, nil
}

// GetAllMatches retrieves all matches in insertion order.
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Match, len(m.matches))
	copy(result, m.matches)
	return result, nil
}

// GetFindings retrieves all findings in insertion order.
func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Finding, 0, len(m.findingOrder))
	for _, id := range m.findingOrder {
		result = append(result, m.findings[id])
	}
	return result, nil
}

// GetRules retrieves all stored rules in insertion order.
func (m *MemoryStore) GetRules() ([]*types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Rule, 0, len(m.ruleOrder))
	for _, id := range m.ruleOrder {
		result = append(result, m.rules[id])
	}
	return result, nil
}

// GetProvenance retrieves every provenance recorded for a blob.
func (m *MemoryStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[blobID]
	result := make([]types.Provenance, len(provs))
	copy(result, provs)
	return result, nil
}

// FindingExists checks if a finding with this ID exists.
func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.findings[id]
	return exists, nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id]
	return exists, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
