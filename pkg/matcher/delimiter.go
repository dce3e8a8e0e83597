package matcher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/praetorian-inc/betwixt/pkg/prefilter"
	"github.com/praetorian-inc/betwixt/pkg/rule"
	"github.com/praetorian-inc/betwixt/pkg/scan"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// DelimiterMatcher implements Matcher on top of the single-pass scan engine.
// Every rule that survives the prefilter becomes one scan.Matcher, and all
// of them share one pass over the blob.
//
// DelimiterMatcher is immutable after construction and safe for concurrent
// use; deduplication state is created per call.
type DelimiterMatcher struct {
	rules        []*types.Rule
	prefilter    *prefilter.Prefilter // nil when disabled
	contextLines int
	maxMatches   int
	dedupe       DedupeMode
	structural   map[*types.Rule]string
}

// NewDelimiter creates a delimiter matcher. Rules are checked for structural
// validity; their examples are not run.
func NewDelimiter(cfg Config) (*DelimiterMatcher, error) {
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("no rules provided")
	}
	for _, r := range cfg.Rules {
		if err := rule.ValidateRuleStructure(r); err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
	}

	m := &DelimiterMatcher{
		rules:        cfg.Rules,
		contextLines: cfg.ContextLines,
		maxMatches:   cfg.MaxMatchesPerBlob,
		dedupe:       cfg.Dedupe,
		structural:   make(map[*types.Rule]string, len(cfg.Rules)),
	}
	for _, r := range cfg.Rules {
		id := r.StructuralID
		if id == "" {
			id = r.ComputeStructuralID()
		}
		m.structural[r] = id
	}
	if !cfg.DisablePrefilter {
		m.prefilter = prefilter.New(cfg.Rules)
	}
	return m, nil
}

// Rules returns the rules the matcher was built with.
func (m *DelimiterMatcher) Rules() []*types.Rule {
	return m.rules
}

// Match scans content against all loaded rules.
func (m *DelimiterMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *DelimiterMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	result, err := m.MatchDetailed(content, blobID)
	if err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// MatchDetailed scans content and reports per-rule statistics.
func (m *DelimiterMatcher) MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error) {
	started := time.Now()

	active := m.rules
	if m.prefilter != nil {
		active = m.prefilter.Filter(content)
	}

	result := &MatchResult{
		RuleStats: make(map[string]RuleStat, len(m.rules)),
		Summary:   ResultSummary{TotalRules: len(m.rules)},
	}
	for _, r := range m.rules {
		result.RuleStats[r.ID] = RuleStat{RuleID: r.ID, Status: RuleSkipped}
	}

	b := &matchBuilder{
		content:      content,
		blobID:       blobID,
		contextLines: m.contextLines,
		dedup:        NewDeduplicatorMode(m.dedupe),
	}

	// rules whose matcher retired before the input ended
	finished := make(map[string]bool)

	matchers := make([]scan.Matcher, len(active))
	for i, r := range active {
		structuralID := m.structural[r]
		matchers[i] = rule.Matcher(r, func(h scan.Hit) error {
			match := b.build(r, structuralID, h)
			if !b.dedup.Observe(match) {
				return nil
			}
			result.Matches = append(result.Matches, match)

			stat := result.RuleStats[r.ID]
			stat.Matches++
			result.RuleStats[r.ID] = stat
			if r.SingleShot {
				// retires right after this hit, even if the limit ends the scan here
				finished[r.ID] = true
			}

			if m.maxMatches > 0 && len(result.Matches) >= m.maxMatches {
				return errLimit
			}
			return nil
		})
		matchers[i].OnRetire = func() { finished[r.ID] = true }
	}

	err := scan.Scan(string(content), matchers)
	switch {
	case errors.Is(err, errLimit):
		result.Summary.Truncated = true
	case err != nil:
		return nil, fmt.Errorf("scanning blob %s: %w", blobID.Short(), err)
	}

	for _, r := range active {
		stat := result.RuleStats[r.ID]
		stat.Status = RuleCompleted
		if result.Summary.Truncated && !finished[r.ID] {
			stat.Status = RuleStopped
		}
		result.RuleStats[r.ID] = stat
	}
	for _, stat := range result.RuleStats {
		switch stat.Status {
		case RuleCompleted:
			result.Summary.CompletedRules++
		case RuleSkipped:
			result.Summary.SkippedRules++
		}
	}

	result.Summary.Matches = len(result.Matches)
	result.Summary.Duration = time.Since(started)
	return result, nil
}

// Close releases resources.
func (m *DelimiterMatcher) Close() error {
	return nil
}

// errLimit ends a scan once MaxMatchesPerBlob matches are kept.
var errLimit = errors.New("match limit reached")

// matchBuilder turns scan hits into match records for one blob.
type matchBuilder struct {
	content      []byte
	blobID       types.BlobID
	contextLines int
	dedup        *Deduplicator
	lines        *types.LineIndex // built on first hit
}

func (b *matchBuilder) build(r *types.Rule, structuralID string, h scan.Hit) *types.Match {
	if b.lines == nil {
		b.lines = types.NewLineIndex(b.content)
	}

	start, end := int(h.Span.Start), int(h.Span.End)
	encStart, encEnd := int(h.Enclosing.Start), int(h.Enclosing.End)

	// the hit's strings share the scanned copy of the blob
	content := strings.Clone(h.Content)
	groups := [][]byte{[]byte(content)}

	match := &types.Match{
		BlobID:     b.blobID,
		RuleID:     r.ID,
		RuleName:   r.Name,
		Content:    content,
		Location:   b.lines.Location(start, end),
		Enclosing:  b.lines.Location(encStart, encEnd),
		Identifier: h.Identifier,
		Terminator: h.Terminator,
		Groups:     groups,
		Snippet:    Snippet(b.content, encStart, encEnd, b.contextLines),
	}

	// Compute structural ID for deduplication
	match.StructuralID = match.ComputeStructuralID(structuralID)

	// Compute finding ID for content-based grouping
	match.FindingID = types.ComputeFindingID(structuralID, groups)

	return match
}
