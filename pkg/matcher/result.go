package matcher

import (
	"time"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// RuleStatus represents how a rule took part in a scan
type RuleStatus int

const (
	// RuleCompleted indicates the rule ran to the end of the blob, or its
	// single-shot matcher retired before the scan ended
	RuleCompleted RuleStatus = iota
	// RuleSkipped indicates the prefilter ruled the rule out
	RuleSkipped
	// RuleStopped indicates the match limit ended the scan while the rule
	// could still have matched
	RuleStopped
)

// String returns the string representation of RuleStatus
func (rs RuleStatus) String() string {
	switch rs {
	case RuleCompleted:
		return "completed"
	case RuleSkipped:
		return "skipped"
	case RuleStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RuleStat contains statistics about a single rule
type RuleStat struct {
	RuleID  string     // Rule identifier
	Status  RuleStatus // Execution status
	Matches int        // Number of matches kept after deduplication
}

// ResultSummary provides aggregate statistics for a scan
type ResultSummary struct {
	TotalRules     int           // Rules configured on the matcher
	CompletedRules int           // Rules that finished before the scan ended
	SkippedRules   int           // Rules removed by the prefilter
	Matches        int           // Matches returned
	Truncated      bool          // MaxMatchesPerBlob was reached
	Duration       time.Duration // Wall time of the scan
}

// MatchResult contains matches and execution statistics
type MatchResult struct {
	Matches   []*types.Match      // Matches in discovery order
	RuleStats map[string]RuleStat // Statistics for each rule (keyed by RuleID)
	Summary   ResultSummary       // Aggregate statistics
}
