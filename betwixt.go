// Package betwixt extracts the text found between delimiters.
//
// A delimiter pair is an identifier that opens a region and a terminator
// that closes it. All pairs are matched in one forward pass over the input,
// so many independent extractions cost a single scan.
//
// # Basic Usage
//
// The convenience functions cover one-off extractions:
//
//	betwixt.SubstringsBetween("|First|Second|", "|", "|") // ["First" "Second"]
//
// A Scanner runs a set of rules (the builtin ones by default) and returns
// match records with locations and context:
//
//	scanner, err := betwixt.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.ScanString("<p>hi</p><!-- todo: fix -->")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, match := range matches {
//	    fmt.Printf("%s at line %d: %q\n", match.RuleName, match.Location.Source.Start.Line, match.Content)
//	}
package betwixt

import (
	"fmt"
	"os"
	"sync"

	"github.com/praetorian-inc/betwixt/pkg/matcher"
	"github.com/praetorian-inc/betwixt/pkg/rule"
	"github.com/praetorian-inc/betwixt/pkg/scan"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/betwixt" without subpackages.
type (
	// Match is one extracted region with its location and context.
	Match = types.Match

	// Rule names a set of identifiers and terminators.
	Rule = types.Rule

	// Location describes where a match was found within content.
	Location = types.Location

	// Snippet contains the enclosing text with surrounding context lines.
	Snippet = types.Snippet

	// Identifier is a literal that opens a region.
	Identifier = types.Identifier

	// Terminator is a literal that closes a region.
	Terminator = types.Terminator

	// Matcher configures one independent extraction for Scan.
	Matcher = scan.Matcher

	// Hit is one extracted region reported by Scan.
	Hit = scan.Hit

	// DedupeMode selects how repeated matches within a blob are collapsed.
	DedupeMode = matcher.DedupeMode
)

// Deduplication modes.
const (
	DedupeByLocation = matcher.DedupeByLocation
	DedupeByContent  = matcher.DedupeByContent
	DedupeOff        = matcher.DedupeOff
)

// Pattern constructors.
var (
	Ident      = types.Ident
	StartIdent = types.StartIdent
	ExactStart = types.ExactStart
	Term       = types.Term
	EndTerm    = types.EndTerm
	ExactEnd   = types.ExactEnd
)

// ErrStop ends a Scan early when returned from a handler; Scan then returns nil.
var ErrStop = scan.ErrStop

// Scan runs matchers over input in a single pass. See scan.Scan.
func Scan(input string, matchers []Matcher) error {
	return scan.Scan(input, matchers)
}

// SubstringsBetween returns every substring of input found between
// identifier and terminator, in discovery order.
func SubstringsBetween(input, identifier, terminator string) []string {
	return scan.SubstringsBetween(input, identifier, terminator)
}

// SubstringsBetweenAny is SubstringsBetween for sets of patterns.
func SubstringsBetweenAny(input string, identifiers []Identifier, terminators []Terminator) []string {
	return scan.SubstringsBetweenAny(input, identifiers, terminators)
}

// FirstSubstringBetween returns the content of the first region closed by a
// terminator; false when that region is empty or none is closed.
func FirstSubstringBetween(input string, identifiers []Identifier, terminators []Terminator) (string, bool) {
	return scan.FirstSubstringBetween(input, identifiers, terminators)
}

// RangesBetween returns every hit with its content and enclosing ranges.
func RangesBetween(input string, identifiers []Identifier, terminators []Terminator) []Hit {
	return scan.RangesBetween(input, identifiers, terminators)
}

// Scanner runs a rule set over content.
type Scanner struct {
	matcher matcher.Matcher
	config  *scannerConfig
	mu      sync.RWMutex
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	rules            []*types.Rule
	ruleset          string
	contextLines     int
	maxMatches       int
	disablePrefilter bool
	dedupe           matcher.DedupeMode
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithRules uses custom rules instead of builtin rules.
func WithRules(rules []*Rule) Option {
	return func(c *scannerConfig) {
		c.rules = rules
	}
}

// WithRuleset restricts the builtin rules to a builtin ruleset such as
// "default" or "documents". It is ignored when WithRules is given.
func WithRuleset(id string) Option {
	return func(c *scannerConfig) {
		c.ruleset = id
	}
}

// WithContextLines sets the number of context lines to include around matches.
// Default is 2 lines before and after.
func WithContextLines(lines int) Option {
	return func(c *scannerConfig) {
		c.contextLines = lines
	}
}

// WithMaxMatchesPerBlob stops scanning a blob once n matches were kept.
func WithMaxMatchesPerBlob(n int) Option {
	return func(c *scannerConfig) {
		c.maxMatches = n
	}
}

// WithoutPrefilter runs every rule on every blob.
func WithoutPrefilter() Option {
	return func(c *scannerConfig) {
		c.disablePrefilter = true
	}
}

// WithDedup selects how repeated matches within a blob are collapsed.
func WithDedup(mode DedupeMode) Option {
	return func(c *scannerConfig) {
		c.dedupe = mode
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses all builtin rules
//   - Includes 2 lines of context around matches
//   - Reports each location once per blob
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		contextLines: 2,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.rules == nil {
		rules, err := builtinRules(config.ruleset)
		if err != nil {
			return nil, err
		}
		config.rules = rules
	}

	m, err := matcher.New(matcher.Config{
		Rules:             config.rules,
		ContextLines:      config.contextLines,
		MaxMatchesPerBlob: config.maxMatches,
		DisablePrefilter:  config.disablePrefilter,
		Dedupe:            config.dedupe,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	return &Scanner{
		matcher: m,
		config:  config,
	}, nil
}

func builtinRules(ruleset string) ([]*types.Rule, error) {
	loader := rule.NewLoader()
	rules, err := loader.LoadBuiltinRules()
	if err != nil {
		return nil, fmt.Errorf("loading builtin rules: %w", err)
	}
	if ruleset == "" {
		return rules, nil
	}

	rulesets, err := loader.LoadBuiltinRulesets()
	if err != nil {
		return nil, fmt.Errorf("loading builtin rulesets: %w", err)
	}
	for _, rs := range rulesets {
		if rs.ID == ruleset {
			return rule.SelectRuleset(rules, rs)
		}
	}
	return nil, fmt.Errorf("unknown ruleset %q", ruleset)
}

// ScanString scans a string and returns all matches.
func (s *Scanner) ScanString(content string) ([]*Match, error) {
	return s.ScanBytes([]byte(content))
}

// ScanBytes scans raw bytes and returns all matches.
func (s *Scanner) ScanBytes(content []byte) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.matcher == nil {
		return nil, fmt.Errorf("scanner is closed")
	}
	return s.matcher.Match(content)
}

// ScanFile reads and scans a file.
func (s *Scanner) ScanFile(path string) ([]*Match, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytes(content)
}

// Close releases scanner resources.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.matcher == nil {
		return nil
	}
	err := s.matcher.Close()
	s.matcher = nil
	return err
}

// RuleCount returns the number of rules loaded.
func (s *Scanner) RuleCount() int {
	return len(s.config.rules)
}

// Rules returns a copy of the loaded rules.
func (s *Scanner) Rules() []*Rule {
	rules := make([]*Rule, len(s.config.rules))
	copy(rules, s.config.rules)
	return rules
}

// LoadRulesFromFile loads rules from a YAML file or a directory of them.
// Use this with WithRules to create a scanner with custom rules.
func LoadRulesFromFile(path string) ([]*Rule, error) {
	return rule.NewLoader().LoadRulesPath(path)
}

// LoadBuiltinRules returns all builtin rules.
// This can be used to inspect available rules or create a subset.
func LoadBuiltinRules() ([]*Rule, error) {
	return rule.NewLoader().LoadBuiltinRules()
}
