package scanner

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/betwixt/pkg/matcher"
	"github.com/praetorian-inc/betwixt/pkg/rule"
	"github.com/praetorian-inc/betwixt/pkg/store"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

var (
	// cachedBuiltinRules holds builtin rules loaded once per process
	cachedBuiltinRules []*types.Rule
	cachedRulesErr     error
	cacheOnce          sync.Once
)

// loadBuiltinRulesCached loads builtin rules once and caches them
func loadBuiltinRulesCached() ([]*types.Rule, error) {
	cacheOnce.Do(func() {
		loader := rule.NewLoader()
		cachedBuiltinRules, cachedRulesErr = loader.LoadBuiltinRules()
	})
	return cachedBuiltinRules, cachedRulesErr
}

// DefaultContextLines is the snippet context used by Core.
const DefaultContextLines = 2

// Core wraps the matcher and store for scanning operations
type Core struct {
	matcher matcher.Matcher
	store   store.Store
	rules   []*types.Rule
	logger  DebugLogger
}

// NewCore creates a new Core scanner with the given rules.
// rulesDoc can be:
//   - "" or "builtin" to load builtin rules (cached)
//   - a rules document in the YAML rule format; JSON is accepted as well
func NewCore(rulesDoc string, logger DebugLogger) (*Core, error) {
	if logger == nil {
		logger = NoopLogger{}
	}

	var rules []*types.Rule
	if rulesDoc == "" || rulesDoc == "builtin" {
		var err error
		rules, err = loadBuiltinRulesCached()
		if err != nil {
			logger.Log("loading builtin rules failed: %v", err)
			return nil, err
		}
		logger.Log("loaded %d builtin rules", len(rules))
	} else {
		var err error
		rules, err = rule.NewLoader().LoadRules([]byte(rulesDoc))
		if err != nil {
			logger.Log("parsing custom rules failed: %v", err)
			return nil, fmt.Errorf("parsing rules: %w", err)
		}
		logger.Log("parsed %d custom rules", len(rules))
	}

	m, err := matcher.New(matcher.Config{
		Rules:        rules,
		ContextLines: DefaultContextLines,
	})
	if err != nil {
		logger.Log("creating matcher failed: %v", err)
		return nil, err
	}

	s, err := store.New(store.Config{Path: store.MemoryPath})
	if err != nil {
		m.Close()
		return nil, err
	}
	if err := store.RecordRules(s, rules); err != nil {
		m.Close()
		s.Close()
		return nil, err
	}

	logger.Log("core ready with %d rules", len(rules))
	return &Core{
		matcher: m,
		store:   s,
		rules:   rules,
		logger:  logger,
	}, nil
}

// RuleCount returns the number of rules the core scans with.
func (c *Core) RuleCount() int {
	return len(c.rules)
}

// Scan scans a single content string
func (c *Core) Scan(content, source string) (*ScanResult, error) {
	return c.scanItem(ContentItem{Source: source, Content: content})
}

func (c *Core) scanItem(item ContentItem) (*ScanResult, error) {
	data := []byte(item.Content)
	blobID := types.ComputeBlobID(data)

	matches, err := c.matcher.MatchWithBlobID(data, blobID)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []*types.Match{}
	}

	payload := map[string]interface{}{"source": item.Source}
	for k, v := range item.Metadata {
		if k != "source" {
			payload[k] = v
		}
	}
	if _, err := store.Record(c.store, blobID, int64(len(data)), types.ExtendedProvenance{Payload: payload}, matches); err != nil {
		c.logger.Log("recording %s failed: %v", item.Source, err)
	}

	return &ScanResult{
		Source:  item.Source,
		Matches: matches,
	}, nil
}

// ScanBatch scans multiple content items. Items that fail to scan are skipped.
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	results := []ScanResult{}
	total := 0

	for _, item := range items {
		result, err := c.scanItem(item)
		if err != nil {
			c.logger.Log("scanning %s failed: %v", item.Source, err)
			continue
		}
		results = append(results, *result)
		total += len(result.Matches)
	}

	return &BatchScanResult{
		Results: results,
		Total:   total,
	}, nil
}

// Extract runs an ad-hoc extraction; it does not touch the store.
func (c *Core) Extract(req ExtractRequest) (*ExtractResult, error) {
	return Extract(req)
}

// Findings returns the distinct findings of every scan so far.
func (c *Core) Findings() ([]*types.Finding, error) {
	return store.Findings(c.store)
}

// Close releases scanner resources
func (c *Core) Close() {
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// GetBuiltinRules returns the built-in rules (cached)
func GetBuiltinRules() ([]*types.Rule, error) {
	return loadBuiltinRulesCached()
}
