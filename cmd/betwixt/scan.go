package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/praetorian-inc/betwixt/pkg/datastore"
	"github.com/praetorian-inc/betwixt/pkg/enum"
	"github.com/praetorian-inc/betwixt/pkg/matcher"
	"github.com/praetorian-inc/betwixt/pkg/rule"
	"github.com/praetorian-inc/betwixt/pkg/store"
	"github.com/praetorian-inc/betwixt/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scanRulesPath     string
	scanRuleset       string
	scanRulesInclude  string
	scanRulesExclude  string
	scanOutputPath    string
	scanOutputFormat  string
	scanGit           bool
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanContextLines  int
	scanIncremental   bool
	scanWorkers       int
	scanMaxMatches    int
	scanDedupe        string
	scanStoreBlobs    bool
	scanExtract       string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target for delimited regions",
	Long:  "Scan a file, directory, or git repository with delimiter rules and store the matches",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	addScanFlags(scanCmd)
	scanCmd.Flags().BoolVar(&scanGit, "git", false, "Treat target as git repository (scan the HEAD commit tree)")
}

// addScanFlags registers the rule, output and enumeration flags shared by
// every command that runs a scan.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&scanRulesPath, "rules", "", "Path to custom rules file or directory")
	f.StringVar(&scanRuleset, "ruleset", "", "Builtin ruleset to use (e.g. default, documents)")
	f.StringVar(&scanRulesInclude, "rules-include", "", "Include rules whose ID matches a regex, or category:<regex> (comma-separated)")
	f.StringVar(&scanRulesExclude, "rules-exclude", "", "Exclude rules whose ID matches a regex, or category:<regex> (comma-separated)")
	f.StringVar(&scanOutputPath, "output", "betwixt.db", "Output database or datastore directory (:memory: to skip persisting)")
	f.StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	f.Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	f.BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	f.IntVar(&scanContextLines, "context-lines", 2, "Lines of context before/after matches (0 to disable)")
	f.BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
	f.IntVar(&scanWorkers, "workers", 0, "Parallel file readers (0 = one per CPU)")
	f.IntVar(&scanMaxMatches, "max-matches", 0, "Maximum matches kept per blob (0 = unlimited)")
	f.StringVar(&scanDedupe, "dedupe", "location", "Deduplicate matches within a blob by: location, content, off")
	f.BoolVar(&scanStoreBlobs, "store-blobs", false, "Keep scanned blob contents; --output becomes a datastore directory")
	f.StringVar(&scanExtract, "extract", "", "Scan the text of documents and archives (comma-separated: "+strings.Join(enum.ExtractFormats(), ",")+", or all)")
}

// scanStats counts what a scan did. Enumerators call back concurrently, so
// the counters share the mutex that serializes store writes.
type scanStats struct {
	mu       sync.Mutex
	blobs    int
	matches  int
	findings int
	skipped  int
	dups     int
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	// Validate target exists
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}

	config, err := enumConfig(target)
	if err != nil {
		return err
	}
	if scanGit {
		return scanWith(cmd, enum.NewGitEnumerator(config))
	}
	return scanWith(cmd, enum.NewFilesystemEnumerator(config))
}

// scanWith matches every blob source yields against the selected rules,
// records the results and writes them in the chosen format.
func scanWith(cmd *cobra.Command, source enum.Enumerator) error {
	dedupe, ok := matcher.ParseDedupeMode(scanDedupe)
	if !ok {
		return fmt.Errorf("unknown dedupe mode: %s", scanDedupe)
	}

	// Load rules
	rules, err := loadRules(scanRulesPath, scanRuleset, scanRulesInclude, scanRulesExclude)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	debugf(cmd, "loaded %d rules", len(rules))

	// Create matcher
	m, err := matcher.New(matcher.Config{
		Rules:             rules,
		ContextLines:      scanContextLines,
		MaxMatchesPerBlob: scanMaxMatches,
		Dedupe:            dedupe,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	if scanStoreBlobs && scanOutputPath == store.MemoryPath {
		return fmt.Errorf("--store-blobs needs an output directory")
	}
	ds, err := datastore.OpenPath(scanOutputPath, datastore.Options{StoreBlobs: scanStoreBlobs})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()
	s := ds.Store

	if err := store.RecordRules(s, rules); err != nil {
		return fmt.Errorf("storing rules: %w", err)
	}

	stats := &scanStats{}

	// Identical blobs are scanned once; later copies only add provenance.
	enumerator := enum.NewCombinedEnumerator(source)
	enumerator.OnDuplicate = func(blobID types.BlobID, prov types.Provenance) error {
		stats.mu.Lock()
		defer stats.mu.Unlock()
		stats.dups++
		return s.AddProvenance(blobID, prov)
	}

	err = enumerator.Enumerate(context.Background(), func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		return scanBlob(cmd, m, ds, stats, content, blobID, prov)
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	// Output summary (to stderr when using json/sarif format to keep stdout pure JSON)
	summary := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		summary = cmd.ErrOrStderr()
	}
	if !quiet {
		fmt.Fprintf(summary, "Scan complete: %d blobs, %d matches, %d findings", stats.blobs, stats.matches, stats.findings)
		if scanIncremental {
			fmt.Fprintf(summary, " (%d blobs skipped)", stats.skipped)
		}
		fmt.Fprintln(summary)
		if stats.dups > 0 {
			fmt.Fprintf(summary, "Duplicate blobs: %d\n", stats.dups)
		}
		if scanOutputPath != store.MemoryPath {
			fmt.Fprintf(summary, "Results stored in: %s\n", scanOutputPath)
		}
	}

	return writeResults(cmd, ds.Results(-1), scanOutputFormat, "auto")
}

// scanBlob matches one blob and records it with its matches.
func scanBlob(cmd *cobra.Command, m matcher.Matcher, ds *datastore.Datastore, stats *scanStats, content []byte, blobID types.BlobID, prov types.Provenance) error {
	s := ds.Store
	if scanIncremental {
		stats.mu.Lock()
		exists, err := s.BlobExists(blobID)
		if err == nil && exists {
			stats.skipped++
			err = s.AddProvenance(blobID, prov)
		}
		stats.mu.Unlock()
		if err != nil {
			return fmt.Errorf("checking blob: %w", err)
		}
		if exists {
			return nil
		}
	}

	matches, err := m.MatchWithBlobID(content, blobID)
	if err != nil {
		warnf(cmd, "%s: %v", prov.Path(), err)
		return nil
	}

	if ds.Blobs != nil && len(matches) > 0 {
		if _, err := ds.Blobs.Store(content); err != nil {
			return fmt.Errorf("storing blob %s: %w", blobID.Hex(), err)
		}
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	newFindings, err := store.Record(s, blobID, int64(len(content)), prov, matches)
	if err != nil {
		return fmt.Errorf("storing %s: %w", prov.Path(), err)
	}
	stats.blobs++
	stats.matches += len(matches)
	stats.findings += newFindings
	if len(matches) > 0 {
		debugf(cmd, "%s: %d matches", prov.Path(), len(matches))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadRules loads custom rules from path, or the builtin rules restricted to
// ruleset, then applies the include/exclude filters.
func loadRules(path, ruleset, include, exclude string) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error

	if path != "" {
		rules, err = loader.LoadRulesPath(path)
		if err != nil {
			return nil, err
		}
	} else {
		rules, err = loader.LoadBuiltinRules()
		if err != nil {
			return nil, err
		}
		if ruleset != "" {
			rules, err = selectBuiltinRuleset(loader, rules, ruleset)
			if err != nil {
				return nil, err
			}
		}
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		rules, err = rule.Filter(rules, config)
		if err != nil {
			return nil, fmt.Errorf("filtering rules: %w", err)
		}
	}

	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules selected")
	}
	return rules, nil
}

func selectBuiltinRuleset(loader *rule.Loader, rules []*types.Rule, id string) ([]*types.Rule, error) {
	rulesets, err := loader.LoadBuiltinRulesets()
	if err != nil {
		return nil, err
	}
	for _, rs := range rulesets {
		if rs.ID == id {
			return rule.SelectRuleset(rules, rs)
		}
	}
	return nil, fmt.Errorf("unknown ruleset %q", id)
}

// enumConfig builds the enumeration settings for root from the scan flags.
func enumConfig(root string) (enum.Config, error) {
	extract, err := enum.ParseExtractFormats(scanExtract)
	if err != nil {
		return enum.Config{}, err
	}
	return enum.Config{
		Root:            root,
		IncludeHidden:   scanIncludeHidden,
		MaxFileSize:     scanMaxFileSize,
		FollowSymlinks:  false,
		Workers:         scanWorkers,
		ExtractArchives: extract,
	}, nil
}
