package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/praetorian-inc/betwixt/pkg/datastore"
	"github.com/praetorian-inc/betwixt/pkg/sarif"
	"github.com/praetorian-inc/betwixt/pkg/store"
	"github.com/praetorian-inc/betwixt/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	reportDatastore  string
	reportFormat     string
	reportColor      string
	reportMaxMatches int
	reportContext    int
)

// styles holds the color formatters of human output
type styles struct {
	findingHeading *color.Color
	id             *color.Color
	ruleName       *color.Color
	heading        *color.Color
	match          *color.Color
	metadata       *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		findingHeading: color.New(color.Bold, color.FgHiWhite),
		id:             color.New(color.FgHiGreen),
		ruleName:       color.New(color.Bold, color.FgHiBlue),
		heading:        color.New(color.Bold),
		match:          color.New(color.FgYellow),
		metadata:       color.New(color.FgHiBlue),
	}

	// per-style settings override color.NoColor, which only looks at os.Stdout
	for _, c := range []*color.Color{s.findingHeading, s.id, s.ruleName, s.heading, s.match, s.metadata} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return s
}

// snippetParts holds separated snippet components for colored output
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read findings from a datastore and print them as human, json or sarif output",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "betwixt.db", "Path to the scan database or datastore directory")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportMaxMatches, "max-matches", 3, "Matches shown per finding in human output (0 = all)")
	reportCmd.Flags().IntVar(&reportContext, "context-lines", -1, "Rebuild snippets from stored blobs with this many context lines (-1 = as scanned)")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDatastore == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(reportDatastore); err != nil {
		return fmt.Errorf("datastore not found: %s", reportDatastore)
	}

	ds, err := datastore.OpenPath(reportDatastore, datastore.Options{})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	if reportContext >= 0 && ds.Blobs == nil {
		warnf(cmd, "%s has no stored blobs; showing snippets as scanned", reportDatastore)
	}
	return writeResults(cmd, ds.Results(reportContext), reportFormat, reportColor)
}

// writeResults prints the contents of s to stdout in format.
func writeResults(cmd *cobra.Command, s store.Store, format, colorMode string) error {
	switch format {
	case "json":
		return outputJSON(cmd.OutOrStdout(), s)
	case "sarif":
		return outputSARIF(cmd.OutOrStdout(), s)
	case "human":
		return outputHuman(cmd.OutOrStdout(), s, newStyles(colorEnabled(colorMode, cmd.OutOrStdout())))
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// colorEnabled resolves --color against the output stream and NO_COLOR.
func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// HELPERS
// =============================================================================

// provenanceCache resolves blob provenance once per blob.
type provenanceCache struct {
	s     store.Store
	cache map[types.BlobID][]types.Provenance
}

func newProvenanceCache(s store.Store) *provenanceCache {
	return &provenanceCache{s: s, cache: make(map[types.BlobID][]types.Provenance)}
}

func (c *provenanceCache) get(blobID types.BlobID) []types.Provenance {
	if provs, ok := c.cache[blobID]; ok {
		return provs
	}
	provs, err := c.s.GetProvenance(blobID)
	if err != nil {
		provs = nil
	}
	c.cache[blobID] = provs
	return provs
}

// path returns the first provenance path of a blob, or its hex ID.
func (c *provenanceCache) path(blobID types.BlobID) string {
	for _, p := range c.get(blobID) {
		if p.Path() != "" {
			return p.Path()
		}
	}
	return blobID.Hex()
}

func ruleNames(s store.Store) (map[string]string, error) {
	rules, err := s.GetRules()
	if err != nil {
		return nil, fmt.Errorf("retrieving rules: %w", err)
	}
	names := make(map[string]string, len(rules))
	for _, r := range rules {
		names[r.ID] = r.Name
	}
	return names, nil
}

type jsonFinding struct {
	ID       string      `json:"id"`
	RuleID   string      `json:"rule_id"`
	RuleName string      `json:"rule_name,omitempty"`
	Content  string      `json:"content"`
	Matches  []jsonMatch `json:"matches"`
}

type jsonMatch struct {
	ID          string   `json:"id"`
	BlobID      string   `json:"blob_id"`
	Paths       []string `json:"paths,omitempty"`
	Identifier  string   `json:"identifier"`
	Terminator  string   `json:"terminator"`
	StartOffset int64    `json:"start_offset"`
	EndOffset   int64    `json:"end_offset"`
	StartLine   int      `json:"start_line"`
	StartColumn int      `json:"start_column"`
	EndLine     int      `json:"end_line"`
	EndColumn   int      `json:"end_column"`
	Snippet     string   `json:"snippet"`
}

func outputJSON(out io.Writer, s store.Store) error {
	findings, err := store.Findings(s)
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}
	names, err := ruleNames(s)
	if err != nil {
		return err
	}
	provs := newProvenanceCache(s)

	report := make([]jsonFinding, 0, len(findings))
	for _, f := range findings {
		jf := jsonFinding{
			ID:       f.ID,
			RuleID:   f.RuleID,
			RuleName: names[f.RuleID],
			Content:  f.Content(),
			Matches:  make([]jsonMatch, 0, len(f.Matches)),
		}
		for _, m := range f.Matches {
			jm := jsonMatch{
				ID:          m.StructuralID,
				BlobID:      m.BlobID.Hex(),
				Identifier:  m.Identifier.Text,
				Terminator:  m.Terminator.Text,
				StartOffset: m.Location.Offset.Start,
				EndOffset:   m.Location.Offset.End,
				StartLine:   m.Location.Source.Start.Line,
				StartColumn: m.Location.Source.Start.Column,
				EndLine:     m.Location.Source.End.Line,
				EndColumn:   m.Location.Source.End.Column,
				Snippet:     string(m.Snippet.Before) + string(m.Snippet.Matching) + string(m.Snippet.After),
			}
			for _, p := range provs.get(m.BlobID) {
				jm.Paths = append(jm.Paths, types.DisplayPath(p))
			}
			jf.Matches = append(jf.Matches, jm)
		}
		report = append(report, jf)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// outputSARIF writes every stored match in SARIF 2.1.0 format
func outputSARIF(out io.Writer, s store.Store) error {
	rules, err := s.GetRules()
	if err != nil {
		return fmt.Errorf("retrieving rules: %w", err)
	}
	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}

	report := sarif.NewReport()
	for _, r := range rules {
		report.AddRule(r)
	}

	provs := newProvenanceCache(s)
	for _, m := range matches {
		report.AddResult(m, provs.path(m.BlobID))
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := out.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

func outputHuman(out io.Writer, s store.Store, st *styles) error {
	findings, err := store.Findings(s)
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}
	names, err := ruleNames(s)
	if err != nil {
		return err
	}
	provs := newProvenanceCache(s)

	for i, f := range findings {
		fmt.Fprintf(out, "%s (%s %s)\n",
			st.findingHeading.Sprintf("Finding %d/%d", i+1, len(findings)),
			st.heading.Sprint("id"),
			st.id.Sprint(f.ID))

		ruleName := f.RuleID
		if name, ok := names[f.RuleID]; ok && name != "" {
			ruleName = name
		}
		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Rule:"), st.ruleName.Sprint(ruleName))
		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Content:"), st.match.Sprintf("%q", f.Content()))

		shown := f.Matches
		if reportMaxMatches > 0 && len(shown) > reportMaxMatches {
			fmt.Fprintf(out, "Showing %d/%d matches:\n", reportMaxMatches, len(shown))
			shown = shown[:reportMaxMatches]
		}

		for k, m := range shown {
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				st.heading.Sprintf("Match %d/%d", k+1, len(f.Matches)),
				st.heading.Sprint("id"),
				st.id.Sprint(m.StructuralID))

			for _, p := range provs.get(m.BlobID) {
				fmt.Fprintf(out, "    %s %s\n",
					st.heading.Sprint("File:"),
					st.metadata.Sprint(types.DisplayPath(p)))
			}

			fmt.Fprintf(out, "    %s %s\n",
				st.heading.Sprint("Blob:"),
				st.metadata.Sprint(m.BlobID.Hex()))

			if m.Location.Source.Start.Line > 0 {
				fmt.Fprintf(out, "    %s %d:%d-%d:%d\n",
					st.heading.Sprint("Lines:"),
					m.Location.Source.Start.Line, m.Location.Source.Start.Column,
					m.Location.Source.End.Line, m.Location.Source.End.Column)
			}

			parts := formatSnippetWithParts(m.Snippet.Before, m.Snippet.Matching, m.Snippet.After, 500)
			if parts.before != "" || parts.matching != "" || parts.after != "" {
				fmt.Fprintf(out, "\n        %s%s%s%s%s\n",
					parts.prefix,
					parts.before,
					st.match.Sprint(parts.matching),
					parts.after,
					parts.suffix)
			}
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}

// formatSnippetWithParts splits a snippet into parts for colored output,
// truncating to maxLen bytes with a window centered on the matching text.
func formatSnippetWithParts(before, matching, after []byte, maxLen int) snippetParts {
	full := string(before) + string(matching) + string(after)
	if len(full) <= maxLen {
		return snippetParts{
			before:   string(before),
			matching: string(matching),
			after:    string(after),
		}
	}

	matchStart := len(before)
	matchEnd := matchStart + len(matching)

	// The match alone does not fit: show its head.
	if len(matching) >= maxLen {
		return snippetParts{
			prefix:   "...",
			matching: string(matching[:maxLen-6]),
			suffix:   "...",
		}
	}

	// reserve 6 for "..." on each side
	half := (maxLen - len(matching) - 6) / 2
	start := matchStart - half
	end := matchEnd + half

	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(full) {
		start -= end - len(full)
		if start < 0 {
			start = 0
		}
		end = len(full)
	}

	parts := snippetParts{
		before:   full[start:matchStart],
		matching: full[matchStart:matchEnd],
		after:    full[matchEnd:end],
	}
	if start > 0 {
		parts.prefix = "..."
	}
	if end < len(full) {
		parts.suffix = "..."
	}
	return parts
}
