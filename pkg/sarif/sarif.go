package sarif

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "betwixt"
)

// ToolVersion is reported as the driver version. The CLI overrides it with its build version.
var ToolVersion = "0.1.0"

// maxMessageContent bounds the extracted text quoted in a result message.
const maxMessageContent = 80

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents a detection rule
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	HelpURI          string           `json:"helpUri,omitempty"`
	Properties       RuleProperties   `json:"properties"`
}

// RuleProperties carries the delimiters of a rule
type RuleProperties struct {
	Identifiers []string `json:"identifiers"`
	Terminators []string `json:"terminators"`
	SingleShot  bool     `json:"singleShot,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single finding
type Result struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          ResultProperties  `json:"properties"`
}

// ResultProperties carries the extracted region of a result
type ResultProperties struct {
	Content    string `json:"content"`
	Identifier string `json:"identifier"`
	Terminator string `json:"terminator"`
	StartByte  int64  `json:"startByte"`
	EndByte    int64  `json:"endByte"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the line/column range
type Region struct {
	StartLine   int     `json:"startLine"`
	StartColumn int     `json:"startColumn"`
	EndLine     int     `json:"endLine"`
	EndColumn   int     `json:"endColumn"`
	Snippet     Snippet `json:"snippet,omitempty"`
}

// Snippet contains the matched text
type Snippet struct {
	Text string `json:"text"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddRule adds a detection rule to the report
func (r *Report) AddRule(rule *types.Rule) {
	sarifRule := Rule{
		ID:   rule.ID,
		Name: rule.Name,
		ShortDescription: ShortDescription{
			Text: rule.Description,
		},
	}

	// Add first reference as helpUri if available
	if len(rule.References) > 0 {
		sarifRule.HelpURI = rule.References[0]
	}

	sarifRule.Properties = RuleProperties{
		Identifiers: patternStrings(rule.Identifiers),
		Terminators: patternStrings(rule.Terminators),
		SingleShot:  rule.SingleShot,
		Tags:        rule.Categories,
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, sarifRule)
}

// AddResult adds a finding result to the report
func (r *Report) AddResult(match *types.Match, filePath string) {
	// Convert file path to URI format
	uri := formatFileURI(filePath)

	// Create region with line/column information
	region := Region{
		StartLine:   match.Location.Source.Start.Line,
		StartColumn: match.Location.Source.Start.Column,
		EndLine:     match.Location.Source.End.Line,
		EndColumn:   match.Location.Source.End.Column,
	}

	// Add snippet if available
	if len(match.Snippet.Matching) > 0 {
		region.Snippet = Snippet{
			Text: string(match.Snippet.Matching),
		}
	}

	result := Result{
		RuleID: match.RuleID,
		Level:  "note",
		Message: Message{
			Text: resultMessage(match),
		},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{
						URI: uri,
					},
					Region: region,
				},
			},
		},
		Properties: ResultProperties{
			Content:    match.Content,
			Identifier: match.Identifier.Text,
			Terminator: match.Terminator.Text,
			StartByte:  match.Location.Offset.Start,
			EndByte:    match.Location.Offset.End,
		},
	}
	if match.FindingID != "" {
		result.PartialFingerprints = map[string]string{"findingId/v1": match.FindingID}
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}

// resultMessage names the rule and quotes the start of the extracted text.
func resultMessage(match *types.Match) string {
	name := match.RuleName
	if name == "" {
		name = match.RuleID
	}
	content := match.Content
	if len(content) > maxMessageContent {
		content = content[:maxMessageContent] + "..."
	}
	return fmt.Sprintf("%s: %q", name, content)
}

// patternStrings renders quoted patterns with their anchors, e.g. ^"#!" or "\n"$.
func patternStrings[P fmt.Stringer](patterns []P) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.String())
	}
	return out
}
