package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlRule is the intermediate struct for parsing the YAML rule format.
// Maps YAML fields to types.Rule structure.
type yamlRule struct {
	Name             string        `yaml:"name"`
	ID               string        `yaml:"id"`
	Identifiers      []yamlPattern `yaml:"identifiers"`
	Terminators      []yamlPattern `yaml:"terminators"`
	SingleShot       bool          `yaml:"single_shot,omitempty"`
	Description      string        `yaml:"description,omitempty"`
	Examples         []yamlExample `yaml:"examples,omitempty"`
	NegativeExamples []string      `yaml:"negative_examples,omitempty"`
	References       []string      `yaml:"references,omitempty"`
	Categories       []string      `yaml:"categories,omitempty"`
}

// yamlPattern is an identifier or terminator. It is written either as a
// plain string or as a mapping:
//
//	identifiers:
//	  - "<!--"
//	  - {text: "#!", anchor: start}
//	  - {anchor: start}   # exact start
type yamlPattern struct {
	Text   string `yaml:"text"`
	Anchor string `yaml:"anchor,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (p *yamlPattern) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.Text = node.Value
		return nil
	case yaml.MappingNode:
		type plain yamlPattern
		return node.Decode((*plain)(p))
	default:
		return fmt.Errorf("line %d: pattern must be a string or a mapping", node.Line)
	}
}

type yamlExample struct {
	Input  string   `yaml:"input"`
	Expect []string `yaml:"expect"`
}

// yamlRulesFile represents the top-level structure of a rules YAML file.
// The format uses a "rules" array at the top level.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}

// yamlRuleset is the intermediate struct for parsing the YAML ruleset format.
type yamlRuleset struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	RuleIDs     []string `yaml:"include_rule_ids"`
}

// yamlRulesetsFile represents the top-level structure of a rulesets YAML file.
type yamlRulesetsFile struct {
	Rulesets []yamlRuleset `yaml:"rulesets"`
}
