package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// CategoryPrefix marks a selector that matches rule categories instead of
// rule IDs, e.g. "category:markup".
const CategoryPrefix = "category:"

// FilterConfig selects rules by include and exclude selectors.
//
// A selector is a regular expression over the rule ID, or, with
// CategoryPrefix, a regular expression that must match one whole category.
type FilterConfig struct {
	Include []string // rules matching any selector; empty keeps all
	Exclude []string // rules matching any selector are dropped
}

// ParsePatterns splits a comma-separated list of selectors, dropping blanks.
func ParsePatterns(patterns string) []string {
	result := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// selector matches rules by ID or by category.
type selector struct {
	re       *regexp.Regexp
	category bool
}

func (s selector) matches(r *types.Rule) bool {
	if !s.category {
		return s.re.MatchString(r.ID)
	}
	for _, c := range r.Categories {
		if s.re.MatchString(c) {
			return true
		}
	}
	return false
}

func compileSelectors(patterns []string) ([]selector, error) {
	var out []selector
	for _, p := range patterns {
		expr, category := strings.CutPrefix(p, CategoryPrefix)
		if category {
			if expr == "" {
				return nil, fmt.Errorf("empty category selector %q", p)
			}
			expr = "^(?:" + expr + ")$"
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		out = append(out, selector{re: re, category: category})
	}
	return out, nil
}

func anyMatches(selectors []selector, r *types.Rule) bool {
	for _, s := range selectors {
		if s.matches(r) {
			return true
		}
	}
	return false
}

// Filter keeps the rules matched by an include selector (all rules when
// there are none) and then drops those matched by an exclude selector.
// Rule order is preserved.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	include, err := compileSelectors(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileSelectors(config.Exclude)
	if err != nil {
		return nil, err
	}
	if len(include) == 0 && len(exclude) == 0 {
		return rules, nil
	}

	kept := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if len(include) > 0 && !anyMatches(include, r) {
			continue
		}
		if anyMatches(exclude, r) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}
