package broaden

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// CategoryRule is a data-driven last-resort fallback: when the query text
// contains one of the trigger words, a genre-membership predicate is injected
// as an additional disjunct.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Column   string   `yaml:"column"`
	Value    string   `yaml:"value"`
}

type ruleTable struct {
	Synonyms   map[string][]string `yaml:"synonyms"`
	Categories []CategoryRule      `yaml:"categories"`
}

// synonyms maps a lowercased keyword to related keywords. Loaded once at
// startup, never mutated.
var synonyms map[string][]string

// categories holds the category fallback rules in file order.
var categories []CategoryRule

func init() {
	var table ruleTable
	if err := yaml.Unmarshal(rulesYAML, &table); err != nil {
		panic(fmt.Sprintf("broaden: invalid rules.yaml: %v", err))
	}

	synonyms = make(map[string][]string, len(table.Synonyms))
	for key, values := range table.Synonyms {
		normalized := make([]string, 0, len(values))
		for _, v := range values {
			normalized = append(normalized, strings.ToLower(strings.TrimSpace(v)))
		}
		synonyms[strings.ToLower(strings.TrimSpace(key))] = normalized
	}
	categories = table.Categories
}

// Synonyms returns the related keywords for a term, or nil if the term has
// no table entry. Lookup is by lowercased term.
func Synonyms(term string) []string {
	return synonyms[strings.ToLower(term)]
}

// expandTerms returns the closure of the term set under the synonym table.
// The closure guarantees a second expansion is a no-op, which is what makes
// level-2 broadening idempotent.
func expandTerms(terms []string) []string {
	set := make(map[string]bool, len(terms))
	queue := append([]string(nil), terms...)
	for len(queue) > 0 {
		t := strings.ToLower(queue[0])
		queue = queue[1:]
		if set[t] {
			continue
		}
		set[t] = true
		queue = append(queue, synonyms[t]...)
	}

	expanded := make([]string, 0, len(set))
	for t := range set {
		expanded = append(expanded, t)
	}
	return expanded
}
