// Package broaden rewrites exact-match array predicates in SQL text into
// progressively looser equivalents. It is a structural pattern matcher over a
// restricted predicate grammar (term, membership keyword, array expression),
// not a SQL parser: array expressions must not contain parentheses, and
// predicates are recognized wherever they appear in the statement.
//
// Three escalation levels exist:
//
//	1: case-insensitive partial match
//	2: level 1 plus synonym expansion into a disjunction
//	3: level 2 plus a data-driven category fallback predicate
//
// Each level is idempotent and no narrower than the previous one. A query
// with no recognizable predicate is returned unchanged at every level.
package broaden

import (
	"regexp"
	"sort"
	"strings"
)

// Level bounds for escalation.
const (
	MinLevel = 1
	MaxLevel = 3
)

// dialect tracks which membership syntax a predicate was written in, so
// rewrites stay in the statement's own idiom.
type dialect int

const (
	dialectUnnest      dialect = iota // 'term' IN UNNEST(expr) / EXISTS over UNNEST
	dialectArrayExists                // has(expr, 'term') / arrayExists over expr
)

var (
	// Exact-membership shapes. The recognizer tolerates arbitrary
	// whitespace and case around the membership keyword.
	reUnnestExact = regexp.MustCompile(`(?i)'([^']+)'\s+IN\s+UNNEST\s*\(\s*([^()]+?)\s*\)`)
	reHasExact    = regexp.MustCompile(`(?i)\bhas\s*\(\s*([^(),]+?)\s*,\s*'([^']+)'\s*\)`)

	// Already-broadened shapes, matched so repeated application recognizes
	// its own output instead of stacking rewrites.
	reUnnestPartial = regexp.MustCompile(`(?i)EXISTS\s*\(\s*SELECT\s+1\s+FROM\s+UNNEST\s*\(\s*([^()]+?)\s*\)\s+AS\s+item\s+WHERE\s+lower\(item\)\s+LIKE\s+'%([^']*)%'\s*\)`)
	reArrayExists   = regexp.MustCompile(`(?i)arrayExists\s*\(\s*item\s*->\s*lower\(item\)\s+LIKE\s+'%([^']*)%'\s*,\s*([^()]+?)\s*\)`)

	reOrSeparator = regexp.MustCompile(`(?i)^\s+OR\s+$`)

	reClauseAfterWhere = regexp.MustCompile(`(?i)\b(GROUP\s+BY|HAVING|ORDER\s+BY|LIMIT)\b`)
	reWhere            = regexp.MustCompile(`(?i)\bWHERE\b`)
	reGroupBy          = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
)

// occurrence is one matched membership predicate.
type occurrence struct {
	start, end int
	expr       string
	term       string
	form       dialect
}

// group is one or more occurrences over the same array expression joined by
// OR (the shape level 2 emits).
type group struct {
	start, end int
	expr       string
	terms      []string
	form       dialect
}

// Broaden rewrites query at the given escalation level. It is a pure
// function: the same (query, level) always yields the same text, and a query
// already rewritten at the level is returned unchanged.
func Broaden(query string, level int) string {
	if level < MinLevel {
		return query
	}
	if level > MaxLevel {
		level = MaxLevel
	}

	groups := findGroups(query)
	if len(groups) == 0 {
		return query
	}

	var sb strings.Builder
	last := 0
	for _, g := range groups {
		sb.WriteString(query[last:g.start])
		sb.WriteString(renderGroup(g, level))
		last = g.end
	}
	sb.WriteString(query[last:])
	rewritten := sb.String()

	if level >= 3 {
		rewritten = injectCategoryFallback(rewritten, dominantDialect(groups))
	}
	return rewritten
}

// StrategyName returns the human-readable tag for an escalation level, used
// in attempt traces.
func StrategyName(level int) string {
	switch level {
	case 1:
		return "case_insensitive"
	case 2:
		return "synonym_expansion"
	case 3:
		return "category_fallback"
	default:
		return "none"
	}
}

func findOccurrences(query string) []occurrence {
	var occs []occurrence

	for _, m := range reUnnestExact.FindAllStringSubmatchIndex(query, -1) {
		occs = append(occs, occurrence{
			start: m[0], end: m[1],
			term: strings.ToLower(query[m[2]:m[3]]),
			expr: query[m[4]:m[5]],
			form: dialectUnnest,
		})
	}
	for _, m := range reHasExact.FindAllStringSubmatchIndex(query, -1) {
		occs = append(occs, occurrence{
			start: m[0], end: m[1],
			expr: query[m[2]:m[3]],
			term: strings.ToLower(query[m[4]:m[5]]),
			form: dialectArrayExists,
		})
	}
	for _, m := range reUnnestPartial.FindAllStringSubmatchIndex(query, -1) {
		occs = append(occs, occurrence{
			start: m[0], end: m[1],
			expr: query[m[2]:m[3]],
			term: strings.ToLower(query[m[4]:m[5]]),
			form: dialectUnnest,
		})
	}
	for _, m := range reArrayExists.FindAllStringSubmatchIndex(query, -1) {
		occs = append(occs, occurrence{
			start: m[0], end: m[1],
			term: strings.ToLower(query[m[2]:m[3]]),
			expr: query[m[4]:m[5]],
			form: dialectArrayExists,
		})
	}

	sort.Slice(occs, func(i, j int) bool { return occs[i].start < occs[j].start })
	return dropOverlaps(occs)
}

// dropOverlaps removes occurrences contained in an earlier, longer match.
// The has() recognizer can fire inside an arrayExists() span.
func dropOverlaps(occs []occurrence) []occurrence {
	out := occs[:0]
	end := -1
	for _, o := range occs {
		if o.start < end {
			continue
		}
		out = append(out, o)
		end = o.end
	}
	return out
}

// findGroups merges occurrences over the same array expression that are
// joined only by OR, absorbing the wrapping parentheses level 2 emits.
func findGroups(query string) []group {
	occs := findOccurrences(query)
	if len(occs) == 0 {
		return nil
	}

	var groups []group
	i := 0
	for i < len(occs) {
		g := group{
			start: occs[i].start,
			end:   occs[i].end,
			expr:  occs[i].expr,
			terms: []string{occs[i].term},
			form:  occs[i].form,
		}
		j := i + 1
		for j < len(occs) &&
			occs[j].expr == g.expr &&
			occs[j].form == g.form &&
			reOrSeparator.MatchString(query[g.end:occs[j].start]) {
			g.terms = append(g.terms, occs[j].term)
			g.end = occs[j].end
			j++
		}

		if len(g.terms) > 1 {
			// A multi-term group was emitted by a previous rewrite and is
			// always parenthesized; reclaim the parens so regeneration does
			// not double-wrap.
			if s, e, ok := enclosingParens(query, g.start, g.end); ok {
				g.start, g.end = s, e
			}
		}

		groups = append(groups, g)
		i = j
	}
	return groups
}

func enclosingParens(query string, start, end int) (int, int, bool) {
	s := start - 1
	for s >= 0 && (query[s] == ' ' || query[s] == '\n' || query[s] == '\t') {
		s--
	}
	e := end
	for e < len(query) && (query[e] == ' ' || query[e] == '\n' || query[e] == '\t') {
		e++
	}
	if s >= 0 && e < len(query) && query[s] == '(' && query[e] == ')' {
		return s, e + 1, true
	}
	return 0, 0, false
}

// renderGroup regenerates a predicate group at the requested level. Terms are
// sorted so regeneration is canonical: rendering the same term set always
// yields identical text, which is what makes each level idempotent.
func renderGroup(g group, level int) string {
	terms := g.terms
	if level >= 2 {
		terms = expandTerms(terms)
	}
	sort.Strings(terms)

	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, partialPredicate(g.form, g.expr, t))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func partialPredicate(form dialect, expr, term string) string {
	switch form {
	case dialectArrayExists:
		return "arrayExists(item -> lower(item) LIKE '%" + term + "%', " + expr + ")"
	default:
		return "EXISTS(SELECT 1 FROM UNNEST(" + expr + ") AS item WHERE lower(item) LIKE '%" + term + "%')"
	}
}

func dominantDialect(groups []group) dialect {
	for _, g := range groups {
		if g.form == dialectUnnest {
			return dialectUnnest
		}
	}
	return dialectArrayExists
}

// injectCategoryFallback appends a disjunctive genre predicate for every
// category rule whose trigger vocabulary appears in the query. The predicate
// goes at the end of the filter clause when one exists, otherwise a new
// filter is inserted before the grouping clause.
func injectCategoryFallback(query string, form dialect) string {
	lower := strings.ToLower(query)

	for _, rule := range categories {
		if !containsAnyTrigger(lower, rule.Triggers) {
			continue
		}
		pred := categoryPredicate(rule, form)
		if strings.Contains(lower, strings.ToLower(pred)) {
			continue
		}
		query = injectPredicate(query, pred)
		lower = strings.ToLower(query)
	}
	return query
}

func containsAnyTrigger(lowerQuery string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lowerQuery, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// categoryPredicate renders the fallback in the same partial-match shape the
// broadener emits elsewhere. Injecting the exact-membership form instead
// would be recognized and rewritten on the next pass, breaking idempotence.
func categoryPredicate(rule CategoryRule, form dialect) string {
	return partialPredicate(form, rule.Column, strings.ToLower(rule.Value))
}

func injectPredicate(query, pred string) string {
	if loc := reWhere.FindStringIndex(query); loc != nil {
		rest := query[loc[1]:]
		if clause := reClauseAfterWhere.FindStringIndex(rest); clause != nil {
			insertAt := loc[1] + clause[0]
			return strings.TrimRight(query[:insertAt], " \n\t") + " OR " + pred + " " + query[insertAt:]
		}
		return strings.TrimRight(query, " \n\t;") + " OR " + pred
	}

	if loc := reGroupBy.FindStringIndex(query); loc != nil {
		return query[:loc[0]] + "WHERE " + pred + " " + query[loc[0]:]
	}
	return strings.TrimRight(query, " \n\t;") + " WHERE " + pred
}
