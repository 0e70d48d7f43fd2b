package broaden

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadenLevelOneRewritesExactUnnestMatch(t *testing.T) {
	query := "SELECT title FROM movies WHERE 'Wedding' IN UNNEST(genres) LIMIT 10"

	got := Broaden(query, 1)

	assert.Equal(t,
		"SELECT title FROM movies WHERE EXISTS(SELECT 1 FROM UNNEST(genres) AS item WHERE lower(item) LIKE '%wedding%') LIMIT 10",
		got)
}

func TestBroadenLevelOneRewritesHasCall(t *testing.T) {
	query := "SELECT title FROM movies WHERE has(genres, 'Wedding') LIMIT 10"

	got := Broaden(query, 1)

	assert.Equal(t,
		"SELECT title FROM movies WHERE arrayExists(item -> lower(item) LIKE '%wedding%', genres) LIMIT 10",
		got)
}

func TestBroadenToleratesCaseAndWhitespace(t *testing.T) {
	query := "select title from movies where 'Wedding'  in  unnest( genres )"

	got := Broaden(query, 1)

	assert.Contains(t, got, "EXISTS(SELECT 1 FROM UNNEST(genres) AS item WHERE lower(item) LIKE '%wedding%')")
	assert.NotContains(t, got, "unnest( genres )")
}

func TestBroadenLevelTwoExpandsSynonyms(t *testing.T) {
	query := "SELECT title FROM movies WHERE 'Wedding' IN UNNEST(genres)"

	got := Broaden(query, 2)

	for _, term := range []string{"wedding", "romance", "marriage", "bride", "groom", "honeymoon"} {
		assert.Contains(t, got, "LIKE '%"+term+"%'", "missing synonym %q", term)
	}
	// The disjunction is parenthesized as a unit.
	assert.Contains(t, got, "WHERE (EXISTS(")
	assert.Equal(t, 5, strings.Count(got, " OR "))
}

func TestBroadenLevelThreeInjectsCategoryFallback(t *testing.T) {
	query := "SELECT title FROM movies WHERE 'Christmas' IN UNNEST(tags)"

	got := Broaden(query, 3)

	// Level 3 keeps the level 2 disjunction and appends the category
	// predicate to the filter clause.
	assert.Contains(t, got, "LIKE '%santa%'")
	assert.Contains(t, got, ") OR EXISTS(SELECT 1 FROM UNNEST(genres) AS item WHERE lower(item) LIKE '%family%')")
}

func TestBroadenSkipsFallbackAlreadyCoveredBySynonyms(t *testing.T) {
	// "romance" is both the Romance category value and a wedding synonym, so
	// the level 2 disjunction already covers the fallback predicate.
	query := "SELECT title FROM movies WHERE 'Wedding' IN UNNEST(genres)"

	two := Broaden(query, 2)
	three := Broaden(query, 3)

	assert.Equal(t, two, three)
	assert.Equal(t, 1, strings.Count(three, "'%romance%'"))
}

func TestBroadenCategoryFallbackRespectsClauseOrder(t *testing.T) {
	query := "SELECT cinema, count() FROM showtimes WHERE has(tags, 'Christmas') GROUP BY cinema ORDER BY count() DESC"

	got := Broaden(query, 3)

	fallback := "arrayExists(item -> lower(item) LIKE '%family%', genres)"
	idx := strings.Index(got, fallback)
	groupIdx := strings.Index(got, "GROUP BY")
	assert.Greater(t, idx, 0)
	assert.Less(t, idx, groupIdx, "fallback must land inside the WHERE clause, not after GROUP BY")
}

func TestBroadenIsIdempotentAtEveryLevel(t *testing.T) {
	queries := []string{
		"SELECT title FROM movies WHERE 'Wedding' IN UNNEST(genres) LIMIT 10",
		"SELECT title FROM movies WHERE has(genres, 'Halloween')",
		"SELECT cinema, count() FROM showtimes WHERE has(tags, 'Christmas') GROUP BY cinema",
	}
	for _, q := range queries {
		for level := MinLevel; level <= MaxLevel; level++ {
			once := Broaden(q, level)
			twice := Broaden(once, level)
			assert.Equal(t, once, twice, "level %d not idempotent for %q", level, q)
		}
	}
}

func TestBroadenLevelsAreCumulative(t *testing.T) {
	query := "SELECT title FROM movies WHERE has(tags, 'Christmas')"

	one := Broaden(query, 1)
	two := Broaden(query, 2)
	three := Broaden(query, 3)

	assert.Contains(t, two, "LIKE '%christmas%'")
	assert.Contains(t, three, "LIKE '%christmas%'")
	assert.True(t, strings.HasPrefix(three, two), "level 3 extends level 2 output")
	assert.NotEqual(t, one, two)
	assert.NotEqual(t, two, three)
}

func TestBroadenLeavesUnrecognizedQueriesAlone(t *testing.T) {
	queries := []string{
		"SELECT count() FROM showtimes WHERE city = 'Austin'",
		"SELECT 1",
		"",
	}
	for _, q := range queries {
		for level := MinLevel; level <= MaxLevel; level++ {
			assert.Equal(t, q, Broaden(q, level))
		}
	}
}

func TestBroadenLevelBounds(t *testing.T) {
	query := "SELECT title FROM movies WHERE 'Wedding' IN UNNEST(genres)"

	assert.Equal(t, query, Broaden(query, 0))
	assert.Equal(t, Broaden(query, MaxLevel), Broaden(query, MaxLevel+5))
}

func TestBroadenHandlesMultiplePredicates(t *testing.T) {
	query := "SELECT title FROM movies WHERE 'Action' IN UNNEST(genres) AND 'IMAX' IN UNNEST(formats)"

	got := Broaden(query, 1)

	assert.Contains(t, got, "UNNEST(genres) AS item WHERE lower(item) LIKE '%action%'")
	assert.Contains(t, got, "UNNEST(formats) AS item WHERE lower(item) LIKE '%imax%'")
	assert.Contains(t, got, " AND ")
}

func TestStrategyName(t *testing.T) {
	assert.Equal(t, "case_insensitive", StrategyName(1))
	assert.Equal(t, "synonym_expansion", StrategyName(2))
	assert.Equal(t, "category_fallback", StrategyName(3))
	assert.Equal(t, "none", StrategyName(0))
}

func TestSynonymClosureIsTransitive(t *testing.T) {
	terms := expandTerms([]string{"wedding"})

	assert.Contains(t, terms, "wedding")
	assert.Contains(t, terms, "romance")
	assert.Contains(t, terms, "honeymoon")
}
