package warehouse

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSchemaFormatsTablesWithSamples(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sql := string(body)
		switch {
		case strings.Contains(sql, "system.columns"):
			io.WriteString(w, chJSON(
				[]string{"table", "name", "type"},
				[]any{"movies", "title", "String"},
				[]any{"movies", "genre", "LowCardinality(String)"},
				[]any{"movies", "release_date", "Date"},
				[]any{"showtimes", "movie_id", "String"},
				[]any{"showtimes", "city", "LowCardinality(String)"},
			))
		case strings.Contains(sql, "DISTINCT genre"):
			io.WriteString(w, chJSON([]string{"genre"},
				[]any{"Action"}, []any{"Comedy"}, []any{"Romance"}))
		case strings.Contains(sql, "DISTINCT city"):
			io.WriteString(w, chJSON([]string{"city"},
				[]any{"Austin"}, []any{"Denver"}))
		default:
			t.Fatalf("unexpected query: %s", sql)
		}
	})

	fetcher := NewSchemaFetcher(client, time.Minute)
	schema, err := fetcher.FetchSchema(context.Background())
	require.NoError(t, err)

	assert.Contains(t, schema, "movies:\n")
	assert.Contains(t, schema, "  - genre (LowCardinality(String)) values: Action, Comedy, Romance\n")
	assert.Contains(t, schema, "  - release_date (Date)\n")
	assert.Contains(t, schema, "showtimes:\n")
	assert.Contains(t, schema, "  - city (LowCardinality(String)) values: Austin, Denver\n")
	// title is free text and movie_id is an identifier, neither gets samples.
	assert.Contains(t, schema, "  - title (String)\n")
	assert.Contains(t, schema, "  - movie_id (String)\n")
}

func TestFetchSchemaCachesResult(t *testing.T) {
	var columnQueries atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "system.columns") {
			columnQueries.Add(1)
		}
		io.WriteString(w, chJSON(
			[]string{"table", "name", "type"},
			[]any{"movies", "release_date", "Date"},
		))
	})

	fetcher := NewSchemaFetcher(client, time.Minute)

	first, err := fetcher.FetchSchema(context.Background())
	require.NoError(t, err)
	second, err := fetcher.FetchSchema(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), columnQueries.Load())
}

func TestFetchSchemaDropsHighCardinalitySamples(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sql := string(body)
		if strings.Contains(sql, "system.columns") {
			io.WriteString(w, chJSON(
				[]string{"table", "name", "type"},
				[]any{"movies", "genre", "String"},
			))
			return
		}
		// 20 distinct values: over the categorical threshold.
		rows := make([][]any, 20)
		for i := range rows {
			rows[i] = []any{strings.Repeat("x", i+1)}
		}
		io.WriteString(w, chJSON([]string{"genre"}, rows...))
	})

	fetcher := NewSchemaFetcher(client, time.Minute)
	schema, err := fetcher.FetchSchema(context.Background())
	require.NoError(t, err)

	assert.Contains(t, schema, "  - genre (String)\n")
	assert.NotContains(t, schema, "values:")
}

func TestFetchSchemaFailsWhenDatabaseEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chJSON([]string{"table", "name", "type"}))
	})

	fetcher := NewSchemaFetcher(client, time.Minute)
	_, err := fetcher.FetchSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables found")
}

func TestShouldSkipColumn(t *testing.T) {
	assert.True(t, shouldSkipColumn("movie_id"))
	assert.True(t, shouldSkipColumn("created_at"))
	assert.True(t, shouldSkipColumn("title"))
	assert.False(t, shouldSkipColumn("genre"))
	assert.False(t, shouldSkipColumn("city"))
}
