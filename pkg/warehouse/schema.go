package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const schemaCacheKey = "schema"

// SchemaFetcher builds the formatted schema description handed to the SQL
// synthesizer: every table's columns with types, plus sample values for
// categorical columns so the generator uses real filter values. The formatted
// text is cached with a TTL since the catalog changes rarely.
type SchemaFetcher struct {
	client *Client
	cache  *ttlcache.Cache[string, string]
	ttl    time.Duration
	limits Limits
}

// NewSchemaFetcher creates a SchemaFetcher backed by the given client.
func NewSchemaFetcher(client *Client, ttl time.Duration) *SchemaFetcher {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
	)
	return &SchemaFetcher{
		client: client,
		cache:  cache,
		ttl:    ttl,
		limits: Limits{MaxBytesRead: 1 << 28, Timeout: 15 * time.Second},
	}
}

// FetchSchema returns the formatted schema text, from cache when fresh.
func (f *SchemaFetcher) FetchSchema(ctx context.Context) (string, error) {
	if item := f.cache.Get(schemaCacheKey); item != nil {
		return item.Value(), nil
	}

	schema, err := f.fetch(ctx)
	if err != nil {
		return "", err
	}

	f.cache.Set(schemaCacheKey, schema, f.ttl)
	return schema, nil
}

type column struct {
	table   string
	name    string
	typ     string
	samples []string
}

func (f *SchemaFetcher) fetch(ctx context.Context) (string, error) {
	query := fmt.Sprintf(`
		SELECT table, name, type
		FROM system.columns
		WHERE database = '%s'
		  AND table NOT LIKE 'stg_%%'
		ORDER BY table, position
	`, f.client.cfg.Database)

	result, err := f.client.Execute(ctx, query, f.limits)
	if err != nil {
		return "", fmt.Errorf("failed to fetch columns: %w", err)
	}
	if !result.HasData() {
		return "", fmt.Errorf("no tables found in database %q", f.client.cfg.Database)
	}

	columns := make([]column, 0, result.DataRowCount())
	for _, row := range result.Rows[1:] {
		if len(row) < 3 {
			continue
		}
		columns = append(columns, column{table: row[0], name: row[1], typ: row[2]})
	}

	f.enrichWithSamples(ctx, columns)
	return formatSchema(columns), nil
}

// enrichWithSamples fetches distinct values for categorical columns. Errors
// are ignored per column; samples are an enrichment, not a requirement.
func (f *SchemaFetcher) enrichWithSamples(ctx context.Context, columns []column) {
	for i := range columns {
		col := &columns[i]
		if !isCategoricalType(col.typ) || shouldSkipColumn(col.name) {
			continue
		}
		samples, err := f.fetchSamples(ctx, col.table, col.name)
		if err == nil && len(samples) > 0 && len(samples) <= 15 {
			col.samples = samples
		}
	}
}

func (f *SchemaFetcher) fetchSamples(ctx context.Context, table, name string) ([]string, error) {
	// Limit to 20 distinct values so high-cardinality columns are detected
	// and dropped rather than dumped into the prompt.
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM %s
		WHERE %s != ''
		LIMIT 20
	`, name, table, name)

	result, err := f.client.Execute(ctx, query, f.limits)
	if err != nil {
		return nil, err
	}
	if !result.HasData() {
		return nil, nil
	}

	samples := make([]string, 0, result.DataRowCount())
	for _, row := range result.Rows[1:] {
		if len(row) > 0 && row[0] != "" {
			samples = append(samples, row[0])
		}
	}
	return samples, nil
}

func isCategoricalType(colType string) bool {
	t := strings.ToLower(colType)
	if strings.Contains(t, "enum") {
		return true
	}
	if strings.Contains(t, "lowcardinality") && strings.Contains(t, "string") {
		return true
	}
	return t == "string" || t == "nullable(string)"
}

func shouldSkipColumn(colName string) bool {
	name := strings.ToLower(colName)
	skipSuffixes := []string{"_id", "_key", "_code", "_at", "_time", "_timestamp", "_date", "_hash", "_url"}
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	skipExact := []string{"id", "uuid", "name", "title", "description", "synopsis", "comment", "message", "error"}
	for _, exact := range skipExact {
		if name == exact {
			return true
		}
	}
	return false
}

func formatSchema(columns []column) string {
	var sb strings.Builder
	currentTable := ""

	for _, col := range columns {
		if col.table != currentTable {
			if currentTable != "" {
				sb.WriteString("\n")
			}
			currentTable = col.table
			sb.WriteString(col.table + ":\n")
		}
		if len(col.samples) > 0 {
			sb.WriteString("  - " + col.name + " (" + col.typ + ") values: " + strings.Join(col.samples, ", ") + "\n")
		} else {
			sb.WriteString("  - " + col.name + " (" + col.typ + ")\n")
		}
	}

	return sb.String()
}
