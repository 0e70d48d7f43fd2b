package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		Addr:     strings.TrimPrefix(srv.URL, "http://"),
		Database: "screenlake",
		Username: "reader",
		Password: "secret",
	})
	require.NoError(t, err)
	return client
}

func chJSON(columns []string, rows ...[]any) string {
	type metaCol struct {
		Name string `json:"name"`
	}
	meta := make([]metaCol, len(columns))
	for i, c := range columns {
		meta[i] = metaCol{Name: c}
	}
	data := make([]map[string]any, len(rows))
	for i, row := range rows {
		record := map[string]any{}
		for j, c := range columns {
			record[c] = row[j]
		}
		data[i] = record
	}
	out, _ := json.Marshal(map[string]any{"meta": meta, "data": data})
	return string(out)
}

func testLimits() Limits {
	return Limits{MaxBytesRead: 1 << 20, Timeout: 5 * time.Second}
}

func TestExecuteNormalizesResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chJSON(
			[]string{"title", "views"},
			[]any{"Inception", float64(42)},
			[]any{"Arrival", 17.5},
			[]any{nil, float64(0)},
		))
	})

	table, err := client.Execute(context.Background(), "SELECT title, views FROM movies", testLimits())
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"title", "views"},
		{"Inception", "42"},
		{"Arrival", "17.5"},
		{"", "0"},
	}, table.Rows)
	assert.False(t, table.Truncated)
	assert.True(t, table.HasData())
	assert.Equal(t, 3, table.DataRowCount())
}

func TestExecuteSendsLimitsAndAuth(t *testing.T) {
	var gotQuery map[string][]string
	var gotBody string
	var gotUser, gotPass string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotUser, gotPass, _ = r.BasicAuth()
		io.WriteString(w, chJSON([]string{"n"}, []any{float64(1)}))
	})

	_, err := client.Execute(context.Background(), "SELECT 1;", Limits{
		MaxBytesRead: 500000000,
		Timeout:      30 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "screenlake", gotQuery["database"][0])
	assert.Equal(t, "500000000", gotQuery["max_bytes_to_read"][0])
	assert.Equal(t, "30", gotQuery["max_execution_time"][0])
	assert.Equal(t, "SELECT 1 FORMAT JSON", gotBody)
	assert.Equal(t, "reader", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestExecuteReturnsSentinelOnZeroRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chJSON([]string{"title"}))
	})

	table, err := client.Execute(context.Background(), "SELECT title FROM movies WHERE 1=0", testLimits())
	require.NoError(t, err)

	assert.True(t, table.IsNoData())
	assert.False(t, table.HasData())
	assert.Equal(t, [][]string{{NoDataMessage}}, table.Rows)
}

func TestExecuteTruncatesLargeResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rows := make([][]any, MaxDataRows+50)
		for i := range rows {
			rows[i] = []any{fmt.Sprintf("movie-%d", i)}
		}
		io.WriteString(w, chJSON([]string{"title"}, rows...))
	})

	table, err := client.Execute(context.Background(), "SELECT title FROM movies", testLimits())
	require.NoError(t, err)

	assert.True(t, table.Truncated)
	assert.Equal(t, MaxDataRows, table.DataRowCount())
}

func TestExecuteClassifiesWarehouseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind FailureKind
	}{
		{"byte budget", "Code: 307. DB::Exception: Limit for bytes to read exceeded", KindBudgetExceeded},
		{"timeout", "Code: 159. DB::Exception: Timeout exceeded", KindTimeout},
		{"unknown table", "Code: 60. DB::Exception: Unknown table screenlake.moviez", KindSchemaReference},
		{"syntax", "Code: 62. DB::Exception: Syntax error", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.body, http.StatusInternalServerError)
			})

			table, err := client.Execute(context.Background(), "SELECT 1", testLimits())

			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.True(t, table.IsError())
			assert.Equal(t, ErrorMarker, table.Rows[0][0])
			assert.Contains(t, table.Rows[1][0], "DB::Exception")
		})
	}
}

func TestExecuteClassifiesLocalTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, chJSON([]string{"n"}, []any{float64(1)}))
	})

	_, err := client.Execute(context.Background(), "SELECT sleep(3)", Limits{
		MaxBytesRead: 1 << 20,
		Timeout:      20 * time.Millisecond,
	})

	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestNewClientRequiresAddr(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestKindOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, KindOther, KindOf(fmt.Errorf("plain error")))
	assert.Equal(t, KindOther, KindOf(nil))
}
