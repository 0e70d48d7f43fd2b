// Package warehouse executes SQL against the ClickHouse HTTP interface under
// hard per-request resource limits and normalizes results into the rectangular
// string tables the rest of the system works with.
package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Limits are the hard request parameters applied to every statement. Both are
// passed to ClickHouse as per-request settings, so enforcement happens on the
// server, not by watching the clock locally.
type Limits struct {
	MaxBytesRead int64
	Timeout      time.Duration
}

// Executor runs one SQL statement under hard limits. *Client satisfies it;
// consumers take the interface so tests can substitute a fake warehouse.
type Executor interface {
	Execute(ctx context.Context, sql string, limits Limits) (Table, error)
}

// Config holds the connection settings for a Client.
type Config struct {
	Logger   *slog.Logger
	Addr     string // host:port of the ClickHouse HTTP interface
	Database string
	Username string
	Password string
}

// Client issues one SQL statement at a time over the ClickHouse HTTP
// interface. It holds no mutable state and is safe for concurrent use.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
	log  *slog.Logger
}

// NewClient creates a Client. It does not contact the warehouse; call Ping
// to verify connectivity.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("warehouse address is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}

	base := &url.URL{Scheme: "http", Host: cfg.Addr}
	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{},
		log:  cfg.Logger,
	}, nil
}

// Ping verifies connectivity with a trivial statement, retrying with bounded
// exponential backoff so the service can start while the warehouse is still
// coming up.
func (c *Client) Ping(ctx context.Context) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		_, err := c.Execute(ctx, "SELECT 1", Limits{MaxBytesRead: 1 << 20, Timeout: 5 * time.Second})
		return err
	}, backoff.WithMaxRetries(bo, 5))
}

// Execute runs one SQL statement under the given limits and returns the
// normalized result. On success with zero rows it returns the "no data found"
// sentinel, never an empty table. On failure it returns the error table along
// with a classified *QueryError; it never retries internally.
func (c *Client) Execute(ctx context.Context, sql string, limits Limits) (Table, error) {
	start := time.Now()

	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	body := sql + " FORMAT JSON"

	ctx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL(limits), strings.NewReader(body))
	if err != nil {
		return c.fail(sql, start, "failed to build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.fail(sql, start, "query timed out after "+limits.Timeout.String())
		}
		return c.fail(sql, start, "failed to connect to warehouse: "+err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(sql, start, "failed to read response: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 500 {
			msg = msg[:500] + "..."
		}
		return c.fail(sql, start, msg)
	}

	var chResp struct {
		Meta []struct {
			Name string `json:"name"`
		} `json:"meta"`
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &chResp); err != nil {
		return c.fail(sql, start, "failed to parse response: "+err.Error())
	}

	table := normalize(chResp.Meta, chResp.Data)
	if c.log != nil {
		c.log.Debug("warehouse: query executed",
			"rows", table.DataRowCount(),
			"truncated", table.Truncated,
			"duration", time.Since(start))
	}
	return table, nil
}

func (c *Client) fail(sql string, start time.Time, message string) (Table, error) {
	kind := classifyError(message)
	if c.log != nil {
		c.log.Debug("warehouse: query failed",
			"kind", kind,
			"error", message,
			"duration", time.Since(start))
	}
	return ErrorTable(message), &QueryError{Kind: kind, Message: message}
}

// queryURL builds the request URL carrying database selection and the hard
// limits as ClickHouse settings.
func (c *Client) queryURL(limits Limits) string {
	u := *c.base
	q := u.Query()
	q.Set("database", c.cfg.Database)
	if limits.MaxBytesRead > 0 {
		q.Set("max_bytes_to_read", strconv.FormatInt(limits.MaxBytesRead, 10))
	}
	if limits.Timeout > 0 {
		secs := int64(limits.Timeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		q.Set("max_execution_time", strconv.FormatInt(secs, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// normalize converts a ClickHouse JSON response into a Table: header row in
// warehouse-reported column order, stringified cells, sentinel on zero rows,
// silent truncation past MaxDataRows flagged on the result.
func normalize(meta []struct {
	Name string `json:"name"`
}, data []map[string]any) Table {
	if len(data) == 0 {
		return NoDataTable()
	}

	columns := make([]string, 0, len(meta))
	for _, m := range meta {
		columns = append(columns, m.Name)
	}

	truncated := false
	if len(data) > MaxDataRows {
		data = data[:MaxDataRows]
		truncated = true
	}

	rows := make([][]string, 0, len(data)+1)
	rows = append(rows, columns)
	for _, record := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatCell(record[col])
		}
		rows = append(rows, row)
	}

	return Table{Rows: rows, Truncated: truncated}
}
