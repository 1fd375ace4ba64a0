package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/gear6io/chprobe/client/config"
	"github.com/gear6io/chprobe/pkg/errors"
	"github.com/rs/zerolog"
)

// Version is reported to the server as client product info
const Version = "0.1.0"

const (
	defaultHTTPPort  = "8123"
	defaultHTTPSPort = "8443"
)

// Client is a ClickHouse connection over the HTTP interface
type Client struct {
	conn   driver.Conn
	logger zerolog.Logger
}

// PingResult is the outcome of a liveness check
type PingResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	cause error
}

// Err returns the underlying ping failure, nil on success
func (r PingResult) Err() error {
	return r.cause
}

// ColumnMeta describes one result column
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Statistics summarizes the server-side cost of a query. RowsRead and
// BytesRead stay zero when the server sends no progress packets.
type Statistics struct {
	Elapsed   float64 `json:"elapsed"` // seconds
	RowsRead  uint64  `json:"rows_read"`
	BytesRead uint64  `json:"bytes_read"`
}

// QueryResult holds fully materialized rows
type QueryResult struct {
	Meta       []ColumnMeta             `json:"meta"`
	Data       []map[string]interface{} `json:"data"`
	Rows       int                      `json:"rows"`
	Statistics Statistics               `json:"statistics"`
}

// Options maps the probe configuration onto clickhouse-go options
func Options(cfg config.Config) (*clickhouse.Options, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.New(ErrOptionsInvalid, "failed to parse ClickHouse URL", err).AddContext("url", cfg.URL)
	}

	port := u.Port()
	var tlsConfig *tls.Config
	switch u.Scheme {
	case "http":
		if port == "" {
			port = defaultHTTPPort
		}
	case "https":
		if port == "" {
			port = defaultHTTPSPort
		}
		tlsConfig = &tls.Config{ServerName: u.Hostname()}
	default:
		return nil, errors.Newf(ErrOptionsInvalid, "unsupported URL scheme %q", u.Scheme).AddContext("url", cfg.URL)
	}
	if u.Hostname() == "" {
		return nil, errors.New(ErrOptionsInvalid, "ClickHouse URL has no host", nil).AddContext("url", cfg.URL)
	}

	opts := &clickhouse.Options{
		Protocol: clickhouse.HTTP,
		Addr:     []string{net.JoinHostPort(u.Hostname(), port)},
		TLS:      tlsConfig,
		Auth: clickhouse.Auth{
			Database: cfg.Database.Name,
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		},
		DialTimeout: cfg.DialTimeout,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "chprobe", Version: Version},
			},
		},
	}

	return opts, nil
}

// New opens a client for cfg. The HTTP transport connects lazily, so
// reachability is only known after Ping.
func New(cfg config.Config, logger zerolog.Logger) (*Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, errors.New(ErrClientOpenFailed, "failed to open ClickHouse client", err).AddContext("addr", opts.Addr[0])
	}

	logger.Debug().
		Str("addr", opts.Addr[0]).
		Bool("tls", opts.TLS != nil).
		Str("database", opts.Auth.Database).
		Msg("ClickHouse client opened")

	return &Client{conn: conn, logger: logger}, nil
}

// Ping checks server liveness. Failures are reported in the result rather
// than as an error.
func (c *Client) Ping(ctx context.Context) PingResult {
	start := time.Now()
	err := c.conn.Ping(ctx)
	c.logger.Debug().Dur("elapsed", time.Since(start)).Err(err).Msg("Ping finished")

	if err != nil {
		return PingResult{Success: false, Error: err.Error(), cause: err}
	}
	return PingResult{Success: true}
}

// Query runs sql and materializes every row
func (c *Client) Query(ctx context.Context, sql string) (*QueryResult, error) {
	c.logger.Debug().Str("query", sql).Msg("Executing query")

	tracker := &progressTracker{}
	ctx = clickhouse.Context(ctx,
		clickhouse.WithProgress(tracker.onProgress),
		clickhouse.WithProfileInfo(tracker.onProfileInfo),
	)

	start := time.Now()
	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return nil, withException(errors.New(ErrQueryFailed, "failed to execute query", err), err).AddContext("query", sql)
	}
	defer closeRows(rows, c.logger, sql)

	result, err := collectRows(rows)
	if err != nil {
		return nil, withException(errors.New(ErrQueryFailed, "failed to read query result", err), err).AddContext("query", sql)
	}
	result.Statistics = tracker.statistics(time.Since(start))
	return result, nil
}

// closeRows releases a result set. The rows are fully read by then, so a
// failure is only logged.
func closeRows(rows io.Closer, logger zerolog.Logger, sql string) {
	if err := rows.Close(); err != nil {
		logger.Debug().Err(err).Str("query", sql).Msg("Failed to close result rows")
	}
}

// progressTracker accumulates progress packets. The driver may invoke the
// callbacks from its reader goroutine.
type progressTracker struct {
	mu          sync.Mutex
	rowsRead    uint64
	bytesRead   uint64
	profileRows uint64
	profileSize uint64
}

func (t *progressTracker) onProgress(p *clickhouse.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rowsRead += p.Rows
	t.bytesRead += p.Bytes
}

func (t *progressTracker) onProfileInfo(p *clickhouse.ProfileInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profileRows += p.Rows
	t.profileSize += p.Bytes
}

// statistics prefers progress counters and falls back to the profile
// summary when the server sent no progress.
func (t *progressTracker) statistics(elapsed time.Duration) Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Statistics{
		Elapsed:   elapsed.Seconds(),
		RowsRead:  t.rowsRead,
		BytesRead: t.bytesRead,
	}
	if stats.RowsRead == 0 && stats.BytesRead == 0 {
		stats.RowsRead = t.profileRows
		stats.BytesRead = t.profileSize
	}
	return stats
}

// Close releases the underlying connections
func (c *Client) Close() error {
	c.logger.Debug().Msg("Closing ClickHouse client")
	if err := c.conn.Close(); err != nil {
		return errors.New(ErrCloseFailed, "failed to close ClickHouse client", err)
	}
	return nil
}

// rowIterator is the subset of driver.Rows needed to materialize a result
type rowIterator interface {
	Next() bool
	Scan(dest ...interface{}) error
	ColumnTypes() []driver.ColumnType
	Err() error
}

func collectRows(rows rowIterator) (*QueryResult, error) {
	columnTypes := rows.ColumnTypes()
	result := &QueryResult{
		Meta: make([]ColumnMeta, len(columnTypes)),
		Data: []map[string]interface{}{},
	}
	for i, ct := range columnTypes {
		result.Meta[i] = ColumnMeta{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		dest := make([]interface{}, len(columnTypes))
		for i, ct := range columnTypes {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columnTypes))
		for i, ct := range columnTypes {
			row[ct.Name()] = reflect.ValueOf(dest[i]).Elem().Interface()
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.Rows = len(result.Data)
	return result, nil
}

// withException copies the server exception code of cause onto err
func withException(err *errors.Error, cause error) *errors.Error {
	var exception *clickhouse.Exception
	if errors.As(cause, &exception) {
		err.AddContext("exception_code", strconv.Itoa(int(exception.Code))).
			AddContext("exception_name", exception.Name)
	}
	return err
}
