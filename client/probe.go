package client

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/gear6io/chprobe/client/config"
	"github.com/gear6io/chprobe/pkg/errors"
	"github.com/gear6io/chprobe/utils"
	"github.com/rs/zerolog"
)

// DiagnosticQuery confirms the query path without touching any table
const DiagnosticQuery = "SELECT 1"

// Conn is what the probe needs from a ClickHouse client
type Conn interface {
	Ping(ctx context.Context) PingResult
	Query(ctx context.Context, sql string) (*QueryResult, error)
	Close() error
}

// Dialer constructs a Conn for a resolved configuration
type Dialer func(cfg config.Config) (Conn, error)

// DialClickHouse returns a Dialer backed by clickhouse-go
func DialClickHouse(logger zerolog.Logger) Dialer {
	return func(cfg config.Config) (Conn, error) {
		return New(cfg, logger)
	}
}

// State is a step of a probe run
type State string

const (
	StateStart             State = "start"
	StateConfigResolved    State = "config_resolved"
	StateClientInitialized State = "client_initialized"
	StatePinged            State = "pinged"
	StateQueryExecuted     State = "query_executed"
	StateClosed            State = "closed"
	StateTerminated        State = "terminated"
	StateAborted           State = "aborted"
)

// Report describes one probe run
type Report struct {
	RunID string
	// State is StateTerminated or StateAborted once Run returns
	State State
	// LastState is the last step completed before State was reached
	LastState State
	Ping      PingResult
	Result    *QueryResult
	Elapsed   time.Duration
}

func (r *Report) advance(s State) {
	r.LastState = s
	r.State = s
}

// Probe runs the connectivity check for one configuration
type Probe struct {
	cfg     config.Config
	dial    Dialer
	printer *Printer
	logger  zerolog.Logger
}

// NewProbe creates a probe. cfg must already be resolved.
func NewProbe(cfg config.Config, dial Dialer, out io.Writer, logger zerolog.Logger) *Probe {
	return &Probe{
		cfg:     cfg,
		dial:    dial,
		printer: NewPrinter(out),
		logger:  logger,
	}
}

// Execute resolves the configuration from configPath and lookup, then runs
// the probe. No client is constructed when resolution fails.
func Execute(ctx context.Context, configPath string, lookup config.LookupFunc, dial Dialer, out io.Writer, logger zerolog.Logger) (*Report, error) {
	cfg, err := config.Load(configPath, lookup)
	if err != nil {
		return &Report{State: StateAborted, LastState: StateStart}, err
	}
	return NewProbe(*cfg, dial, out, logger).Run(ctx)
}

// Run pings the server, executes DiagnosticQuery and closes the client.
// The client is closed on every path once it has been constructed.
func (p *Probe) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{RunID: utils.NewRunID()}
	report.advance(StateConfigResolved)
	logger := p.logger.With().Str("run_id", report.RunID).Logger()

	defer func() {
		if err != nil {
			report.State = StateAborted
			if errors.IsCanceled(err) {
				logger.Warn().Err(err).Str("state", string(report.LastState)).Msg("Run interrupted")
				return
			}
			logger.Error().Err(err).Str("code", errors.GetCode(err)).Str("state", string(report.LastState)).Msg("Probe aborted")
		}
	}()

	if err = p.printer.Blob("Initialising clickhouse client", p.cfg.Diagnostic()); err != nil {
		return report, err
	}

	conn, err := p.dial(p.cfg)
	if err != nil {
		if errors.HasCode(err, ErrOptionsInvalid, ErrClientOpenFailed) {
			return report, err
		}
		return report, errors.New(ErrClientOpenFailed, "failed to construct ClickHouse client", err)
	}
	report.advance(StateClientInitialized)

	defer func() {
		closeErr := conn.Close()
		if closeErr != nil {
			if err == nil {
				err = errors.AsError(closeErr)
				return
			}
			logger.Warn().Err(closeErr).Msg("Failed to close client after abort")
			return
		}
		if err != nil {
			return
		}
		report.advance(StateClosed)
		if err = p.printer.Line("👋"); err != nil {
			return
		}
		report.State = StateTerminated
	}()

	if err = p.printer.Line("ClickHouse ping..."); err != nil {
		return report, err
	}
	report.Ping = conn.Ping(ctx)
	if err = p.printer.Blob("Ping result", report.Ping); err != nil {
		return report, err
	}
	if !report.Ping.Success {
		if ctx.Err() != nil {
			return report, canceled(ctx, "ping")
		}
		err = withException(errors.Newf(ErrPingFailed, "failed to ping ClickHouse: %s", report.Ping.Error), report.Ping.Err()).
			AddContext("url", p.cfg.URL)
		return report, err
	}
	report.advance(StatePinged)
	logger.Debug().Str("url", p.cfg.URL).Msg("Ping succeeded")

	start := time.Now()
	result, qerr := conn.Query(ctx, DiagnosticQuery)
	report.Elapsed = time.Since(start)
	if qerr != nil {
		if ctx.Err() != nil {
			return report, canceled(ctx, "query")
		}
		if !errors.HasCode(qerr, ErrQueryFailed) {
			qerr = errors.New(ErrQueryFailed, "failed to execute query", qerr).AddContext("query", DiagnosticQuery)
		}
		return report, qerr
	}
	report.Result = result
	report.advance(StateQueryExecuted)

	if err = p.printer.Blob("Query result received elapsed="+formatMillis(report.Elapsed), result); err != nil {
		return report, err
	}
	logger.Info().Dur("elapsed", report.Elapsed).Int("rows", result.Rows).Msg("Diagnostic query succeeded")

	return report, nil
}

// canceled reports a step interrupted by ctx
func canceled(ctx context.Context, step string) *errors.Error {
	return errors.New(errors.CommonCanceled, "interrupted during "+step, ctx.Err()).
		AddContext("step", step)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
