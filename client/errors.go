package client

import "github.com/gear6io/chprobe/pkg/errors"

// Error codes for client package
var (
	// Connectivity errors
	ErrOptionsInvalid   = errors.MustNewCode("probe.options_invalid")
	ErrClientOpenFailed = errors.MustNewCode("probe.client_open_failed")
	ErrPingFailed       = errors.MustNewCode("probe.ping_failed")

	// Query errors
	ErrQueryFailed = errors.MustNewCode("probe.query_failed")

	// Shutdown errors
	ErrCloseFailed = errors.MustNewCode("probe.close_failed")

	// Output errors
	ErrOutputFailed = errors.MustNewCode("probe.output_failed")
)

// IsConnectivityError reports whether the client could not be built or the
// server did not answer the ping.
func IsConnectivityError(err error) bool {
	return errors.HasCode(err, ErrOptionsInvalid, ErrClientOpenFailed, ErrPingFailed)
}

// IsQueryError reports whether the diagnostic query failed
func IsQueryError(err error) bool {
	return errors.HasCode(err, ErrQueryFailed)
}
