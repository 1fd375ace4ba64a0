package config

import "github.com/gear6io/chprobe/pkg/errors"

// Error codes for client config package
var (
	// Resolution errors
	ErrInvalidEnvironment = errors.MustNewCode("config.invalid_environment")
	ErrInvalidURL         = errors.MustNewCode("config.invalid_url")

	// Validation errors
	ErrUsernameEmpty      = errors.MustNewCode("config.username_empty")
	ErrDatabaseEmpty      = errors.MustNewCode("config.database_empty")
	ErrDialTimeoutInvalid = errors.MustNewCode("config.dial_timeout_invalid")

	// File operation errors
	ErrConfigFileReadFailed  = errors.MustNewCode("config.file_read_failed")
	ErrConfigFileParseFailed = errors.MustNewCode("config.file_parse_failed")

	// Logging errors
	ErrLogLevelInvalid          = errors.MustNewCode("config.log_level_invalid")
	ErrLogFormatInvalid         = errors.MustNewCode("config.log_format_invalid")
	ErrLogDirectoryCreateFailed = errors.MustNewCode("config.log_directory_create_failed")
	ErrLogFileOpenFailed        = errors.MustNewCode("config.log_file_open_failed")
)

// IsConfigurationError reports whether err stems from resolving or
// validating the configuration.
func IsConfigurationError(err error) bool {
	return errors.HasCode(err,
		ErrInvalidEnvironment,
		ErrInvalidURL,
		ErrUsernameEmpty,
		ErrDatabaseEmpty,
		ErrDialTimeoutInvalid,
		ErrConfigFileReadFailed,
		ErrConfigFileParseFailed,
	)
}
