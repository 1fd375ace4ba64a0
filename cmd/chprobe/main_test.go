package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gear6io/chprobe/client/config"
	"github.com/gear6io/chprobe/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestRootCommandInvalidEnvironment(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(map[string]string{config.EnvEnvironment: "staging"}))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "staging")
	assert.Empty(t, stdout.String())
}

func TestRootCommandRejectsArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(nil))
	cmd.SetArgs([]string{"SELECT 2"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Empty(t, stdout.String())
}

func TestRootCommandInvalidLogFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(map[string]string{config.EnvEnvironment: "local"}))
	cmd.SetArgs([]string{"--log-format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
	assert.Empty(t, stdout.String())
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(nil))
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
	assert.Empty(t, stdout.String())
}

func TestRootCommandConfigFileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chprobe.yml")
	require.NoError(t, os.WriteFile(path, []byte("environment: nowhere\nlogging:\n  level: debug\n  format: json\n"), 0600))

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(nil))
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
	assert.Contains(t, stderr.String(), `"message":"Starting probe"`)
}

func TestRootCommandVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(nil))
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "0.1.0")
}

func TestRootCommandInvalidLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, lookupFrom(map[string]string{config.EnvEnvironment: "local"}))
	cmd.SetArgs([]string{"--log-level", "verbose"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, config.ErrLogLevelInvalid))
	assert.Contains(t, err.Error(), "verbose")
	assert.Empty(t, stdout.String())
}

type failingCloser struct{}

func (failingCloser) Close() error { return fmt.Errorf("disk gone") }

func TestCloseLogReportsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	closeLog(failingCloser{}, logger, "/var/log/chprobe.log")
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), "disk gone")
	assert.Contains(t, buf.String(), "/var/log/chprobe.log")
}
