package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/config"
	"github.com/scpid/scpid/internal/pubsub"
	"github.com/scpid/scpid/internal/session"
	"github.com/scpid/scpid/internal/tree"
)

func TestFileLineReader_SplitsOnNewlineAndTrimsCR(t *testing.T) {
	r := &fileLineReader{br: bufio.NewReader(strings.NewReader("*IDN?\r\n:OUTP 1\n"))}

	line, ok, err := r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "*IDN?", line)

	line, ok, err = r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ":OUTP 1", line)
}

func TestFileLineReader_ReturnsUnterminatedFinalLine(t *testing.T) {
	r := &fileLineReader{br: bufio.NewReader(strings.NewReader("no trailing newline"))}

	line, ok, err := r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "no trailing newline", line)

	_, ok, err = r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileLineReader_EmptyInputYieldsNoLines(t *testing.T) {
	r := &fileLineReader{br: bufio.NewReader(strings.NewReader(""))}

	_, ok, err := r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
}

func newBatchRegistry(t *testing.T) *session.Registry {
	t.Helper()
	root := tree.NewRoot()
	require.NoError(t, session.RegisterBuiltins(root))
	return session.NewRegistry(root, pubsub.New())
}

func TestRunModuleCBOR_RecordsOneSnapshotPerCommand(t *testing.T) {
	reg := newBatchRegistry(t)

	dir := t.TempDir()
	modulePath := dir + "/mod.scpi"
	require.NoError(t, os.WriteFile(modulePath, []byte("ACCess CONTROLLER\nRETurn 7\n"), 0o644))

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runModuleCBOR(reg, logger, modulePath, &out)
	require.NoError(t, err)
	assert.Greater(t, out.Len(), 0)
}

func TestRunModuleCBOR_RecordsErrorSnapshotOnBadCommand(t *testing.T) {
	reg := newBatchRegistry(t)

	dir := t.TempDir()
	modulePath := dir + "/mod.scpi"
	require.NoError(t, os.WriteFile(modulePath, []byte("ACCess NOTALEVEL\n"), 0o644))

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runModuleCBOR(reg, logger, modulePath, &out)
	require.NoError(t, err)
	assert.Greater(t, out.Len(), 0)
}

func TestRunModuleCBOR_MissingFileReturnsError(t *testing.T) {
	reg := newBatchRegistry(t)
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runModuleCBOR(reg, logger, "/nonexistent/path/mod.scpi", &out)
	assert.Error(t, err)
}

func TestExitCodeFor_StartupErrorIsTwo(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(&startupError{errors.New("boom")}))
}

func TestExitCodeFor_WrappedStartupErrorIsTwo(t *testing.T) {
	wrapped := fmt.Errorf("loading config: %w", &startupError{errors.New("boom")})
	assert.Equal(t, 2, exitCodeFor(wrapped))
}

func TestExitCodeFor_OtherErrorIsOne(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("boom")))
}

func TestParseLogLevel_RecognizesEachName(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}

func TestApplySettingsDefaults_OnlyFillsUnsetFields(t *testing.T) {
	opts := &options{bind: ":5025"}
	settings := &config.Settings{Bind: ":9999", Telnet: ":2323", Serial: "/dev/ttyS0"}
	applySettingsDefaults(opts, settings)

	assert.Equal(t, ":5025", opts.bind)
	assert.Equal(t, ":2323", opts.telnet)
	assert.Equal(t, "/dev/ttyS0", opts.serial)
}
