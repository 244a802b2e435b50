package log

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestLogDir(t *testing.T) {
	dir, err := logDir(&LogConfig{LogsEnabled: false})
	require.NoError(t, err)
	assert.Equal(t, os.TempDir(), dir)

	dir, err = logDir(&LogConfig{LogsEnabled: true, LogsDir: "/custom/log/dir"})
	require.NoError(t, err)
	assert.Equal(t, "/custom/log/dir", dir)

	t.Setenv("HOME", t.TempDir())
	dir, err = logDir(&LogConfig{LogsEnabled: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, filepath.Join(".commandset", "logs")), dir)
	assert.DirExists(t, dir)
}

func TestScopeFileName(t *testing.T) {
	testCases := []struct {
		scope    string
		expected string
	}{
		{scope: "player", expected: "scope_player.log"},
		{scope: "player-commands", expected: "scope_player-commands.log"},
		{scope: "ui/commands:v2", expected: "scope_ui-commands-v2.log"},
	}
	for _, tc := range testCases {
		t.Run(tc.scope, func(t *testing.T) {
			assert.Equal(t, tc.expected, scopeFileName(tc.scope))
		})
	}
}

func TestNewWriter(t *testing.T) {
	dir := t.TempDir()

	w := newWriter(filepath.Join(dir, "plain", "test.log"), nil)
	_, isFile := w.(*os.File)
	assert.True(t, isFile, "no config means no rotation")
	require.NoError(t, w.(io.Closer).Close())

	w = newWriter(filepath.Join(dir, "test.log"), &LogConfig{LogMaxSize: 10, LogMaxFiles: 5})
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, 10, lj.MaxSize)
	assert.Equal(t, 5, lj.MaxBackups)
}

func TestLogForScope(t *testing.T) {
	buf := withGlobalLoggers(t)
	dir := t.TempDir()
	withConfig(t, &LogConfig{LogsEnabled: true, LogsDir: dir, UseScopeLogs: true})

	LogForScope("player", LevelInfo, "restored %d", 2)
	LogForScope("player", LevelWarning, "load failed")
	LogForScope("player", LevelError, "save failed")

	assert.Contains(t, buf.String(), "INFO: [player] restored 2")
	assert.Contains(t, buf.String(), "WARNING: [player] load failed")
	assert.Contains(t, buf.String(), "ERROR: [player] save failed")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "scope_player.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO: restored 2")
	assert.Contains(t, string(data), "ERROR: save failed")

	// Scope logs disabled
	withConfig(t, &LogConfig{LogsEnabled: true, LogsDir: dir})
	LogForScope("other", LevelInfo, "hello")
	assert.NoFileExists(t, filepath.Join(dir, "scope_other.log"))
	assert.Contains(t, buf.String(), "[other] hello")
}

func TestErrorReporter(t *testing.T) {
	buf := withGlobalLoggers(t)

	var out bytes.Buffer
	r := NewErrorReporter("player", &out, time.Hour)

	r.Report(nil)
	assert.Empty(t, buf.String())

	r.Report(errors.New("save failed"))
	r.Report(errors.New("save failed again"))

	assert.Contains(t, buf.String(), "[player] save failed")
	assert.Contains(t, buf.String(), "[player] save failed again")

	// Only the first one reaches the terminal within the interval
	assert.Equal(t, 1, strings.Count(out.String(), "warning:"))
	assert.Contains(t, out.String(), "save failed")
}

func TestEvery(t *testing.T) {
	e := NewEvery(20 * time.Millisecond)
	assert.True(t, e.ShouldLog())
	assert.False(t, e.ShouldLog())

	assert.Eventually(t, e.ShouldLog, time.Second, 5*time.Millisecond)
}

// withGlobalLoggers points the package loggers at an in-memory buffer for the test.
func withGlobalLoggers(t *testing.T) *bytes.Buffer {
	t.Helper()
	prevInfo, prevWarn, prevErr := InfoLog, WarningLog, ErrorLog
	t.Cleanup(func() {
		InfoLog, WarningLog, ErrorLog = prevInfo, prevWarn, prevErr
	})

	buf := &bytes.Buffer{}
	InfoLog = log.New(buf, "INFO: ", 0)
	WarningLog = log.New(buf, "WARNING: ", 0)
	ErrorLog = log.New(buf, "ERROR: ", 0)
	return buf
}

func withConfig(t *testing.T, cfg *LogConfig) {
	t.Helper()
	mu.Lock()
	prev := config
	config = cfg
	mu.Unlock()
	t.Cleanup(func() {
		Close()
		mu.Lock()
		config = prev
		mu.Unlock()
	})
}
