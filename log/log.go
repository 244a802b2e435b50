package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	appDirName  = ".commandset"
	logFileBase = "commandset.log"
	logFlags    = log.Ldate | log.Ltime | log.Lshortfile
)

var (
	InfoLog    *log.Logger
	WarningLog *log.Logger
	ErrorLog   *log.Logger

	// logFileName is where the global loggers write once initialized.
	logFileName = filepath.Join(os.TempDir(), logFileBase)
	logFile     io.Closer

	// mu guards config and scopes; registries log from background goroutines.
	mu     sync.Mutex
	config *LogConfig
	scopes = map[string]*scopeLogger{}
)

func init() {
	InfoLog = log.New(os.Stderr, "INFO: ", log.Ldate|log.Ltime)
	WarningLog = log.New(os.Stderr, "WARNING: ", log.Ldate|log.Ltime)
	ErrorLog = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime)
}

// Level selects which logger a scoped message goes to.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) global() *log.Logger {
	switch l {
	case LevelWarning:
		return WarningLog
	case LevelError:
		return ErrorLog
	default:
		return InfoLog
	}
}

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// LogConfig controls where logs go and how they rotate.
type LogConfig struct {
	LogsEnabled  bool
	LogsDir      string
	LogMaxSize   int // megabytes; 0 disables rotation
	LogMaxFiles  int
	LogMaxAge    int // days
	LogCompress  bool
	UseScopeLogs bool
}

func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		LogsEnabled: true,
		LogMaxSize:  10,
		LogMaxFiles: 5,
		LogMaxAge:   30,
		LogCompress: true,
	}
}

// GetConfigDir returns ~/.commandset.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, appDirName), nil
}

// logDir resolves the log directory, creating the default one. Disabled
// logging writes to the temp directory.
func logDir(cfg *LogConfig) (string, error) {
	switch {
	case cfg != nil && !cfg.LogsEnabled:
		return os.TempDir(), nil
	case cfg != nil && cfg.LogsDir != "":
		return cfg.LogsDir, nil
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return os.TempDir(), err
	}
	dir := filepath.Join(configDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return os.TempDir(), fmt.Errorf("failed to create log directory: %w", err)
	}
	return dir, nil
}

// scopeFileName maps a scope to a log file name. Storage keys often contain
// separators, which become '-'.
func scopeFileName(scope string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, scope)
	return "scope_" + safe + ".log"
}

// InitializeWithConfig points the global loggers at the configured log file.
// Call Close when done.
func InitializeWithConfig(cfg *LogConfig) {
	if cfg == nil {
		cfg = DefaultLogConfig()
	}

	dir, err := logDir(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging to %s: %v\n", dir, err)
	}
	path := filepath.Join(dir, logFileBase)
	w := newWriter(path, cfg)

	mu.Lock()
	config = cfg
	mu.Unlock()

	InfoLog = log.New(w, "INFO: ", logFlags)
	WarningLog = log.New(w, "WARNING: ", logFlags)
	ErrorLog = log.New(w, "ERROR: ", logFlags)
	if c, ok := w.(io.Closer); ok {
		logFile = c
	}
	logFileName = path
}

// newWriter opens path, rotating through lumberjack unless rotation is off.
func newWriter(path string, cfg *LogConfig) io.Writer {
	if cfg != nil && cfg.LogMaxSize > 0 {
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxFiles,
			MaxAge:     cfg.LogMaxAge,
			Compress:   cfg.LogCompress,
			LocalTime:  true,
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(fmt.Sprintf("could not create log directory: %s", err))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("could not open log file: %s", err))
	}
	return f
}

// scopeLogger writes one scope's messages to its own file.
type scopeLogger struct {
	logger *log.Logger
	file   io.Closer
}

// scopeFor returns the scope's logger, or nil when scope logs are off.
func scopeFor(scope string) (*scopeLogger, error) {
	mu.Lock()
	defer mu.Unlock()

	if s, ok := scopes[scope]; ok {
		return s, nil
	}
	if config == nil || !config.UseScopeLogs {
		return nil, nil
	}

	dir, err := logDir(config)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory for %s: %w", scope, err)
	}
	w := newWriter(filepath.Join(dir, scopeFileName(scope)), config)
	s := &scopeLogger{logger: log.New(w, "", logFlags)}
	if c, ok := w.(io.Closer); ok {
		s.file = c
	}
	scopes[scope] = s
	return s, nil
}

// LogForScope writes to the global log with a "[scope]" prefix and, when
// scope logs are enabled, to the scope's own file.
func LogForScope(scope string, level Level, format string, v ...any) {
	s, err := scopeFor(scope)
	if err != nil {
		ErrorLog.Printf("scope log %s: %v", scope, err)
	}
	if s != nil {
		s.logger.Printf(level.String()+": "+format, v...)
	}
	level.global().Printf("["+scope+"] "+format, v...)
}

// Close closes the global and scope log files.
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	mu.Lock()
	defer mu.Unlock()
	for name, s := range scopes {
		if s.file != nil {
			_ = s.file.Close()
		}
		delete(scopes, name)
	}
}

// Every rate-limits a log line to once per timeout.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog reports whether timeout has passed since it last returned true.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer == nil {
		e.timer = time.NewTimer(e.timeout)
		return true
	}
	select {
	case <-e.timer.C:
		e.timer.Reset(e.timeout)
		return true
	default:
		return false
	}
}
