package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	logFileName  = "screen_grab_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

var (
	// Logger is the process-wide logger; packages derive component loggers from it.
	Logger zerolog.Logger
	mu     sync.RWMutex
)

func init() {
	Logger = zerolog.New(io.Discard).With().Timestamp().Logger()
	log.Logger = Logger
}

// Options controls Setup.
type Options struct {
	FileLogging bool
	Level       string
	Pretty      bool
	// Dir holds the log file; empty means the working directory.
	Dir string
	// Console, when non-nil, receives log output in addition to the file.
	Console io.Writer
}

// Setup configures the global logger. File logging uses basic size-based
// rotation (10MB, max 3 archives). With neither a file nor a console
// configured, logs are discarded to keep stdout clean.
func Setup(opts Options) {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))

	var writers []io.Writer
	if opts.Console != nil {
		if opts.Pretty {
			writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.RFC3339})
		} else {
			writers = append(writers, opts.Console)
		}
	}
	if opts.FileLogging {
		path := filepath.Join(opts.Dir, logFileName)
		rotateIfNeeded(path)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			writers = append(writers, &rotatingWriter{path: path, f: f})
		}
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l := zerolog.New(out).With().Timestamp().Caller().Logger()
	mu.Lock()
	Logger = l
	log.Logger = l
	mu.Unlock()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := Logger
	return &l
}

// WithComponent returns a logger with a component field set.
func WithComponent(component string) *zerolog.Logger {
	mu.RLock()
	l := Logger.With().Str("component", component).Logger()
	mu.RUnlock()
	return &l
}

type rotatingWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		rotate(w.path)
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func rotateIfNeeded(path string) {
	if st, err := os.Stat(path); err == nil && st.Size() > maxSizeBytes {
		rotate(path)
	}
}

// rotate shifts path -> .1 -> .2 -> .3, discarding the oldest archive.
func rotate(path string) {
	_ = os.Remove(archiveName(path, maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(archiveName(path, i), archiveName(path, i+1))
	}
	_ = os.Rename(path, archiveName(path, 1))
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }
