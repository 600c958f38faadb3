package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DefaultFilePath is used when the file sink is enabled without a path.
const DefaultFilePath = "./cadence.log"

// Console formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	Level string
	// Console enables the stderr sink. Format selects human text (default) or
	// JSON lines, which suits journald.
	Console bool
	Format  string
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the sinks behind every Logger it hands out. Apply swaps them
// without invalidating those loggers.
type Service struct {
	mu       sync.Mutex
	file     *os.File
	filePath string

	cfg    Config
	root   atomic.Pointer[zerolog.Logger]
	stderr io.Writer
}

// New applies cfg and returns the service with its root logger.
func New(cfg Config) (*Service, Logger) {
	return newService(cfg, os.Stderr)
}

func newService(cfg Config, stderr io.Writer) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = consoleTimeFormat
	s := &Service{stderr: stderr}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() *zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return zl
	}
	return &disabled
}

// Apply rebuilds the sinks from cfg. The log file stays open when its path is
// unchanged, so a level-only reload does not reopen it.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(cfg)
}

func (s *Service) apply(cfg Config) {
	s.cfg = cfg
	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, s.console(cfg.Format))
	}

	path := ""
	if cfg.File.Enabled {
		path = strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = DefaultFilePath
		}
	}
	if path != s.filePath {
		s.closeFile()
		if path != "" {
			if err := s.openFile(path); err != nil {
				fmt.Fprintf(s.stderr, "logx: %v\n", err)
			}
		}
	}
	if s.file != nil {
		sinks = append(sinks, zerolog.SyncWriter(s.file))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, s.console(cfg.Format))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

func (s *Service) console(format string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return zerolog.SyncWriter(s.stderr)
	}
	cw := zerolog.ConsoleWriter{Out: s.stderr, TimeFormat: consoleTimeFormat}
	cw.FormatCaller = func(i any) string {
		c, _ := i.(string)
		return c
	}
	return cw
}

func (s *Service) openFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", path, err)
	}
	s.file, s.filePath = f, path
	return nil
}

func (s *Service) closeFile() {
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file, s.filePath = nil, ""
}

// Close releases the log file. Loggers keep writing to the console sink.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.file
	s.file, s.filePath = nil, ""
	cfg := s.cfg
	cfg.File.Enabled = false
	s.apply(cfg)
	if f != nil {
		return f.Close()
	}
	return nil
}
