// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package applog

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileMaxSizeMB = 10

var (
	mu          sync.Mutex
	currentPath string
	rotator     *lumberjack.Logger
)

// Init configures process logging to a rotating file + stderr.
// The returned path is the active log file.
func Init(appName string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	logDir, err := defaultLogDir()
	if err != nil || strings.TrimSpace(logDir) == "" {
		logDir = fallbackLogDir()
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		alt := fallbackLogDir()
		if alt == logDir {
			setup(os.Stderr, nil)
			return "", err
		}
		if mkErr := os.MkdirAll(alt, 0755); mkErr != nil {
			setup(os.Stderr, nil)
			return "", err
		}
		logDir = alt
	}

	path := filepath.Join(logDir, sanitizeName(appName)+".log")
	if rotator != nil {
		_ = rotator.Close()
	}
	rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: maxBackups(logMaxTotalBytes()),
		MaxAge:     logRetentionDays(),
		LocalTime:  false,
	}
	setup(os.Stderr, rotator)
	currentPath = path
	return path, nil
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return currentPath
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func setup(console io.Writer, file io.Writer) {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}
	if file != nil {
		writers = append(writers, file)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(logLevel())
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	// Libraries that still use the standard logger end up in the same sinks.
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

func fallbackLogDir() string {
	return filepath.Join(os.TempDir(), "DocSign", "logs")
}

func defaultLogDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
		if base == "" {
			userProfile := strings.TrimSpace(os.Getenv("USERPROFILE"))
			if userProfile == "" {
				return "", fmt.Errorf("LOCALAPPDATA/USERPROFILE not available")
			}
			base = filepath.Join(userProfile, "AppData", "Local")
		}
		return filepath.Join(base, "DocSign", "logs"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Logs", "DocSign"), nil
	default:
		base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(base, "docsign", "logs"), nil
	}
}

func sanitizeName(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "docsign"
	}
	var b strings.Builder
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "docsign"
	}
	return out
}

func logLevel() zerolog.Level {
	raw := strings.TrimSpace(os.Getenv("DOCSIGN_LOG_LEVEL"))
	if raw == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func logRetentionDays() int {
	const def = 14
	raw := strings.TrimSpace(os.Getenv("DOCSIGN_LOG_RETENTION_DAYS"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 365 {
		return 365
	}
	return n
}

func logMaxTotalBytes() int64 {
	// Default total log cap across the active file and its backups.
	const defMB int64 = 50
	raw := strings.TrimSpace(os.Getenv("DOCSIGN_LOG_MAX_TOTAL_MB"))
	if raw == "" {
		return defMB * 1024 * 1024
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return defMB * 1024 * 1024
	}
	if n > 2048 {
		n = 2048
	}
	return n * 1024 * 1024
}

func maxBackups(totalBytes int64) int {
	per := int64(fileMaxSizeMB) * 1024 * 1024
	n := int(totalBytes/per) - 1
	if n < 1 {
		return 1
	}
	return n
}
