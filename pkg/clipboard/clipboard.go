// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

// Package clipboard copies signatures to the system clipboard and saves them
// as <document>.signature.txt files.
package clipboard

import (
	"bytes"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when no clipboard mechanism could be used.
var ErrUnavailable = errors.New("clipboard unavailable")

type Writer interface {
	WriteText(text string) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(text string) error

func (f WriterFunc) WriteText(text string) error { return f(text) }

// Adapter tries Primary first and Fallback if that fails.
type Adapter struct {
	Primary  Writer
	Fallback Writer
	Log      zerolog.Logger
}

func (a *Adapter) Copy(text string) error {
	var primaryErr error
	if a.Primary != nil {
		if primaryErr = a.Primary.WriteText(text); primaryErr == nil {
			return nil
		}
		a.Log.Debug().Err(primaryErr).Msg("primary clipboard failed, trying fallback")
	}
	if a.Fallback == nil {
		if primaryErr != nil {
			return errors.Wrap(primaryErr, "copy to clipboard")
		}
		return ErrUnavailable
	}
	if err := a.Fallback.WriteText(text); err != nil {
		if primaryErr != nil {
			return errors.Wrapf(err, "copy to clipboard (primary: %v)", primaryErr)
		}
		return errors.Wrap(err, "copy to clipboard")
	}
	return nil
}

type command struct {
	name string
	args []string
}

var (
	lookPath   = exec.LookPath
	runCommand = func(name string, args []string, stdin string) error {
		cmd := exec.Command(name, args...)
		configureCommand(cmd)
		cmd.Stdin = strings.NewReader(stdin)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return errors.Wrapf(err, "%s: %s", name, msg)
			}
			return errors.Wrap(err, name)
		}
		return nil
	}
)

func candidates(goos string) []command {
	switch goos {
	case "darwin":
		return []command{{name: "pbcopy"}}
	case "windows":
		return nil
	default:
		return []command{
			{name: "wl-copy"},
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
	}
}

// System returns the OS clipboard writer: the Win32 API on Windows, and the
// first available helper tool elsewhere.
func System() Writer {
	return systemWriter(runtime.GOOS)
}

func systemWriter(goos string) Writer {
	if goos == "windows" {
		return WriterFunc(nativeCopy)
	}
	tools := candidates(goos)
	return WriterFunc(func(text string) error {
		var lastErr error
		for _, c := range tools {
			if _, err := lookPath(c.name); err != nil {
				continue
			}
			if lastErr = runCommand(c.name, c.args, text); lastErr == nil {
				return nil
			}
		}
		if lastErr != nil {
			return lastErr
		}
		return ErrUnavailable
	})
}
