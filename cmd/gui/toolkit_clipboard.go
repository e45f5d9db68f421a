// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"io"
	"strings"
	"sync"

	gioclipboard "gioui.org/io/clipboard"
	"gioui.org/layout"
)

// toolkitClipboard is the fallback clipboard: the window's own clipboard,
// written on the next frame because gio only accepts commands from Layout.
type toolkitClipboard struct {
	mu         sync.Mutex
	pending    string
	hasPending bool
	invalidate func()
}

func (t *toolkitClipboard) WriteText(text string) error {
	t.mu.Lock()
	t.pending, t.hasPending = text, true
	t.mu.Unlock()
	if t.invalidate != nil {
		t.invalidate()
	}
	return nil
}

func (t *toolkitClipboard) take() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text, ok := t.pending, t.hasPending
	t.pending, t.hasPending = "", false
	return text, ok
}

func (t *toolkitClipboard) flush(gtx layout.Context) {
	if text, ok := t.take(); ok {
		gtx.Execute(gioclipboard.WriteCmd{Type: "application/text", Data: io.NopCloser(strings.NewReader(text))})
	}
}
