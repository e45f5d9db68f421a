//go:build !windows

// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import "github.com/pkg/errors"

func nativeOpenFileDialogWindows(title, initialPath string) (string, bool, error) {
	return "", false, errors.New("native Windows file dialog not available on this system")
}
