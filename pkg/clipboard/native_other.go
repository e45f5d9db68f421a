//go:build !windows

// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package clipboard

import "os/exec"

func nativeCopy(string) error { return ErrUnavailable }

func configureCommand(*exec.Cmd) {}
