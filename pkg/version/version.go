// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package version

import "fmt"

const (
	CurrentVersion = "0.3.0"
	AppName        = "docsign-desktop"
)

var (
	// Overridable at build time with -ldflags:
	// -X docsign-desktop/pkg/version.BuildCommit=<hash>
	// -X docsign-desktop/pkg/version.BuildDate=<YYYY-MM-DDTHH:MM:SSZ>
	BuildCommit = "local"
	BuildDate   = "unknown"
)

// String returns the one-line version banner used by the CLI and the window title.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", AppName, CurrentVersion, BuildCommit, BuildDate)
}

// UserAgent is sent on every request to the signing service.
func UserAgent() string {
	return AppName + "/" + CurrentVersion
}
