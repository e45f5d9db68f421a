// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// errDialogCancelled is returned when the user closes the picker without choosing.
var errDialogCancelled = errors.New("file selection cancelled")

var (
	nativeOpenDialog = nativeOpenFileDialogWindows
	runDialogCommand = func(name string, args ...string) (string, error) {
		cmd := exec.Command(name, args...)
		configureGUICommand(cmd)
		out, err := cmd.Output()
		return strings.TrimSpace(string(out)), err
	}
)

// pickDocumentPath asks the desktop for a file: the Win32 dialog on
// Windows, zenity or kdialog elsewhere.
func pickDocumentPath(title string) (string, error) {
	if runtime.GOOS == "windows" {
		path, cancelled, err := nativeOpenDialog(title, "")
		if err != nil {
			return "", err
		}
		if cancelled {
			return "", errDialogCancelled
		}
		return path, nil
	}

	path, err := runDialogCommand("zenity", "--file-selection", "--title="+title)
	if err == nil {
		return emptyAsCancelled(path)
	}
	if isCancelExit(err) {
		return "", errDialogCancelled
	}
	path, err = runDialogCommand("kdialog", "--getopenfilename", ".", "*", "--title", title)
	if err == nil {
		return emptyAsCancelled(path)
	}
	if isCancelExit(err) {
		return "", errDialogCancelled
	}
	return "", errors.Wrap(err, "no file dialog available (install zenity or kdialog)")
}

func emptyAsCancelled(path string) (string, error) {
	if path == "" {
		return "", errDialogCancelled
	}
	return path, nil
}

// zenity and kdialog exit with status 1 when the user cancels.
func isCancelExit(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee) && ee.ExitCode() == 1
}
