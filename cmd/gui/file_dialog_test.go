// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada

package main

import (
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

// exitStatus1 returns a real *exec.ExitError with code 1.
func exitStatus1(t *testing.T) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("se esperaba error de sh")
	}
	return err
}

func stubDialogCommand(t *testing.T, fn func(name string, args ...string) (string, error)) *[]string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("windows usa el dialogo nativo")
	}
	var calls []string
	prev := runDialogCommand
	runDialogCommand = func(name string, args ...string) (string, error) {
		calls = append(calls, name)
		return fn(name, args...)
	}
	t.Cleanup(func() { runDialogCommand = prev })
	return &calls
}

func TestPickDocumentPathUsesZenity(t *testing.T) {
	calls := stubDialogCommand(t, func(name string, args ...string) (string, error) {
		if !strings.HasPrefix(args[len(args)-1], "--title=") {
			t.Fatalf("zenity sin titulo: %v", args)
		}
		return "/home/user/doc.txt", nil
	})

	path, err := pickDocumentPath("Select a document to sign")
	if err != nil {
		t.Fatalf("error inesperado: %v", err)
	}
	if path != "/home/user/doc.txt" {
		t.Fatalf("ruta inesperada: %q", path)
	}
	if len(*calls) != 1 || (*calls)[0] != "zenity" {
		t.Fatalf("llamadas inesperadas: %v", *calls)
	}
}

func TestPickDocumentPathFallsBackToKDialog(t *testing.T) {
	calls := stubDialogCommand(t, func(name string, _ ...string) (string, error) {
		if name == "zenity" {
			return "", exec.ErrNotFound
		}
		return "/tmp/a.txt", nil
	})

	path, err := pickDocumentPath("x")
	if err != nil || path != "/tmp/a.txt" {
		t.Fatalf("fallback kdialog: path=%q err=%v", path, err)
	}
	if strings.Join(*calls, ",") != "zenity,kdialog" {
		t.Fatalf("orden inesperado: %v", *calls)
	}
}

func TestPickDocumentPathCancelled(t *testing.T) {
	cancel := exitStatus1(t)
	calls := stubDialogCommand(t, func(string, ...string) (string, error) { return "", cancel })

	if _, err := pickDocumentPath("x"); !errors.Is(err, errDialogCancelled) {
		t.Fatalf("se esperaba cancelacion, obtenido=%v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("la cancelacion no debe probar otro dialogo: %v", *calls)
	}
}

func TestPickDocumentPathEmptySelection(t *testing.T) {
	stubDialogCommand(t, func(string, ...string) (string, error) { return "", nil })
	if _, err := pickDocumentPath("x"); !errors.Is(err, errDialogCancelled) {
		t.Fatalf("seleccion vacia debe contar como cancelacion: %v", err)
	}
}

func TestPickDocumentPathNoDialogAvailable(t *testing.T) {
	stubDialogCommand(t, func(string, ...string) (string, error) { return "", exec.ErrNotFound })
	_, err := pickDocumentPath("x")
	if err == nil || errors.Is(err, errDialogCancelled) {
		t.Fatalf("se esperaba error sin dialogos: %v", err)
	}
	if !strings.Contains(err.Error(), "zenity or kdialog") {
		t.Fatalf("mensaje inesperado: %v", err)
	}
}
