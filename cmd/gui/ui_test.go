// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada

package main

import (
	"testing"

	"docsign-desktop/pkg/workflow"
)

func TestDownloadLabelNamesSignatureFile(t *testing.T) {
	cases := map[string]string{
		"contract.txt":         "💾 Download contract.txt.signature.txt",
		"/home/ana/report.txt": "💾 Download report.txt.signature.txt",
		"":                     "💾 Download document.signature.txt",
	}
	for in, want := range cases {
		if got := downloadLabel(in); got != want {
			t.Fatalf("downloadLabel(%q) = %q, se esperaba %q", in, got, want)
		}
	}
}

func TestMessageColorByKind(t *testing.T) {
	if messageColor(workflow.KindSuccess) != colorSuccess {
		t.Fatalf("exito debe usar colorSuccess")
	}
	if messageColor(workflow.KindError) != colorError {
		t.Fatalf("error debe usar colorError")
	}
	if messageColor(workflow.KindNone) != colorMuted {
		t.Fatalf("sin tipo debe usar colorMuted")
	}
}
