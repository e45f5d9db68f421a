//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

const (
	ofnExplorer      = 0x00080000
	ofnPathMustExist = 0x00000800
	ofnFileMustExist = 0x00001000
	invalidFileAttrs = ^uint32(0)
)

type openFileName struct {
	lStructSize       uint32
	hwndOwner         uintptr
	hInstance         uintptr
	lpstrFilter       *uint16
	lpstrCustomFilter *uint16
	nMaxCustFilter    uint32
	nFilterIndex      uint32
	lpstrFile         *uint16
	nMaxFile          uint32
	lpstrFileTitle    *uint16
	nMaxFileTitle     uint32
	lpstrInitialDir   *uint16
	lpstrTitle        *uint16
	flags             uint32
	nFileOffset       uint16
	nFileExtension    uint16
	lpstrDefExt       *uint16
	lCustData         uintptr
	lpfnHook          uintptr
	lpTemplateName    *uint16
	pvReserved        unsafe.Pointer
	dwReserved        uint32
	flagsEx           uint32
}

var (
	comdlg32               = windows.NewLazySystemDLL("comdlg32.dll")
	procGetOpenFileNameW   = comdlg32.NewProc("GetOpenFileNameW")
	procCommDlgExtendedErr = comdlg32.NewProc("CommDlgExtendedError")
)

// documentFilter lists text documents first and everything else second.
const documentFilter = "Text documents (*.txt;*.md;*.json;*.xml;*.csv)\x00*.txt;*.md;*.json;*.xml;*.csv\x00All files (*.*)\x00*.*\x00\x00"

func nativeOpenFileDialogWindows(title, initialPath string) (string, bool, error) {
	// UTF16FromString rejects embedded NULs, which the filter format needs.
	filter := utf16.Encode([]rune(documentFilter))
	titlePtr, _ := windows.UTF16PtrFromString(strings.TrimSpace(title))

	buf := make([]uint16, 32768)
	ofn := openFileName{
		lStructSize:     uint32(unsafe.Sizeof(openFileName{})),
		lpstrFilter:     &filter[0],
		lpstrFile:       &buf[0],
		nMaxFile:        uint32(len(buf)),
		lpstrInitialDir: utf16PtrOrNil(resolveInitialDir(initialPath)),
		lpstrTitle:      titlePtr,
		flags:           ofnExplorer | ofnPathMustExist | ofnFileMustExist,
	}
	if r, _, callErr := procGetOpenFileNameW.Call(uintptr(unsafe.Pointer(&ofn))); r == 0 {
		code, _, _ := procCommDlgExtendedErr.Call()
		if code == 0 {
			return "", true, nil
		}
		return "", false, errors.Errorf("GetOpenFileNameW failed (code=%d): %v", code, callErr)
	}
	path := windows.UTF16ToString(buf)
	if strings.TrimSpace(path) == "" {
		return "", true, nil
	}
	return path, false, nil
}

func utf16PtrOrNil(v string) *uint16 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	p, err := windows.UTF16PtrFromString(v)
	if err != nil {
		return nil
	}
	return p
}

func resolveInitialDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(path)); err == nil && attrs != invalidFileAttrs {
		return path
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
