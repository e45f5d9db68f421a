// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package clipboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docsign-desktop/pkg/config"

	"github.com/pkg/errors"
)

// SignatureSuffix is appended to the document name for saved signatures.
const SignatureSuffix = ".signature.txt"

// Saver writes signature files into Dir.
type Saver struct {
	Dir    string
	Policy config.OverwritePolicy
}

func NewSaver(dir string, policy config.OverwritePolicy) *Saver {
	return &Saver{Dir: dir, Policy: policy}
}

// SignatureFileName returns "<base of fileName>.signature.txt".
func SignatureFileName(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "document"
	}
	return base + SignatureSuffix
}

// Save writes signature to Dir/<fileName>.signature.txt and returns the path
// actually used, which differs under the rename policy.
func (s *Saver) Save(fileName, signature string) (string, error) {
	dir := strings.TrimSpace(s.Dir)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create download dir")
	}
	path, err := resolvePath(filepath.Join(dir, SignatureFileName(fileName)), s.Policy)
	if err != nil {
		return "", err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if s.Policy != config.OverwriteForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "create signature file")
	}
	if _, err := f.WriteString(signature); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write signature file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close signature file")
	}
	return path, nil
}

func resolvePath(path string, policy config.OverwritePolicy) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", errors.Wrap(err, "stat output")
	}
	switch policy {
	case config.OverwriteForce:
		return path, nil
	case config.OverwriteRename:
		return nextAvailablePath(path)
	default:
		return "", errors.Errorf("%s already exists", filepath.Base(path))
	}
}

// nextAvailablePath turns doc.txt.signature.txt into doc.txt.signature_1.txt, _2 ...
func nextAvailablePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= 9999; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", errors.Wrap(err, "stat output")
		}
	}
	return "", errors.New("no free file name for signature")
}
