// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package applog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

func MaskID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	if len(v) <= 10 {
		return v
	}
	return v[:6] + "..." + v[len(v)-4:]
}

func Digest12(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:12]
}

// SecretMeta describes a payload (document text, signature token) without revealing it.
func SecretMeta(label string, raw string) string {
	return fmt.Sprintf("%s[len=%d sha12=%s]", label, len(raw), Digest12(raw))
}

// SanitizeURL drops credentials and the query string from a service URL.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return truncate(raw, 120)
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "[REDACTED]"
	}
	return truncate(u.String(), 220)
}

func SanitizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	redactNext := false
	for _, a := range args {
		if redactNext {
			out = append(out, "[REDACTED]")
			redactNext = false
			continue
		}
		la := strings.ToLower(a)
		if strings.HasPrefix(la, "--signature=") {
			out = append(out, "--signature=[REDACTED]")
			continue
		}
		if la == "--signature" {
			redactNext = true
		}
		out = append(out, truncate(a, 120))
	}
	return out
}

func truncate(v string, max int) string {
	if max < 8 {
		max = 8
	}
	r := []rune(v)
	if len(r) <= max {
		return v
	}
	return string(r[:max]) + "...(trunc)"
}
