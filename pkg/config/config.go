// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

// Package config holds the settings injected into the signing workflow.
// Nothing here is read from package state: callers build a Config and pass it down.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultAPIBaseURL     = "http://localhost:8080/api"
	DefaultRequestTimeout = 30 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
	DefaultMessageTTL     = 12 * time.Second
	DefaultMaxFileBytes   = 16 << 20
	DefaultBridgeAddr     = "127.0.0.1:63118"
)

// OverwritePolicy decides what happens when a downloaded signature file already exists.
type OverwritePolicy int

const (
	OverwriteRename OverwritePolicy = iota
	OverwriteFail
	OverwriteForce
)

func (p OverwritePolicy) String() string {
	switch p {
	case OverwriteFail:
		return "fail"
	case OverwriteForce:
		return "force"
	default:
		return "rename"
	}
}

// ParseOverwritePolicy accepts fail|rename|force (case-insensitive).
func ParseOverwritePolicy(v string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "rename":
		return OverwriteRename, nil
	case "fail":
		return OverwriteFail, nil
	case "force":
		return OverwriteForce, nil
	default:
		return OverwriteRename, errors.Errorf("unknown overwrite policy %q (use fail|rename|force)", v)
	}
}

type Config struct {
	// APIBaseURL is the signing service base, e.g. http://localhost:8080/api.
	APIBaseURL     string
	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
	// MessageTTL is how long a status message stays visible. Same for success and error.
	MessageTTL   time.Duration
	MaxFileBytes int64
	DownloadDir  string
	Overwrite    OverwritePolicy
	BridgeAddr   string
}

func Default() Config {
	return Config{
		APIBaseURL:     DefaultAPIBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		MessageTTL:     DefaultMessageTTL,
		MaxFileBytes:   DefaultMaxFileBytes,
		DownloadDir:    defaultDownloadDir(),
		Overwrite:      OverwriteRename,
		BridgeAddr:     DefaultBridgeAddr,
	}
}

// FromEnv overlays DOCSIGN_* variables on top of Default(). lookup is
// os.LookupEnv in production and a map in tests.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("DOCSIGN_API_BASE_URL"); ok {
		cfg.APIBaseURL = v
	}
	var err error
	if v, ok := get("DOCSIGN_REQUEST_TIMEOUT"); ok {
		if cfg.RequestTimeout, err = time.ParseDuration(v); err != nil {
			return cfg, errors.Wrap(err, "DOCSIGN_REQUEST_TIMEOUT")
		}
	}
	if v, ok := get("DOCSIGN_PROBE_TIMEOUT"); ok {
		if cfg.ProbeTimeout, err = time.ParseDuration(v); err != nil {
			return cfg, errors.Wrap(err, "DOCSIGN_PROBE_TIMEOUT")
		}
	}
	if v, ok := get("DOCSIGN_MESSAGE_TTL"); ok {
		if cfg.MessageTTL, err = time.ParseDuration(v); err != nil {
			return cfg, errors.Wrap(err, "DOCSIGN_MESSAGE_TTL")
		}
	}
	if v, ok := get("DOCSIGN_MAX_FILE_MB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, errors.Wrap(err, "DOCSIGN_MAX_FILE_MB")
		}
		cfg.MaxFileBytes = n << 20
	}
	if v, ok := get("DOCSIGN_DOWNLOAD_DIR"); ok {
		cfg.DownloadDir = v
	}
	if v, ok := get("DOCSIGN_OVERWRITE"); ok {
		if cfg.Overwrite, err = ParseOverwritePolicy(v); err != nil {
			return cfg, err
		}
	}
	if v, ok := get("DOCSIGN_BRIDGE_ADDR"); ok {
		cfg.BridgeAddr = v
	}
	return cfg, nil
}

// Validate normalizes the base URL and rejects unusable values.
func (c *Config) Validate() error {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return errors.Wrapf(err, "invalid API base URL %q", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("API base URL must be http or https, got %q", c.APIBaseURL)
	}
	if u.Host == "" {
		return errors.Errorf("API base URL has no host: %q", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.MessageTTL <= 0 {
		return errors.New("message TTL must be positive")
	}
	if c.MaxFileBytes <= 0 {
		return errors.New("max file size must be positive")
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		c.DownloadDir = "."
	}
	return nil
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	dl := filepath.Join(home, "Downloads")
	if st, err := os.Stat(dl); err == nil && st.IsDir() {
		return dl
	}
	return home
}
