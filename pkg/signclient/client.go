// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

// Package signclient talks to the remote signing service:
//
//	POST {base}/sign    text/plain document      -> 2xx opaque signature token
//	POST {base}/verify  {documentContent,signature} -> 2xx JSON boolean
//
// The client never interprets signature tokens.
package signclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"docsign-desktop/pkg/applog"
	"docsign-desktop/pkg/version"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// ProbePayload is the sentinel body used to check reachability.
	ProbePayload = "connection-test"

	maxResponseBytes = 1 << 20
	oversizePreview  = 256
	requestIDHeader  = "X-Request-Id"
)

type ConnectionStatus int

const (
	Checking ConnectionStatus = iota
	Connected
	Disconnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	default:
		return "Checking..."
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Connected":
		*s = Connected
	case "Disconnected":
		*s = Disconnected
	case "Checking...", "":
		*s = Checking
	default:
		return errors.Errorf("unknown connection status %q", string(b))
	}
	return nil
}

type verifyRequest struct {
	DocumentContent string `json:"documentContent"`
	Signature       string `json:"signature"`
}

type Client struct {
	baseURL        string
	http           *http.Client
	requestTimeout time.Duration
	probeTimeout   time.Duration
	log            zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport, e.g. an httptest server client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeouts(request, probe time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if probe > 0 {
			c.probeTimeout = probe
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:           &http.Client{},
		requestTimeout: 30 * time.Second,
		probeTimeout:   5 * time.Second,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Sign sends the raw document text and returns the service's signature token verbatim.
func (c *Client) Sign(ctx context.Context, document string) (string, error) {
	resp, body, err := c.post(ctx, "sign", c.requestTimeout, "text/plain; charset=utf-8", []byte(document))
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.StatusCode) {
		return "", &RemoteError{Op: "sign", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

// Verify sends the (document, signature) pair. A false result is a normal
// answer, not an error.
func (c *Client) Verify(ctx context.Context, document, signature string) (bool, error) {
	payload, err := json.Marshal(verifyRequest{DocumentContent: document, Signature: signature})
	if err != nil {
		return false, errors.Wrap(err, "encode verify request")
	}
	resp, body, err := c.post(ctx, "verify", c.requestTimeout, "application/json", payload)
	if err != nil {
		return false, err
	}
	if !isSuccess(resp.StatusCode) {
		return false, &RemoteError{Op: "verify", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var valid *bool
	if err := json.Unmarshal(bytes.TrimSpace(body), &valid); err != nil {
		return false, &MalformedResponseError{Op: "verify", Body: string(body), Err: err}
	}
	if valid == nil {
		return false, &MalformedResponseError{Op: "verify", Body: string(body), Err: errors.New("expected a JSON boolean, got null")}
	}
	return *valid, nil
}

// Probe checks once whether the service is up. A 400 still counts as
// reachable: the service parsed and rejected the sentinel payload.
func (c *Client) Probe(ctx context.Context) ConnectionStatus {
	resp, _, err := c.post(ctx, "sign", c.probeTimeout, "text/plain; charset=utf-8", []byte(ProbePayload))
	var malformed *MalformedResponseError
	if err != nil && !(resp != nil && errors.As(err, &malformed)) {
		c.log.Warn().Err(err).Msg("connectivity probe failed")
		return Disconnected
	}
	if isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusBadRequest {
		return Connected
	}
	c.log.Warn().Int("status", resp.StatusCode).Msg("connectivity probe got unexpected status")
	return Disconnected
}

func (c *Client) post(ctx context.Context, endpoint string, timeout time.Duration, contentType string, payload []byte) (*http.Response, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "build %s request", endpoint)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(requestIDHeader, reqID)

	log := c.log.With().Str("op", endpoint).Str("request_id", reqID).Logger()
	log.Debug().
		Str("url", applog.SanitizeURL(url)).
		Str("payload", applog.SecretMeta("body", string(payload))).
		Msg("sending request")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, nil, &TransportError{Op: endpoint, Err: errors.Wrap(err, "read response body")}
	}
	log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("response", applog.SecretMeta("body", string(body))).
		Msg("response received")

	if len(body) > maxResponseBytes {
		body = body[:maxResponseBytes]
		// A cut error body is still a usable detail; a cut token is not.
		if isSuccess(resp.StatusCode) {
			log.Warn().Int("limit", maxResponseBytes).Msg("response body over limit")
			return resp, nil, &MalformedResponseError{
				Op:   endpoint,
				Body: string(body[:oversizePreview]),
				Err:  errors.Errorf("response exceeds %d bytes", maxResponseBytes),
			}
		}
	}
	return resp, body, nil
}
