// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package signclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// TransportError means the signing service could not be reached at all
// (DNS, connection refused, TLS, timeout).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: cannot reach signing service: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request was abandoned because it took too long.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// RemoteError means the service answered with a non-2xx status.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: signing service returned %s", e.Op, e.Detail())
}

// Detail is the service-provided message, or the status when the body is empty.
func (e *RemoteError) Detail() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("Server error: %d", e.StatusCode)
	}
	return body
}

// MalformedResponseError means a 2xx response whose body is not what the
// operation expects (e.g. verify returning something other than a JSON boolean).
type MalformedResponseError struct {
	Op   string
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response %q: %v", e.Op, truncateBody(e.Body), e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func truncateBody(v string) string {
	const max = 80
	r := []rune(v)
	if len(r) <= max {
		return v
	}
	return string(r[:max]) + "..."
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
