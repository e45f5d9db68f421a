// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"docsign-desktop/pkg/clipboard"
	"docsign-desktop/pkg/config"
	"docsign-desktop/pkg/signclient"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService is an httptest signing service mounted under /api.
type mockService struct {
	signStatus   int
	signBody     string
	verifyStatus int
	verifyBody   string
	requests     atomic.Int32
}

func (m *mockService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sign", func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(m.signStatus)
		_, _ = io.WriteString(w, m.signBody)
	})
	mux.HandleFunc("/api/verify", func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		var req struct {
			DocumentContent string `json:"documentContent"`
			Signature       string `json:"signature"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(m.verifyStatus)
		_, _ = io.WriteString(w, m.verifyBody)
	})
	return mux
}

type harness struct {
	ctrl     *Controller
	mock     *mockService
	download string
}

func newHarness(t *testing.T, mock *mockService) *harness {
	t.Helper()
	srv := httptest.NewServer(mock.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL + "/api"
	cfg.DownloadDir = t.TempDir()
	client := signclient.New(cfg.APIBaseURL, signclient.WithHTTPClient(srv.Client()), signclient.WithTimeouts(2*time.Second, time.Second))

	ctrl, err := New(Options{
		Config:    cfg,
		Client:    client,
		Clipboard: &clipboard.Adapter{Fallback: &memWriter{}},
		Saver:     clipboard.NewSaver(cfg.DownloadDir, cfg.Overwrite),
		Clock:     clockwork.NewFakeClock(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	return &harness{ctrl: ctrl, mock: mock, download: cfg.DownloadDir}
}

type memWriter struct{ text string }

func (m *memWriter) WriteText(text string) error {
	m.text = text
	return nil
}

func TestScenarioSignAndDownload(t *testing.T) {
	h := newHarness(t, &mockService{signStatus: http.StatusOK, signBody: "c2lnbmF0dXJl"})
	h.ctrl.SelectSignFile(writeDoc(t, "doc.txt", "hello"))

	outcome, err := h.ctrl.Sign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSigned, outcome)

	msg := h.ctrl.Snapshot().Sign.Message
	assert.Equal(t, KindSuccess, msg.Kind)
	assert.Contains(t, msg.Text, "doc.txt")
	assert.Contains(t, msg.Text, "c2lnbmF0dXJl")

	path, err := h.ctrl.DownloadSignature()
	require.NoError(t, err)
	assert.Equal(t, "doc.txt.signature.txt", filepath.Base(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "c2lnbmF0dXJl", string(b))
}

func TestScenarioVerifyValid(t *testing.T) {
	h := newHarness(t, &mockService{verifyStatus: http.StatusOK, verifyBody: "true"})
	h.ctrl.SelectVerifyFile(writeDoc(t, "doc.txt", "hello"))
	h.ctrl.SetSignature("abc")

	outcome, err := h.ctrl.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
	msg := h.ctrl.Snapshot().Verify.Message
	assert.Equal(t, KindSuccess, msg.Kind)
	assert.Contains(t, msg.Text, "VALID")
	assert.NotContains(t, msg.Text, "INVALID")
}

func TestScenarioVerifyInvalid(t *testing.T) {
	h := newHarness(t, &mockService{verifyStatus: http.StatusOK, verifyBody: "false"})
	h.ctrl.SelectVerifyFile(writeDoc(t, "doc.txt", "hello"))
	h.ctrl.SetSignature("abc")

	outcome, err := h.ctrl.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, outcome)
	msg := h.ctrl.Snapshot().Verify.Message
	assert.Equal(t, KindError, msg.Kind)
	assert.Contains(t, msg.Text, "INVALID")
}

func TestScenarioVerifyServerError(t *testing.T) {
	h := newHarness(t, &mockService{verifyStatus: http.StatusInternalServerError, verifyBody: "bad request"})
	h.ctrl.SelectVerifyFile(writeDoc(t, "doc.txt", "hello"))
	h.ctrl.SetSignature("abc")

	outcome, err := h.ctrl.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeRemote, outcome)
	s := h.ctrl.Snapshot()
	assert.Equal(t, KindError, s.Verify.Message.Kind)
	assert.Contains(t, s.Verify.Message.Text, "bad request")
	assert.Contains(t, s.Verify.Message.Text, "500")
	assert.False(t, s.Verify.Busy)
}

func TestVerifyNullIsMalformedNotInvalid(t *testing.T) {
	h := newHarness(t, &mockService{verifyStatus: http.StatusOK, verifyBody: "null"})
	h.ctrl.SelectVerifyFile(writeDoc(t, "doc.txt", "hello"))
	h.ctrl.SetSignature("abc")

	outcome, err := h.ctrl.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeMalformed, outcome)
	assert.Contains(t, h.ctrl.Snapshot().Verify.Message.Text, "Verification Error")
}

func TestSignOversizedTokenIsNeverKept(t *testing.T) {
	h := newHarness(t, &mockService{signStatus: http.StatusOK, signBody: strings.Repeat("A", 2<<20)})
	h.ctrl.SelectSignFile(writeDoc(t, "doc.txt", "hello"))

	outcome, err := h.ctrl.Sign(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeMalformed, outcome)

	s := h.ctrl.Snapshot()
	assert.Equal(t, KindError, s.Sign.Message.Kind)
	assert.Contains(t, s.Sign.Message.Text, "Error signing document")
	assert.Nil(t, s.Result)
	assert.False(t, s.CanExport)
	assert.False(t, s.Sign.Busy)
}

func TestSignAnySuccessStatusShowsBodyVerbatim(t *testing.T) {
	for _, status := range []int{200, 201, 202, 299} {
		body := fmt.Sprintf("tok-%d==", status)
		h := newHarness(t, &mockService{signStatus: status, signBody: body})
		h.ctrl.SelectSignFile(writeDoc(t, "doc.txt", "hello"))

		_, err := h.ctrl.Sign(context.Background())
		require.NoError(t, err, "status %d", status)
		s := h.ctrl.Snapshot()
		assert.Equal(t, KindSuccess, s.Sign.Message.Kind)
		require.NotNil(t, s.Result)
		assert.Equal(t, body, s.Result.SignatureToken)
	}
}

func TestFailureStatusesClearBusy(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 409, 500, 502, 503} {
		h := newHarness(t, &mockService{
			signStatus: status, signBody: "nope",
			verifyStatus: status, verifyBody: "nope",
		})
		h.ctrl.SelectSignFile(writeDoc(t, "a.txt", "a"))
		h.ctrl.SelectVerifyFile(writeDoc(t, "b.txt", "b"))
		h.ctrl.SetSignature("sig")

		outcome, err := h.ctrl.Sign(context.Background())
		require.Error(t, err)
		assert.Equal(t, OutcomeRemote, outcome)
		outcome, err = h.ctrl.Verify(context.Background())
		require.Error(t, err)
		assert.Equal(t, OutcomeRemote, outcome)

		s := h.ctrl.Snapshot()
		assert.Equal(t, KindError, s.Sign.Message.Kind, "status %d", status)
		assert.Equal(t, KindError, s.Verify.Message.Kind, "status %d", status)
		assert.False(t, s.Sign.Busy)
		assert.False(t, s.Verify.Busy)
		assert.Nil(t, s.Result)
	}
}

func TestSignEmptyErrorBodyShowsStatus(t *testing.T) {
	h := newHarness(t, &mockService{signStatus: http.StatusServiceUnavailable})
	h.ctrl.SelectSignFile(writeDoc(t, "doc.txt", "hello"))

	_, err := h.ctrl.Sign(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Error signing document: Server error: 503", h.ctrl.Snapshot().Sign.Message.Text)
}

func TestValidationSendsNoRequests(t *testing.T) {
	h := newHarness(t, &mockService{signStatus: 200, verifyStatus: 200, verifyBody: "true"})

	_, _ = h.ctrl.Sign(context.Background())
	h.ctrl.SelectVerifyFile(writeDoc(t, "doc.txt", "hello"))
	h.ctrl.SetSignature("   ")
	_, _ = h.ctrl.Verify(context.Background())

	assert.Zero(t, h.mock.requests.Load())
}

func TestProbeThroughController(t *testing.T) {
	for _, tc := range []struct {
		status int
		want   signclient.ConnectionStatus
	}{
		{http.StatusBadRequest, signclient.Connected},
		{http.StatusOK, signclient.Connected},
		{http.StatusInternalServerError, signclient.Disconnected},
	} {
		h := newHarness(t, &mockService{signStatus: tc.status})
		assert.Equal(t, tc.want, h.ctrl.Probe(context.Background()), "status %d", tc.status)
		assert.Equal(t, tc.want, h.ctrl.Snapshot().Connection)
	}
}

func TestUnreachableServiceIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	c, err := New(Options{
		Config: config.Default(),
		Client: signclient.New(base, signclient.WithTimeouts(time.Second, time.Second)),
		Clock:  clockwork.NewFakeClock(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, signclient.Disconnected, c.Probe(context.Background()))

	c.SelectSignFile(writeDoc(t, "doc.txt", "hello"))
	outcome, err := c.Sign(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeTransport, outcome)
	assert.Contains(t, c.Snapshot().Sign.Message.Text, "Network Error: Cannot connect to signing server.")
}

func TestHungServiceTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := New(Options{
		Config: config.Default(),
		Client: signclient.New(srv.URL, signclient.WithHTTPClient(srv.Client()), signclient.WithTimeouts(50*time.Millisecond, 50*time.Millisecond)),
		Clock:  clockwork.NewFakeClock(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	defer c.Close()
	c.SelectSignFile(writeDoc(t, "doc.txt", "hello"))

	outcome, err := c.Sign(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeTransport, outcome)
	assert.Contains(t, c.Snapshot().Sign.Message.Text, "timed out")
	assert.False(t, c.Snapshot().Sign.Busy)
}

func TestCopyFallsBackToToolkitClipboard(t *testing.T) {
	h := newHarness(t, &mockService{signStatus: 200, signBody: "tok"})
	h.ctrl.SelectSignFile(writeDoc(t, "doc.txt", "hello"))
	_, err := h.ctrl.Sign(context.Background())
	require.NoError(t, err)

	fallback := &memWriter{}
	h.ctrl.clip = &clipboard.Adapter{Primary: clipboard.WriterFunc(func(string) error { return clipboard.ErrUnavailable }), Fallback: fallback}
	require.NoError(t, h.ctrl.CopySignature())
	assert.Equal(t, "tok", fallback.text)
}
