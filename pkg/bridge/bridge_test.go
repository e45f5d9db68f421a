// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada

package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docsign-desktop/pkg/config"
	"docsign-desktop/pkg/signclient"
	"docsign-desktop/pkg/workflow"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctrl *workflow.Controller
	conn *websocket.Conn
	url  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sign":
			_, _ = io.WriteString(w, "c2lnbmF0dXJl")
		case "/api/verify":
			_, _ = io.WriteString(w, "true")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.Close)

	cfg := config.Default()
	ctrl, err := workflow.New(workflow.Options{
		Config: cfg,
		Client: signclient.New(api.URL+"/api", signclient.WithHTTPClient(api.Client())),
		Clock:  clockwork.NewFakeClock(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	srv := New(ctrl, zerolog.Nop())
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &fixture{ctrl: ctrl, conn: conn, url: hs.URL}
}

// next reads replies until match accepts one.
func (f *fixture) next(t *testing.T, match func(Reply) bool) Reply {
	t.Helper()
	require.NoError(t, f.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var r Reply
		require.NoError(t, f.conn.ReadJSON(&r))
		if match(r) {
			return r
		}
	}
}

func isAck(action string) func(Reply) bool {
	return func(r Reply) bool { return r.Type != "state" && r.Action == action }
}

func TestInitialStateIsPushed(t *testing.T) {
	f := newFixture(t)
	r := f.next(t, func(r Reply) bool { return r.Type == "state" })
	require.NotNil(t, r.State)
	assert.Equal(t, workflow.SignTab, r.State.ActiveTab)
	assert.Equal(t, signclient.Checking, r.State.Connection)
}

func TestSignThroughBridge(t *testing.T) {
	f := newFixture(t)
	p := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o600))

	require.NoError(t, f.conn.WriteJSON(Request{Action: "selectFile", Tab: "sign", Path: p}))
	assert.Empty(t, f.next(t, isAck("selectFile")).Error)

	require.NoError(t, f.conn.WriteJSON(Request{ID: "1", Action: "sign"}))
	var ack, signed *Reply
	require.NoError(t, f.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for ack == nil || signed == nil {
		var r Reply
		require.NoError(t, f.conn.ReadJSON(&r))
		switch {
		case r.Type == "state" && r.State.Result != nil:
			signed = &r
		case isAck("sign")(r):
			ack = &r
		}
	}
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, "1", ack.ID)
	assert.Equal(t, "signed", ack.Outcome)

	snap := f.ctrl.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, "c2lnbmF0dXJl", snap.Result.SignatureToken)
	assert.Equal(t, "doc.txt", snap.Result.SourceFileName)
	assert.Contains(t, signed.State.Sign.Message.Text, "c2lnbmF0dXJl")
}

func TestVerifyValidationThroughBridge(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.WriteJSON(Request{Action: "verify"}))
	ack := f.next(t, isAck("verify"))
	assert.Equal(t, "error", ack.Type)
	assert.Equal(t, "validation", ack.Outcome)
	assert.Equal(t, "Please select a file to verify!", ack.Error)
}

func TestSelectTabAndSignature(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.WriteJSON(Request{Action: "selectTab", Tab: "verifyTab"}))
	f.next(t, isAck("selectTab"))
	require.NoError(t, f.conn.WriteJSON(Request{Action: "setSignature", Text: "abc"}))
	f.next(t, isAck("setSignature"))

	s := f.ctrl.Snapshot()
	assert.Equal(t, workflow.VerifyTab, s.ActiveTab)
	assert.Equal(t, "abc", s.SignatureText)

	require.NoError(t, f.conn.WriteJSON(Request{Action: "selectTab", Tab: "nope"}))
	assert.Equal(t, "error", f.next(t, isAck("selectTab")).Type)
}

func TestProbeThroughBridge(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.WriteJSON(Request{Action: "probe"}))
	ack := f.next(t, isAck("probe"))
	assert.Equal(t, "Connected", ack.Outcome)
}

func TestUnknownActionAndBadJSON(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.WriteJSON(Request{Action: "launch"}))
	ack := f.next(t, isAck("launch"))
	assert.Equal(t, "error", ack.Type)

	require.NoError(t, f.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	r := f.next(t, func(r Reply) bool { return r.Type == "error" })
	assert.Contains(t, r.Error, "invalid request")
}

func TestCopyWithoutSignature(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.WriteJSON(Request{Action: "copy"}))
	ack := f.next(t, isAck("copy"))
	assert.Equal(t, "error", ack.Type)
	assert.Contains(t, ack.Error, "no signature")
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(b))
}

func TestOriginAndRemoteChecks(t *testing.T) {
	assert.True(t, isLoopbackRemoteAddr("127.0.0.1:5000"))
	assert.True(t, isLoopbackRemoteAddr("[::1]:5000"))
	assert.False(t, isLoopbackRemoteAddr("10.0.0.2:5000"))
	assert.False(t, isLoopbackRemoteAddr("garbage"))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, isLocalOrigin(req))
	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, isLocalOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, isLocalOrigin(req))
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ctrl, err := workflow.New(workflow.Options{Config: config.Default(), Client: signclient.New("http://127.0.0.1:1"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(ctrl, zerolog.Nop()).ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
}
