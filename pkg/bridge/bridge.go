// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

// Package bridge exposes the workflow controller to a local browser page over
// a WebSocket. The page sends actions and renders the pushed state.
package bridge

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"docsign-desktop/pkg/ingest"
	"docsign-desktop/pkg/signclient"
	"docsign-desktop/pkg/workflow"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
	outQueueSize   = 32
)

// Driver is the part of the controller the bridge drives.
type Driver interface {
	Snapshot() workflow.Snapshot
	Subscribe(fn func(workflow.Snapshot)) (cancel func())
	SelectTab(t workflow.Tab)
	SelectSignFile(f ingest.File)
	SelectVerifyFile(f ingest.File)
	SetSignature(text string)
	Probe(ctx context.Context) signclient.ConnectionStatus
	Sign(ctx context.Context) (workflow.Outcome, error)
	Verify(ctx context.Context) (workflow.Outcome, error)
	CopySignature() error
	DownloadSignature() (string, error)
}

// Request is a client action.
type Request struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Tab    string `json:"tab,omitempty"`
	Path   string `json:"path,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Reply is what the server sends: pushed state, or the result of an action.
type Reply struct {
	Type    string             `json:"type"`
	ID      string             `json:"id,omitempty"`
	Action  string             `json:"action,omitempty"`
	Outcome string             `json:"outcome,omitempty"`
	Path    string             `json:"path,omitempty"`
	Error   string             `json:"error,omitempty"`
	State   *workflow.Snapshot `json:"state,omitempty"`
}

type Server struct {
	ctrl     Driver
	log      zerolog.Logger
	upgrader websocket.Upgrader

	// ops run on this context so a page reload does not abort a signature.
	opCtx    context.Context
	opCancel context.CancelFunc

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(ctrl Driver, log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		ctrl:     ctrl,
		log:      log,
		opCtx:    ctx,
		opCancel: cancel,
		clients:  map[*client]struct{}{},
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: isLocalOrigin}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.Close()
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "bridge server")
	}
	return nil
}

// Close drops every connected client and cancels running operations.
func (s *Server) Close() {
	s.opCancel()
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemoteAddr(r.RemoteAddr) {
		http.Error(w, "external requests are not allowed", http.StatusForbidden)
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected non-loopback client")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := newClient(conn)
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	log := s.log.With().Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("bridge client connected")

	unsubscribe := s.ctrl.Subscribe(c.pushState)
	go c.writeLoop(log)
	c.pushState(s.ctrl.Snapshot())

	defer func() {
		unsubscribe()
		c.close()
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		log.Info().Msg("bridge client disconnected")
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
			case isJSONError(err):
				c.send(Reply{Type: "error", Error: "invalid request: " + err.Error()})
				continue
			default:
				log.Debug().Err(err).Msg("bridge read ended")
			}
			return
		}
		s.dispatch(c, req)
	}
}

func (s *Server) dispatch(c *client, req Request) {
	ack := func(outcome workflow.Outcome, path string, err error) {
		r := Reply{Type: "ack", ID: req.ID, Action: req.Action, Path: path}
		if outcome != workflow.OutcomeNone {
			r.Outcome = outcome.String()
		}
		if err != nil {
			r.Type = "error"
			r.Error = err.Error()
		}
		c.send(r)
	}

	switch req.Action {
	case "selectTab":
		var t workflow.Tab
		if err := t.UnmarshalText([]byte(req.Tab)); err != nil {
			ack(workflow.OutcomeNone, "", err)
			return
		}
		s.ctrl.SelectTab(t)
		ack(workflow.OutcomeNone, "", nil)
	case "selectFile":
		f := ingest.FromPath(req.Path)
		switch strings.ToLower(req.Tab) {
		case "verify", "verifytab":
			s.ctrl.SelectVerifyFile(f)
		case "", "sign", "signtab":
			s.ctrl.SelectSignFile(f)
		default:
			ack(workflow.OutcomeNone, "", errors.Errorf("unknown tab %q", req.Tab))
			return
		}
		ack(workflow.OutcomeNone, "", nil)
	case "setSignature":
		s.ctrl.SetSignature(req.Text)
		ack(workflow.OutcomeNone, "", nil)
	case "sign":
		go func() {
			outcome, err := s.ctrl.Sign(s.opCtx)
			ack(outcome, "", err)
		}()
	case "verify":
		go func() {
			outcome, err := s.ctrl.Verify(s.opCtx)
			ack(outcome, "", err)
		}()
	case "probe":
		go func() {
			status := s.ctrl.Probe(s.opCtx)
			c.send(Reply{Type: "ack", ID: req.ID, Action: req.Action, Outcome: status.String()})
		}()
	case "copy":
		ack(workflow.OutcomeNone, "", s.ctrl.CopySignature())
	case "download":
		path, err := s.ctrl.DownloadSignature()
		ack(workflow.OutcomeNone, path, err)
	default:
		ack(workflow.OutcomeNone, "", errors.Errorf("unknown action %q", req.Action))
	}
}

type client struct {
	conn  *websocket.Conn
	out   chan Reply
	state chan workflow.Snapshot
	done  chan struct{}
	once  sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:  conn,
		out:   make(chan Reply, outQueueSize),
		state: make(chan workflow.Snapshot, 1),
		done:  make(chan struct{}),
	}
}

// pushState keeps only the newest snapshot queued.
func (c *client) pushState(snap workflow.Snapshot) {
	for {
		select {
		case <-c.done:
			return
		case c.state <- snap:
			return
		default:
		}
		select {
		case <-c.state:
		default:
		}
	}
}

func (c *client) send(r Reply) {
	select {
	case <-c.done:
	case c.out <- r:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop(log zerolog.Logger) {
	defer c.close()
	for {
		var msg Reply
		select {
		case <-c.done:
			return
		case snap := <-c.state:
			msg = Reply{Type: "state", State: &snap}
		case msg = <-c.out:
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Msg("bridge write failed")
			return
		}
	}
}

func isJSONError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func isLoopbackRemoteAddr(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(host), "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// isLocalOrigin accepts pages served from this machine and non-browser clients.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
