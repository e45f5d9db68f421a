// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

// Package workflow owns the client state: selected files, per-operation busy
// flags, displayed messages and the last signature. Presentation layers call
// the mutators and render Snapshots; they never hold state of their own.
package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"docsign-desktop/pkg/applog"
	"docsign-desktop/pkg/config"
	"docsign-desktop/pkg/ingest"
	"docsign-desktop/pkg/signclient"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service is the remote half of signing and verification.
type Service interface {
	Probe(ctx context.Context) signclient.ConnectionStatus
	Sign(ctx context.Context, document string) (string, error)
	Verify(ctx context.Context, document, signature string) (bool, error)
}

type FileReader interface {
	Read(ctx context.Context, f ingest.File) (string, error)
}

type Clipboard interface {
	Copy(text string) error
}

// Saver stores a signature next to the name of the document it belongs to and
// returns the written path.
type Saver interface {
	Save(fileName, signature string) (string, error)
}

type Options struct {
	Config    config.Config
	Client    Service
	Reader    FileReader
	Clipboard Clipboard
	Saver     Saver
	Clock     clockwork.Clock
	Logger    zerolog.Logger
}

const (
	slotSign = iota
	slotVerify
	slotNotice
	slotCount
)

type slot struct {
	busy  bool
	msg   Message
	gen   uint64
	timer clockwork.Timer
}

type Controller struct {
	client Service
	reader FileReader
	clip   Clipboard
	saver  Saver
	clock  clockwork.Clock
	ttl    time.Duration
	log    zerolog.Logger

	mu         sync.Mutex
	tab        Tab
	conn       signclient.ConnectionStatus
	probeGen   uint64
	signFile   ingest.File
	verifyFile ingest.File
	signature  string
	slots      [slotCount]slot
	result     *SignResult
	subs       map[int]func(Snapshot)
	nextSub    int

	notifyMu sync.Mutex
}

func New(opts Options) (*Controller, error) {
	if opts.Client == nil {
		return nil, errors.New("workflow: signing service client is required")
	}
	c := &Controller{
		client: opts.Client,
		reader: opts.Reader,
		clip:   opts.Clipboard,
		saver:  opts.Saver,
		clock:  opts.Clock,
		ttl:    opts.Config.MessageTTL,
		log:    opts.Logger,
		tab:    SignTab,
		conn:   signclient.Checking,
		subs:   map[int]func(Snapshot){},
	}
	if c.reader == nil {
		c.reader = ingest.NewReader(opts.Config.MaxFileBytes)
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.ttl <= 0 {
		c.ttl = config.DefaultMessageTTL
	}
	return c, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ActiveTab:     c.tab,
		Connection:    c.conn,
		Sign:          OperationState{Busy: c.slots[slotSign].busy, Message: c.slots[slotSign].msg},
		Verify:        OperationState{Busy: c.slots[slotVerify].busy, Message: c.slots[slotVerify].msg},
		Notice:        c.slots[slotNotice].msg,
		SignFile:      c.signFile.Name,
		VerifyFile:    c.verifyFile.Name,
		SignatureText: c.signature,
		CanExport:     c.result != nil,
	}
	if c.result != nil && s.Sign.Message.Outcome == OutcomeSigned {
		r := *c.result
		s.Result = &r
	}
	return s
}

// Subscribe registers fn to receive a Snapshot after every state change.
// fn runs on the goroutine that made the change and must not call mutators.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// notify delivers the latest state. Deliveries are serialized and each one
// reads the state fresh, so the last delivery is never stale.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) SelectTab(t Tab) {
	c.mu.Lock()
	c.tab = t
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) SelectSignFile(f ingest.File) {
	c.mu.Lock()
	c.signFile = f
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) SelectVerifyFile(f ingest.File) {
	c.mu.Lock()
	c.verifyFile = f
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) SetSignature(text string) {
	c.mu.Lock()
	changed := c.signature != text
	c.signature = text
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Probe checks reachability once and records the result.
func (c *Controller) Probe(ctx context.Context) signclient.ConnectionStatus {
	c.mu.Lock()
	c.probeGen++
	gen := c.probeGen
	c.conn = signclient.Checking
	c.mu.Unlock()
	c.notify()

	status := c.client.Probe(ctx)
	c.log.Info().Stringer("status", status).Msg("connectivity probe finished")

	// Only the most recently started probe may set the status.
	c.mu.Lock()
	current := gen == c.probeGen
	if current {
		c.conn = status
	}
	c.mu.Unlock()
	if !current {
		c.log.Debug().Stringer("status", status).Msg("discarding superseded probe result")
		return status
	}
	c.notify()
	return status
}

// Sign reads the selected file and asks the service for a signature.
// Every failure is also posted to the sign message slot.
func (c *Controller) Sign(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.slots[slotSign].busy {
		c.mu.Unlock()
		return OutcomeNone, ErrBusy
	}
	file := c.signFile
	if file.IsZero() {
		err := &ValidationError{Field: "file", Msg: noFileText(OpSign)}
		c.postLocked(slotSign, classifyError(OpSign, err))
		c.mu.Unlock()
		c.notify()
		return OutcomeValidation, err
	}
	c.beginLocked(slotSign)
	c.mu.Unlock()
	c.notify()
	defer c.release(slotSign)

	log := c.log.With().Str("op", "sign").Str("file", file.Name).Logger()
	log.Info().Msg("signing document")

	text, err := c.reader.Read(ctx, file)
	var token string
	if err == nil {
		log.Debug().Str("document", applog.SecretMeta("doc", text)).Msg("document loaded")
		token, err = c.client.Sign(ctx, text)
	}
	if err != nil {
		msg := classifyError(OpSign, err)
		log.Warn().Err(err).Stringer("outcome", msg.Outcome).Msg("sign failed")
		c.settle(slotSign, msg, nil)
		return msg.Outcome, err
	}

	log.Info().Str("signature", applog.SecretMeta("sig", token)).Msg("document signed")
	c.settle(slotSign, classifySigned(file.Name, token), &SignResult{SignatureToken: token, SourceFileName: file.Name})
	return OutcomeSigned, nil
}

// Verify checks the selected file against the entered signature. An invalid
// signature is a normal result: (OutcomeInvalid, nil).
func (c *Controller) Verify(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.slots[slotVerify].busy {
		c.mu.Unlock()
		return OutcomeNone, ErrBusy
	}
	file := c.verifyFile
	signature := strings.TrimSpace(c.signature)
	var verr *ValidationError
	switch {
	case file.IsZero():
		verr = &ValidationError{Field: "file", Msg: noFileText(OpVerify)}
	case signature == "":
		verr = &ValidationError{Field: "signature", Msg: "Please enter a signature!"}
	}
	if verr != nil {
		c.postLocked(slotVerify, classifyError(OpVerify, verr))
		c.mu.Unlock()
		c.notify()
		return OutcomeValidation, verr
	}
	c.beginLocked(slotVerify)
	c.mu.Unlock()
	c.notify()
	defer c.release(slotVerify)

	log := c.log.With().Str("op", "verify").Str("file", file.Name).Logger()
	log.Info().Str("signature", applog.SecretMeta("sig", signature)).Msg("verifying document")

	text, err := c.reader.Read(ctx, file)
	var valid bool
	if err == nil {
		valid, err = c.client.Verify(ctx, text, signature)
	}
	if err != nil {
		msg := classifyError(OpVerify, err)
		log.Warn().Err(err).Stringer("outcome", msg.Outcome).Msg("verify failed")
		c.settle(slotVerify, msg, nil)
		return msg.Outcome, err
	}

	msg := classifyVerdict(file.Name, valid)
	log.Info().Bool("valid", valid).Msg("verification finished")
	c.settle(slotVerify, msg, nil)
	return msg.Outcome, nil
}

// CopySignature puts the last signature on the clipboard.
func (c *Controller) CopySignature() error {
	r, err := c.exportable("copy")
	if err != nil {
		return err
	}
	if c.clip == nil {
		err = errors.New("clipboard not available")
	} else {
		err = c.clip.Copy(r.SignatureToken)
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("copy signature failed")
		c.postNotice(Message{Kind: KindError, Outcome: OutcomeLocalError, Text: "Could not copy signature: " + err.Error()})
		return errors.Wrap(err, "copy signature")
	}
	c.postNotice(Message{Kind: KindSuccess, Outcome: OutcomeCopied, Text: "Signature copied to clipboard!"})
	return nil
}

// DownloadSignature writes the last signature to <file>.signature.txt and
// returns the path written.
func (c *Controller) DownloadSignature() (string, error) {
	r, err := c.exportable("download")
	if err != nil {
		return "", err
	}
	if c.saver == nil {
		err = errors.New("download not available")
	}
	var path string
	if err == nil {
		path, err = c.saver.Save(r.SourceFileName, r.SignatureToken)
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("download signature failed")
		c.postNotice(Message{Kind: KindError, Outcome: OutcomeLocalError, Text: "Could not save signature: " + err.Error()})
		return "", errors.Wrap(err, "download signature")
	}
	c.log.Info().Str("path", path).Msg("signature saved")
	c.postNotice(Message{Kind: KindSuccess, Outcome: OutcomeSaved, Text: "Signature saved to " + path})
	return path, nil
}

func (c *Controller) exportable(action string) (SignResult, error) {
	c.mu.Lock()
	r := c.result
	c.mu.Unlock()
	if r == nil {
		c.postNotice(Message{Kind: KindError, Outcome: OutcomeValidation, Text: "Sign a document before trying to " + action + " its signature."})
		return SignResult{}, ErrNoSignature
	}
	return *r, nil
}

// Close stops pending auto-clear timers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if t := c.slots[i].timer; t != nil {
			t.Stop()
			c.slots[i].timer = nil
		}
	}
}

func (c *Controller) postNotice(m Message) {
	c.mu.Lock()
	c.postLocked(slotNotice, m)
	c.mu.Unlock()
	c.notify()
}

// beginLocked marks the slot busy and clears its message. Bumping the
// generation invalidates any pending clear timer.
func (c *Controller) beginLocked(id int) {
	s := &c.slots[id]
	s.busy = true
	s.gen++
	s.msg = Message{Generation: s.gen}
	c.stopTimerLocked(s)
}

// postLocked replaces the slot message and schedules its expiry.
func (c *Controller) postLocked(id int, m Message) {
	s := &c.slots[id]
	s.gen++
	m.Generation = s.gen
	s.msg = m
	c.stopTimerLocked(s)

	gen := s.gen
	s.timer = c.clock.AfterFunc(c.ttl, func() { c.expire(id, gen) })
}

func (c *Controller) stopTimerLocked(s *slot) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire clears the slot only if it still holds the message the timer was
// scheduled for.
func (c *Controller) expire(id int, gen uint64) {
	c.mu.Lock()
	s := &c.slots[id]
	if s.gen != gen || s.msg.Empty() {
		c.mu.Unlock()
		return
	}
	s.msg = Message{Generation: gen}
	s.timer = nil
	c.mu.Unlock()
	c.notify()
}

// settle ends an operation: clears busy, posts the message and, for a
// successful sign, replaces the retained result. One critical section, so no
// snapshot pairs a new message with an old result.
func (c *Controller) settle(id int, m Message, result *SignResult) {
	c.mu.Lock()
	c.slots[id].busy = false
	if result != nil {
		c.result = result
	}
	c.postLocked(id, m)
	c.mu.Unlock()
	c.notify()
}

// release clears busy if settle was never reached.
func (c *Controller) release(id int) {
	c.mu.Lock()
	s := &c.slots[id]
	if !s.busy {
		c.mu.Unlock()
		return
	}
	s.busy = false
	c.mu.Unlock()
	c.notify()
}
