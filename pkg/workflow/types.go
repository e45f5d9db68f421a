// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package workflow

import (
	"fmt"

	"docsign-desktop/pkg/signclient"

	"github.com/pkg/errors"
)

var (
	// ErrBusy is returned when an operation of the same kind is still in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrNoSignature is returned by copy/download before any successful sign.
	ErrNoSignature = errors.New("no signature available")
)

type Tab int

const (
	SignTab Tab = iota
	VerifyTab
)

func (t Tab) String() string {
	if t == VerifyTab {
		return "verifyTab"
	}
	return "signTab"
}

func (t Tab) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tab) UnmarshalText(b []byte) error {
	switch string(b) {
	case "signTab", "sign":
		*t = SignTab
	case "verifyTab", "verify":
		*t = VerifyTab
	default:
		return errors.Errorf("unknown tab %q", string(b))
	}
	return nil
}

type Op int

const (
	OpSign Op = iota
	OpVerify
)

func (o Op) String() string {
	if o == OpVerify {
		return "verify"
	}
	return "sign"
}

type MessageKind int

const (
	KindNone MessageKind = iota
	KindSuccess
	KindError
)

func (k MessageKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return ""
	}
}

func (k MessageKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *MessageKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*k = KindNone
	case "success":
		*k = KindSuccess
	case "error":
		*k = KindError
	default:
		return errors.Errorf("unknown message kind %q", string(b))
	}
	return nil
}

// Outcome tags what produced a message so callers never inspect message text.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeValidation
	OutcomeIngestion
	OutcomeTransport
	OutcomeRemote
	OutcomeMalformed
	OutcomeSigned
	OutcomeValid
	OutcomeInvalid
	OutcomeCopied
	OutcomeSaved
	OutcomeLocalError
)

var outcomeNames = map[Outcome]string{
	OutcomeNone:       "",
	OutcomeValidation: "validation",
	OutcomeIngestion:  "ingestion",
	OutcomeTransport:  "transport",
	OutcomeRemote:     "remote",
	OutcomeMalformed:  "malformed",
	OutcomeSigned:     "signed",
	OutcomeValid:      "valid",
	OutcomeInvalid:    "invalid",
	OutcomeCopied:     "copied",
	OutcomeSaved:      "saved",
	OutcomeLocalError: "local_error",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	for k, v := range outcomeNames {
		if v == string(b) {
			*o = k
			return nil
		}
	}
	return errors.Errorf("unknown outcome %q", string(b))
}

// ValidationError is a precondition failure detected before any I/O.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

type Message struct {
	Kind       MessageKind `json:"kind"`
	Outcome    Outcome     `json:"outcome"`
	Text       string      `json:"text"`
	Generation uint64      `json:"generation"`
}

func (m Message) Empty() bool { return m.Kind == KindNone && m.Text == "" }

type OperationState struct {
	Busy    bool    `json:"busy"`
	Message Message `json:"message"`
}

type SignResult struct {
	SignatureToken string `json:"signatureToken"`
	SourceFileName string `json:"sourceFileName"`
}

// Snapshot is an immutable copy of the controller state; views render from it only.
type Snapshot struct {
	ActiveTab     Tab                         `json:"activeTab"`
	Connection    signclient.ConnectionStatus `json:"connection"`
	Sign          OperationState              `json:"sign"`
	Verify        OperationState              `json:"verify"`
	Notice        Message                     `json:"notice"`
	SignFile      string                      `json:"signFile"`
	VerifyFile    string                      `json:"verifyFile"`
	SignatureText string                      `json:"signatureText"`
	// Result is set only while the sign slot shows a successful signature.
	Result *SignResult `json:"result,omitempty"`
	// CanExport reports whether copy/download have a retained signature to use.
	CanExport bool `json:"canExport"`
}

// State returns the operation state for op.
func (s Snapshot) State(op Op) OperationState {
	if op == OpVerify {
		return s.Verify
	}
	return s.Sign
}
