// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package workflow

import (
	"fmt"
	"strings"

	"docsign-desktop/pkg/ingest"
	"docsign-desktop/pkg/signclient"

	"github.com/pkg/errors"
)

func classifySigned(fileName, token string) Message {
	return Message{
		Kind:    KindSuccess,
		Outcome: OutcomeSigned,
		Text: fmt.Sprintf("Document signed successfully! ✅\n\nFile: %s\n\nSignature: %s\n\nUse the buttons below to copy or download your signature.",
			fileName, token),
	}
}

func classifyVerdict(fileName string, valid bool) Message {
	if valid {
		return Message{
			Kind:    KindSuccess,
			Outcome: OutcomeValid,
			Text:    fmt.Sprintf("✅ Signature is VALID!\n\nFile: %s\n\nThe document is authentic and has not been tampered with.", fileName),
		}
	}
	return Message{
		Kind:    KindError,
		Outcome: OutcomeInvalid,
		Text: fmt.Sprintf("❌ Signature is INVALID!\n\nFile: %s\n\nThe document may have been modified, the signature is incorrect, or there's a key mismatch.",
			fileName),
	}
}

// classifyError turns any failure from sign/verify into a display message.
func classifyError(op Op, err error) Message {
	msg := Message{Kind: KindError}

	var (
		verr      *ValidationError
		ierr      *ingest.Error
		transport *signclient.TransportError
		remote    *signclient.RemoteError
		malformed *signclient.MalformedResponseError
	)
	switch {
	case errors.As(err, &verr):
		msg.Outcome = OutcomeValidation
		msg.Text = verr.Msg
	case errors.Is(err, ingest.ErrNoFile):
		msg.Outcome = OutcomeValidation
		msg.Text = noFileText(op)
	case errors.As(err, &ierr):
		msg.Outcome = OutcomeIngestion
		msg.Text = "Error reading file: " + ierr.Err.Error()
	case errors.As(err, &transport):
		msg.Outcome = OutcomeTransport
		if transport.Timeout() {
			msg.Text = "Network Error: The signing server did not answer in time.\n\nThe request timed out; please try again or check the server status."
		} else {
			msg.Text = "Network Error: Cannot connect to signing server.\n\nPlease check your connection and server status."
		}
	case errors.As(err, &remote):
		msg.Outcome = OutcomeRemote
		if op == OpSign {
			msg.Text = "Error signing document: " + remote.Detail()
		} else {
			msg.Text = fmt.Sprintf("Validity Error: Unable to verify document (HTTP %d: %s).\n\nPlease ensure the signature is sent within a correct format and that the correct document is selected.",
				remote.StatusCode, remote.Detail())
		}
	case errors.As(err, &malformed):
		msg.Outcome = OutcomeMalformed
		if op == OpSign {
			msg.Text = fmt.Sprintf("Error signing document: unexpected response from signing server (%v).", malformed.Err)
		} else {
			msg.Text = fmt.Sprintf("Verification Error: unexpected response from signing server: %q.", strings.TrimSpace(truncate(malformed.Body, 120)))
		}
	default:
		msg.Outcome = OutcomeLocalError
		if op == OpSign {
			msg.Text = "Error signing document: " + err.Error()
		} else {
			msg.Text = "Verification Error: " + err.Error()
		}
	}
	return msg
}

func noFileText(op Op) string {
	if op == OpVerify {
		return "Please select a file to verify!"
	}
	return "Please select a file first!"
}

func truncate(v string, max int) string {
	r := []rune(v)
	if len(r) <= max {
		return v
	}
	return string(r[:max]) + "..."
}
