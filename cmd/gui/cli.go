// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"docsign-desktop/pkg/ingest"
	"docsign-desktop/pkg/signclient"
	"docsign-desktop/pkg/workflow"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const exitInvalid = 2

func newSignCmd(opts *rootOptions) *cobra.Command {
	var in, outDir string
	var save, copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "sign --in FILE",
		Short: "Sign a document and print the signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if strings.TrimSpace(outDir) != "" {
				cfg.DownloadDir = outDir
				save = true
			}
			ctrl, err := newController(cfg, nil)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctrl.SelectSignFile(ingest.FromPath(in))
			_, err = ctrl.Sign(cmd.Context())
			snap := ctrl.Snapshot()
			if err != nil {
				return &exitError{code: 1, err: errors.New(snap.Sign.Message.Text)}
			}

			stderr := cmd.ErrOrStderr()
			pterm.Success.WithWriter(stderr).Printfln("Document signed: %s", snap.Result.SourceFileName)
			fmt.Fprintln(cmd.OutOrStdout(), snap.Result.SignatureToken)

			if save {
				path, err := ctrl.DownloadSignature()
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				pterm.Info.WithWriter(stderr).Printfln("Signature saved to %s", path)
			}
			if copyToClipboard {
				if err := ctrl.CopySignature(); err != nil {
					pterm.Warning.WithWriter(stderr).Println(err.Error())
				} else {
					pterm.Info.WithWriter(stderr).Println("Signature copied to clipboard!")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "document to sign")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "save <document>.signature.txt into this directory")
	cmd.Flags().BoolVar(&save, "save", false, "save <document>.signature.txt into the download directory")
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "copy the signature to the clipboard")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var in, signature, signatureFile string

	cmd := &cobra.Command{
		Use:   "verify --in FILE (--signature TEXT | --signature-file PATH)",
		Short: "Verify a document against a signature",
		Long:  "Verify a document against a signature. Exits 0 when valid, 2 when invalid and 1 on errors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if signature != "" && signatureFile != "" {
				return errors.New("use either --signature or --signature-file, not both")
			}
			if signatureFile != "" {
				text, err := ingest.NewReader(opts.cfg.MaxFileBytes).Read(cmd.Context(), ingest.FromPath(signatureFile))
				if err != nil {
					return errors.Wrap(err, "read signature file")
				}
				signature = text
			}

			ctrl, err := newController(opts.cfg, nil)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctrl.SelectVerifyFile(ingest.FromPath(in))
			ctrl.SetSignature(signature)
			outcome, err := ctrl.Verify(cmd.Context())
			msg := ctrl.Snapshot().Verify.Message
			switch {
			case err != nil:
				return &exitError{code: 1, err: errors.New(msg.Text)}
			case outcome == workflow.OutcomeInvalid:
				pterm.Error.WithWriter(cmd.OutOrStdout()).Println(msg.Text)
				return &exitError{code: exitInvalid}
			default:
				pterm.Success.WithWriter(cmd.OutOrStdout()).Println(msg.Text)
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "document to verify")
	cmd.Flags().StringVar(&signature, "signature", "", "signature text")
	cmd.Flags().StringVar(&signatureFile, "signature-file", "", "file holding the signature")
	return cmd
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether the signing service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := newController(opts.cfg, nil)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			status := ctrl.Probe(cmd.Context())
			line := fmt.Sprintf("%s (%s)", status, opts.cfg.APIBaseURL)
			if status != signclient.Connected {
				pterm.Error.WithWriter(cmd.OutOrStdout()).Println(line)
				return &exitError{code: 1}
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Println(line)
			return nil
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket bridge without a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctrl, err := newController(opts.cfg, nil)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			pterm.Info.WithWriter(cmd.ErrOrStderr()).Printfln("Bridge on ws://%s/ws, signing service %s", opts.cfg.BridgeAddr, opts.cfg.APIBaseURL)
			go ctrl.Probe(ctx)
			return serveBridge(ctx, ctrl, opts.cfg.BridgeAddr)
		},
	}
}
