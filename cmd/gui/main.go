// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"docsign-desktop/pkg/applog"
	"docsign-desktop/pkg/config"
	"docsign-desktop/pkg/version"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	apiURL      string
	timeout     time.Duration
	downloadDir string
	overwrite   string
	bridge      bool
	bridgeAddr  string
	maxFileMB   int64

	cfg       config.Config
	runGUI    func(ctx context.Context, cfg config.Config, withBridge bool) error
	lookupEnv func(string) (string, bool)
}

func main() {
	logPath, err := applog.Init(version.AppName)
	if err != nil {
		log.Warn().Err(err).Msg("persistent logging unavailable")
	} else {
		log.Info().Str("path", logPath).Msg("logging initialised")
	}
	log.Info().Strs("args", applog.SanitizeArgs(os.Args)).Str("version", version.String()).Msg("launched")

	code := execute(context.Background(), &rootOptions{runGUI: runGUI, lookupEnv: os.LookupEnv}, os.Args[1:], os.Stdout, os.Stderr)
	_ = applog.Close()
	os.Exit(code)
}

func execute(ctx context.Context, opts *rootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			pterm.Error.WithWriter(stderr).Println(ee.err.Error())
		}
		return ee.code
	}
	pterm.Error.WithWriter(stderr).Println(err.Error())
	return 1
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docsign",
		Short:         "Sign documents and verify signatures with a remote signing service",
		Version:       version.CurrentVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runGUI(cmd.Context(), opts.cfg, opts.bridge)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.apiURL, "api-url", "", "signing service base URL (env DOCSIGN_API_BASE_URL)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "request timeout for sign/verify (env DOCSIGN_REQUEST_TIMEOUT)")
	pf.StringVar(&opts.downloadDir, "download-dir", "", "where signatures are saved (env DOCSIGN_DOWNLOAD_DIR)")
	pf.StringVar(&opts.overwrite, "overwrite", "", "policy when the signature file exists: fail|rename|force")
	pf.Int64Var(&opts.maxFileMB, "max-file-mb", 0, "largest document accepted, in MiB (env DOCSIGN_MAX_FILE_MB)")
	pf.StringVar(&opts.bridgeAddr, "bridge-addr", "", "listen address of the WebSocket bridge (env DOCSIGN_BRIDGE_ADDR)")
	cmd.Flags().BoolVar(&opts.bridge, "bridge", false, "also serve the WebSocket bridge while the window is open")

	cmd.AddCommand(
		newSignCmd(opts),
		newVerifyCmd(opts),
		newProbeCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig layers flags over DOCSIGN_* variables over defaults.
func (o *rootOptions) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.FromEnv(o.lookupEnv)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = o.apiURL
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = o.timeout
	}
	if flags.Changed("download-dir") {
		cfg.DownloadDir = o.downloadDir
	}
	if flags.Changed("max-file-mb") {
		cfg.MaxFileBytes = o.maxFileMB << 20
	}
	if flags.Changed("bridge-addr") {
		cfg.BridgeAddr = o.bridgeAddr
	}
	if flags.Changed("overwrite") {
		if cfg.Overwrite, err = config.ParseOverwritePolicy(o.overwrite); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	log.Debug().
		Str("api", applog.SanitizeURL(cfg.APIBaseURL)).
		Dur("timeout", cfg.RequestTimeout).
		Str("download_dir", cfg.DownloadDir).
		Stringer("overwrite", cfg.Overwrite).
		Msg("configuration loaded")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
