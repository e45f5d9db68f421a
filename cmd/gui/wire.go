// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"context"

	"docsign-desktop/pkg/applog"
	"docsign-desktop/pkg/bridge"
	"docsign-desktop/pkg/clipboard"
	"docsign-desktop/pkg/config"
	"docsign-desktop/pkg/ingest"
	"docsign-desktop/pkg/signclient"
	"docsign-desktop/pkg/workflow"

	"github.com/rs/zerolog/log"
)

var systemClipboard = clipboard.System

// newController builds the single controller every front end drives.
// fallback is the toolkit clipboard when a window exists, nil otherwise.
func newController(cfg config.Config, fallback clipboard.Writer) (*workflow.Controller, error) {
	client := signclient.New(cfg.APIBaseURL,
		signclient.WithTimeouts(cfg.RequestTimeout, cfg.ProbeTimeout),
		signclient.WithLogger(applog.Component("signclient")),
	)
	return workflow.New(workflow.Options{
		Config: cfg,
		Client: client,
		Reader: ingest.NewReader(cfg.MaxFileBytes),
		Clipboard: &clipboard.Adapter{
			Primary:  systemClipboard(),
			Fallback: fallback,
			Log:      applog.Component("clipboard"),
		},
		Saver:  clipboard.NewSaver(cfg.DownloadDir, cfg.Overwrite),
		Logger: applog.Component("workflow"),
	})
}

// serveBridge runs the WebSocket bridge until ctx ends; failures are logged.
func serveBridge(ctx context.Context, ctrl *workflow.Controller, addr string) error {
	srv := bridge.New(ctrl, applog.Component("bridge"))
	err := srv.ListenAndServe(ctx, addr)
	if err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("bridge stopped")
	}
	return err
}
