// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package main

import (
	"context"
	"image/color"
	"os"
	"sync"

	"docsign-desktop/pkg/applog"
	"docsign-desktop/pkg/clipboard"
	"docsign-desktop/pkg/config"
	"docsign-desktop/pkg/ingest"
	"docsign-desktop/pkg/signclient"
	"docsign-desktop/pkg/version"
	"docsign-desktop/pkg/workflow"

	"gioui.org/app"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	colorActive   = color.NRGBA{R: 63, G: 81, B: 181, A: 255}
	colorInactive = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	colorSuccess  = color.NRGBA{R: 21, G: 128, B: 61, A: 255}
	colorError    = color.NRGBA{R: 200, G: 0, B: 0, A: 255}
	colorMuted    = color.NRGBA{R: 110, G: 110, B: 110, A: 255}
)

type UI struct {
	Theme  *material.Theme
	Window *app.Window

	ctrl    *workflow.Controller
	toolkit *toolkitClipboard
	log     zerolog.Logger
	ctx     context.Context

	BtnTabSign      widget.Clickable
	BtnTabVerify    widget.Clickable
	BtnBrowseSign   widget.Clickable
	BtnBrowseVerify widget.Clickable
	BtnSign         widget.Clickable
	BtnVerify       widget.Clickable
	BtnCopy         widget.Clickable
	BtnDownload     widget.Clickable
	BtnProbe        widget.Clickable

	SignPath       widget.Editor
	VerifyPath     widget.Editor
	SignatureInput widget.Editor
	ResultText     widget.Selectable
	MainScrollList widget.List

	// Paths chosen in a file dialog, applied to the editors on the next frame.
	pickMu sync.Mutex
	picked map[workflow.Tab]string

	PendingWork sync.WaitGroup
}

func NewUI(ctx context.Context, w *app.Window, ctrl *workflow.Controller, toolkit *toolkitClipboard) *UI {
	ui := &UI{
		Theme:   material.NewTheme(),
		Window:  w,
		ctrl:    ctrl,
		toolkit: toolkit,
		log:     applog.Component("gui"),
		ctx:     ctx,
		picked:  map[workflow.Tab]string{},
	}
	ui.SignPath.SingleLine = true
	ui.VerifyPath.SingleLine = true
	ui.MainScrollList.Axis = layout.Vertical

	ctrl.Subscribe(func(workflow.Snapshot) { w.Invalidate() })
	ui.background(func() { ctrl.Probe(ctx) })
	return ui
}

// runGUI opens the window and blocks in app.Main until the process exits.
func runGUI(ctx context.Context, cfg config.Config, withBridge bool) error {
	w := new(app.Window)
	w.Option(app.Title("DocSign "+version.CurrentVersion), app.Size(unit.Dp(800), unit.Dp(640)))

	toolkit := &toolkitClipboard{invalidate: w.Invalidate}
	ctrl, err := newController(cfg, toolkit)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	if withBridge {
		go func() { _ = serveBridge(ctx, ctrl, cfg.BridgeAddr) }()
	}

	go func() {
		ui := NewUI(ctx, w, ctrl, toolkit)
		err := loop(w, ui)

		ui.log.Info().Msg("window closed, waiting for running operations")
		cancel()
		ui.PendingWork.Wait()
		ctrl.Close()
		_ = applog.Close()
		if err != nil {
			ui.log.Error().Err(err).Msg("window loop failed")
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
	return nil
}

func loop(w *app.Window, ui *UI) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) background(fn func()) {
	ui.PendingWork.Add(1)
	go func() {
		defer ui.PendingWork.Done()
		fn()
	}()
}

func (ui *UI) browseFile(tab workflow.Tab) {
	title := "Select a document to sign"
	if tab == workflow.VerifyTab {
		title = "Select a document to verify"
	}
	path, err := pickDocumentPath(title)
	if err != nil {
		if !errors.Is(err, errDialogCancelled) {
			ui.log.Warn().Err(err).Msg("file dialog failed")
		}
		return
	}
	ui.selectFile(tab, path)

	ui.pickMu.Lock()
	ui.picked[tab] = path
	ui.pickMu.Unlock()
	ui.Window.Invalidate()
}

func (ui *UI) selectFile(tab workflow.Tab, path string) {
	if tab == workflow.VerifyTab {
		ui.ctrl.SelectVerifyFile(ingest.FromPath(path))
		return
	}
	ui.ctrl.SelectSignFile(ingest.FromPath(path))
}

func (ui *UI) applyPicked() {
	ui.pickMu.Lock()
	defer ui.pickMu.Unlock()
	for tab, path := range ui.picked {
		if tab == workflow.VerifyTab {
			ui.VerifyPath.SetText(path)
		} else {
			ui.SignPath.SetText(path)
		}
	}
	clear(ui.picked)
}

// handleEvents forwards widget events to the controller. It runs before
// layout so the frame renders the state they produce.
func (ui *UI) handleEvents(gtx layout.Context, s workflow.Snapshot) {
	if ui.BtnTabSign.Clicked(gtx) {
		ui.ctrl.SelectTab(workflow.SignTab)
	}
	if ui.BtnTabVerify.Clicked(gtx) {
		ui.ctrl.SelectTab(workflow.VerifyTab)
	}
	if ui.BtnProbe.Clicked(gtx) {
		ui.background(func() { ui.ctrl.Probe(ui.ctx) })
	}
	if ui.BtnBrowseSign.Clicked(gtx) {
		go ui.browseFile(workflow.SignTab)
	}
	if ui.BtnBrowseVerify.Clicked(gtx) {
		go ui.browseFile(workflow.VerifyTab)
	}

	for {
		ev, ok := ui.SignPath.Update(gtx)
		if !ok {
			break
		}
		if _, changed := ev.(widget.ChangeEvent); changed {
			ui.selectFile(workflow.SignTab, ui.SignPath.Text())
		}
	}
	for {
		ev, ok := ui.VerifyPath.Update(gtx)
		if !ok {
			break
		}
		if _, changed := ev.(widget.ChangeEvent); changed {
			ui.selectFile(workflow.VerifyTab, ui.VerifyPath.Text())
		}
	}
	for {
		ev, ok := ui.SignatureInput.Update(gtx)
		if !ok {
			break
		}
		if _, changed := ev.(widget.ChangeEvent); changed {
			ui.ctrl.SetSignature(ui.SignatureInput.Text())
		}
	}

	if ui.BtnSign.Clicked(gtx) && !s.Sign.Busy {
		ui.background(func() { _, _ = ui.ctrl.Sign(ui.ctx) })
	}
	if ui.BtnVerify.Clicked(gtx) && !s.Verify.Busy {
		ui.background(func() { _, _ = ui.ctrl.Verify(ui.ctx) })
	}
	if ui.BtnCopy.Clicked(gtx) {
		ui.background(func() { _ = ui.ctrl.CopySignature() })
	}
	if ui.BtnDownload.Clicked(gtx) {
		ui.background(func() { _, _ = ui.ctrl.DownloadSignature() })
	}
}

func (ui *UI) Layout(gtx layout.Context) layout.Dimensions {
	ui.applyPicked()
	ui.toolkit.flush(gtx)
	ui.handleEvents(gtx, ui.ctrl.Snapshot())
	s := ui.ctrl.Snapshot()

	paint.Fill(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return material.List(ui.Theme, &ui.MainScrollList).Layout(gtx, 1, func(gtx layout.Context, _ int) layout.Dimensions {
		return layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return ui.layoutHeader(gtx, s)
				}),
				spacer(16),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return ui.layoutTabs(gtx, s)
				}),
				spacer(16),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					if s.ActiveTab == workflow.VerifyTab {
						return ui.layoutVerify(gtx, s)
					}
					return ui.layoutSign(gtx, s)
				}),
				spacer(16),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return ui.layoutMessage(gtx, s.Notice)
				}),
			)
		})
	})
}

func (ui *UI) layoutHeader(gtx layout.Context, s workflow.Snapshot) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.H4(ui.Theme, "Digital Signature").Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			lbl := material.Body1(ui.Theme, "● "+s.Connection.String())
			switch s.Connection {
			case signclient.Connected:
				lbl.Color = colorSuccess
			case signclient.Disconnected:
				lbl.Color = colorError
			default:
				lbl.Color = colorMuted
			}
			return lbl.Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			if s.Connection == signclient.Checking {
				return layout.Dimensions{}
			}
			return layout.Inset{Left: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				btn := material.Button(ui.Theme, &ui.BtnProbe, "Retry")
				btn.Background = colorInactive
				btn.Color = color.NRGBA{A: 255}
				return btn.Layout(gtx)
			})
		}),
	)
}

func (ui *UI) layoutTabs(gtx layout.Context, s workflow.Snapshot) layout.Dimensions {
	tab := func(btn *widget.Clickable, label string, active bool) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			b := material.Button(ui.Theme, btn, label)
			if active {
				b.Background = colorActive
			} else {
				b.Background = colorInactive
			}
			return b.Layout(gtx)
		}
	}
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Flexed(1, tab(&ui.BtnTabSign, "Sign Document", s.ActiveTab == workflow.SignTab)),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Spacer{Width: unit.Dp(8)}.Layout(gtx)
		}),
		layout.Flexed(1, tab(&ui.BtnTabVerify, "Verify Signature", s.ActiveTab == workflow.VerifyTab)),
	)
}

func (ui *UI) layoutSign(gtx layout.Context, s workflow.Snapshot) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutFileRow(gtx, "Document to sign:", &ui.SignPath, &ui.BtnBrowseSign)
		}),
		spacer(12),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutAction(gtx, &ui.BtnSign, "Sign Document", "Signing...", s.Sign.Busy)
		}),
		spacer(12),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutMessage(gtx, s.Sign.Message)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			if s.Result == nil {
				return layout.Dimensions{}
			}
			return ui.layoutResult(gtx, *s.Result)
		}),
	)
}

func (ui *UI) layoutVerify(gtx layout.Context, s workflow.Snapshot) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutFileRow(gtx, "Document to verify:", &ui.VerifyPath, &ui.BtnBrowseVerify)
		}),
		spacer(12),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H6(ui.Theme, "Signature:").Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Min.Y = gtx.Dp(unit.Dp(96))
			ed := material.Editor(ui.Theme, &ui.SignatureInput, "Paste the signature here...")
			return widget.Border{Color: colorInactive, Width: unit.Dp(1)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.UniformInset(unit.Dp(8)).Layout(gtx, ed.Layout)
			})
		}),
		spacer(12),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutAction(gtx, &ui.BtnVerify, "Verify Signature", "Verifying...", s.Verify.Busy)
		}),
		spacer(12),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutMessage(gtx, s.Verify.Message)
		}),
	)
}

func (ui *UI) layoutFileRow(gtx layout.Context, label string, ed *widget.Editor, browse *widget.Clickable) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H6(ui.Theme, label).Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
				layout.Flexed(1, material.Editor(ui.Theme, ed, "Full path of the document...").Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return layout.UniformInset(unit.Dp(8)).Layout(gtx, material.Button(ui.Theme, browse, "Browse...").Layout)
				}),
			)
		}),
	)
}

// layoutAction draws the operation button, disabled with a loader while busy.
func (ui *UI) layoutAction(gtx layout.Context, btn *widget.Clickable, label, busyLabel string, busy bool) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			b := material.Button(ui.Theme, btn, label)
			b.Background = colorActive
			if busy {
				gtx = gtx.Disabled()
				b.Text = busyLabel
				b.Background = colorInactive
			}
			return b.Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			if !busy {
				return layout.Dimensions{}
			}
			return layout.Inset{Left: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				size := gtx.Dp(unit.Dp(24))
				gtx.Constraints.Min.X, gtx.Constraints.Min.Y = size, size
				gtx.Constraints.Max.X, gtx.Constraints.Max.Y = size, size
				return material.Loader(ui.Theme).Layout(gtx)
			})
		}),
	)
}

func (ui *UI) layoutMessage(gtx layout.Context, m workflow.Message) layout.Dimensions {
	if m.Empty() {
		return layout.Dimensions{}
	}
	lbl := material.Body1(ui.Theme, m.Text)
	lbl.Color = messageColor(m.Kind)
	return layout.Inset{Top: unit.Dp(4), Bottom: unit.Dp(4)}.Layout(gtx, lbl.Layout)
}

func (ui *UI) layoutResult(gtx layout.Context, r workflow.SignResult) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			lbl := material.Body2(ui.Theme, r.SignatureToken)
			lbl.State = &ui.ResultText
			return widget.Border{Color: colorInactive, Width: unit.Dp(1)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.UniformInset(unit.Dp(8)).Layout(gtx, lbl.Layout)
			})
		}),
		spacer(8),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
				layout.Rigid(material.Button(ui.Theme, &ui.BtnCopy, "📋 Copy Signature").Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return layout.Spacer{Width: unit.Dp(8)}.Layout(gtx)
				}),
				layout.Rigid(material.Button(ui.Theme, &ui.BtnDownload, downloadLabel(r.SourceFileName)).Layout),
			)
		}),
	)
}

// downloadLabel names the file the Download button will write.
func downloadLabel(sourceFileName string) string {
	return "💾 Download " + clipboard.SignatureFileName(sourceFileName)
}

func messageColor(k workflow.MessageKind) color.NRGBA {
	switch k {
	case workflow.KindSuccess:
		return colorSuccess
	case workflow.KindError:
		return colorError
	default:
		return colorMuted
	}
}

func spacer(dp unit.Dp) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		return layout.Spacer{Height: dp}.Layout(gtx)
	})
}
