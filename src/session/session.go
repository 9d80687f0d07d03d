package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"screen-grab/src/clipboard"
	"screen-grab/src/logutil"
	"screen-grab/src/storage"
)

var ErrSelectionCancelled = errors.New("selection cancelled")

// ResultTarget receives the outcome of one Execute run.
type ResultTarget interface {
	OnSuccess(capture *Capture) error
	OnFailure(err error) error
}

type ExecuteOptions struct {
	// Deadline bounds the capture and save after the selection is made.
	Deadline time.Duration
	// OutputPath, when set, is where the capture is written. Otherwise a
	// non-empty OutputDir receives it under FileName.
	OutputPath string
	OutputDir  string
	Format     storage.Format
	Targets    []ResultTarget
}

type Result struct {
	Capture *Capture
	Path    string
}

// Execute runs one select, capture and deliver cycle.
//
// A selection the user backs out of returns ErrSelectionCancelled with an
// empty Result. That sentinel marks a cancellation rather than a failure:
// nothing was captured, and targets receive it through OnFailure so they can
// tell it apart from a real error with errors.Is.
func (c *Controller) Execute(ctx context.Context, opts ExecuteOptions) (Result, error) {
	log := logutil.WithComponent("session")

	corners, ok, err := c.RunInteractiveSelection(ctx)
	if err != nil {
		notifyFailure(opts.Targets, err)
		return Result{}, err
	}
	if !ok {
		notifyFailure(opts.Targets, ErrSelectionCancelled)
		return Result{}, ErrSelectionCancelled
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	capture, err := c.Capture(jobCtx, corners)
	if err != nil {
		notifyFailure(opts.Targets, err)
		return Result{}, err
	}

	res := Result{Capture: capture}
	switch {
	case opts.OutputPath != "":
		res.Path = opts.OutputPath
		if filepath.Ext(res.Path) == "" {
			res.Path += formatOrPNG(opts.Format).Ext()
		}
	case opts.OutputDir != "":
		res.Path = filepath.Join(opts.OutputDir, FileName(capture, opts.Format))
	}
	if res.Path != "" {
		if err := c.Save(res.Path); err != nil {
			notifyFailure(opts.Targets, err)
			return Result{}, err
		}
	}

	for _, t := range opts.Targets {
		if err := t.OnSuccess(capture); err != nil {
			notifyFailure(opts.Targets, err)
			return Result{}, err
		}
	}

	log.Info().Str("id", capture.ID.String()).Str("path", res.Path).Msg("session complete")
	return res, nil
}

func notifyFailure(targets []ResultTarget, err error) {
	for _, t := range targets {
		_ = t.OnFailure(err)
	}
}

// FileName builds the default file name for a capture, e.g.
// grab-20240102-150405-1a2b3c4d.png.
func FileName(capture *Capture, format storage.Format) string {
	id := capture.ID.String()
	return fmt.Sprintf("grab-%s-%s%s", capture.TakenAt.Format("20060102-150405"), id[:8], formatOrPNG(format).Ext())
}

func formatOrPNG(f storage.Format) storage.Format {
	if f == "" {
		return storage.FormatPNG
	}
	return f
}

// ClipboardTarget copies the captured image to the system clipboard.
type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(capture *Capture) error {
	return clipboard.WriteImage(capture.Image)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

// WriterTarget encodes the captured image to Writer (stdout when nil).
type WriterTarget struct {
	Writer io.Writer
	Format storage.Format
}

func (t WriterTarget) OnSuccess(capture *Capture) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	return storage.Encode(w, capture.Image, formatOrPNG(t.Format))
}

func (t WriterTarget) OnFailure(err error) error {
	return nil
}

// FuncTarget adapts plain functions; nil fields are skipped.
type FuncTarget struct {
	Success func(*Capture) error
	Failure func(error)
}

func (t FuncTarget) OnSuccess(capture *Capture) error {
	if t.Success == nil {
		return nil
	}
	return t.Success(capture)
}

func (t FuncTarget) OnFailure(err error) error {
	if t.Failure != nil {
		t.Failure(err)
	}
	return nil
}
