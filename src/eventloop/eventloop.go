package eventloop

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"screen-grab/src/config"
	"screen-grab/src/logutil"
	"screen-grab/src/region"
	"screen-grab/src/session"
	"screen-grab/src/singleinstance"
	"screen-grab/src/storage"
	"screen-grab/src/worker"
)

// StatusSink shows what the resident process is doing, e.g. in the tray
// tooltip.
type StatusSink interface {
	UpdateTooltip(text string)
}

type nopStatus struct{}

func (nopStatus) UpdateTooltip(string) {}

// Loop is the single-threaded coordinator for hotkey, tray and delegated
// captures. Selections run on the loop goroutine; capture and save run on
// the worker pool.
type Loop struct {
	ctrl           *session.Controller
	pool           *worker.Pool
	srv            singleinstance.Server
	busy           bool
	results        chan result
	triggers       chan struct{}
	ratioToggles   chan bool
	status         StatusSink
	defaultTooltip string
	deadline       time.Duration

	outputDir       string
	format          storage.Format
	ratioValue      float64
	copyToClipboard bool
	copyImage       func(*session.Capture) error
}

type result struct {
	path   string
	err    error
	conn   singleinstance.Conn
	cancel context.CancelFunc
}

type requestCallbacks struct {
	onBusy        func()
	onSelectError func(err error)
	onCancelled   func()
}

// New creates a new event loop with defaults based on config.
// If cfg is nil or cfg.CaptureDeadline <= 0, a 20s deadline is used.
func New(ctrl *session.Controller, cfg *config.Config) (*Loop, error) {
	deadline := 20 * time.Second
	l := &Loop{
		ctrl:           ctrl,
		results:        make(chan result, 1),
		triggers:       make(chan struct{}, 1),
		ratioToggles:   make(chan bool, 4),
		status:         nopStatus{},
		defaultTooltip: "Screen Grab",
		format:         storage.FormatPNG,
		ratioValue:     region.Unconstrained.Ratio,
		copyImage:      session.ClipboardTarget{}.OnSuccess,
	}
	if cfg != nil {
		if cfg.CaptureDeadline > 0 {
			deadline = cfg.CaptureDeadline
		}
		if cfg.OutputFormat != "" {
			f, err := storage.ParseFormat(cfg.OutputFormat)
			if err != nil {
				return nil, err
			}
			l.format = f
		}
		if cfg.Ratio.Ratio > 0 {
			l.ratioValue = cfg.Ratio.Ratio
		}
		l.outputDir = cfg.OutputDir
		l.copyToClipboard = cfg.CopyToClipboard
	}
	l.deadline = deadline
	l.pool = worker.New(1, l.process)
	return l, nil
}

// SetStatusSink sets where busy/idle status is reported.
func (l *Loop) SetStatusSink(s StatusSink) {
	if s == nil {
		s = nopStatus{}
	}
	l.status = s
}

// SetDefaultTooltip optionally sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// AttachServer makes Run answer delegated capture requests from srv. The
// server must already be started; Run closes it on return.
func (l *Loop) AttachServer(srv singleinstance.Server) { l.srv = srv }

// Trigger requests a new capture. Safe to call from any goroutine; requests
// arriving while one is already pending are dropped.
func (l *Loop) Trigger() {
	select {
	case l.triggers <- struct{}{}:
	default:
	}
}

// SetRatioEnabled toggles the ratio constraint for the next selection.
// Safe to call from any goroutine.
func (l *Loop) SetRatioEnabled(enabled bool) {
	select {
	case l.ratioToggles <- enabled:
	default:
	}
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if b {
		l.status.UpdateTooltip(l.defaultTooltip + ": saving...")
	} else {
		l.status.UpdateTooltip(l.defaultTooltip)
	}
}

// Run processes triggers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()
	log := logutil.WithComponent("eventloop")
	log.Info().Dur("deadline", l.deadline).Str("output_dir", l.outputDir).Msg("event loop started")

	var reqCh chan singleinstance.Conn
	if l.srv != nil {
		defer l.srv.Close()
		reqCh = make(chan singleinstance.Conn, 4)
		go func() {
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					close(reqCh)
					return
				}
				select {
				case reqCh <- conn:
				case <-ctx.Done():
					_ = conn.Close()
					close(reqCh)
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.triggers:
			l.handleTrigger(ctx)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		case enabled := <-l.ratioToggles:
			if err := l.ctrl.SetRatio(enabled, l.ratioValue); err != nil {
				log.Error().Err(err).Msg("failed to update ratio constraint")
			} else {
				log.Info().Bool("enabled", enabled).Float64("ratio", l.ratioValue).Msg("ratio constraint updated")
			}
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleTrigger(ctx context.Context) {
	log := logutil.WithComponent("eventloop")
	l.startRequest(ctx, nil, worker.Job{CopyToClipboard: l.copyToClipboard}, requestCallbacks{
		onBusy:        func() { log.Info().Msg("busy, skipping trigger") },
		onSelectError: func(err error) { log.Error().Err(err).Msg("selection error") },
		onCancelled:   func() { log.Info().Msg("selection cancelled") },
	})
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	respond := func(err error) {
		_ = conn.RespondError(err.Error())
		_ = conn.Close()
	}
	job := worker.Job{CopyToClipboard: l.copyToClipboard || conn.Request().CopyToClipboard}
	l.startRequest(ctx, conn, job, requestCallbacks{
		onBusy:        func() { respond(errors.New("busy, please retry")) },
		onSelectError: func(err error) { respond(fmt.Errorf("failed to select region: %w", err)) },
		onCancelled:   func() { respond(session.ErrSelectionCancelled) },
	})
}

func (l *Loop) startRequest(ctx context.Context, conn singleinstance.Conn, job worker.Job, callbacks requestCallbacks) {
	if l.busy {
		callbacks.onBusy()
		return
	}

	corners, ok, err := l.ctrl.RunInteractiveSelection(ctx)
	if err != nil {
		callbacks.onSelectError(err)
		return
	}
	if !ok {
		callbacks.onCancelled()
		return
	}
	job.Corners = corners

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	l.setBusy(true)
	submitted := l.pool.Submit(jobCtx, job, func(path string, err error) {
		l.results <- result{path: path, err: err, conn: conn, cancel: cancel}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		logutil.WithComponent("eventloop").Warn().Msg("worker queue full, capture dropped")
		callbacks.onBusy()
	}
}

func (l *Loop) handleResult(res result) {
	log := logutil.WithComponent("eventloop")
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()

	if res.conn != nil {
		defer res.conn.Close()
	}

	if res.err != nil {
		log.Error().Err(res.err).Msg("capture failed")
		if res.conn != nil {
			_ = res.conn.RespondError(res.err.Error())
		}
		return
	}
	log.Info().Str("path", res.path).Msg("capture delivered")
	if res.conn != nil {
		if err := res.conn.RespondSuccess(res.path); err != nil {
			log.Warn().Err(err).Msg("failed to answer delegated request")
		}
	}
}

// process runs on a worker goroutine.
func (l *Loop) process(ctx context.Context, job worker.Job) (string, error) {
	capture, err := l.ctrl.Capture(ctx, job.Corners)
	if err != nil {
		return "", err
	}

	var errs []error
	path := ""
	if l.outputDir != "" {
		path = filepath.Join(l.outputDir, session.FileName(capture, l.format))
		if err := l.ctrl.Save(path); err != nil {
			errs = append(errs, err)
			path = ""
		}
	}
	if job.CopyToClipboard {
		if err := l.copyImage(capture); err != nil {
			errs = append(errs, fmt.Errorf("clipboard error: %w", err))
		}
	}
	return path, errors.Join(errs...)
}

// Deadline returns the configured capture deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }
