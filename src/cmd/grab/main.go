package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"screen-grab/src/clipboard"
	"screen-grab/src/config"
	"screen-grab/src/eventloop"
	"screen-grab/src/hotkey"
	"screen-grab/src/inputhook"
	"screen-grab/src/logutil"
	"screen-grab/src/overlay"
	"screen-grab/src/region"
	"screen-grab/src/runtimeinit"
	"screen-grab/src/screenshot"
	"screen-grab/src/session"
	"screen-grab/src/singleinstance"
	"screen-grab/src/storage"
	"screen-grab/src/tray"
)

// exitCancelled is returned when the user backs out of a selection.
const exitCancelled = 2

func init() {
	// fyne and systray both need the main OS thread.
	runtime.LockOSThread()
}

func main() {
	err := newApp(os.Stdout, os.Stderr).execute(os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSelectionCancelled):
		fmt.Fprintln(os.Stderr, "Selection cancelled")
		os.Exit(exitCancelled)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the collaborators the commands use; tests replace them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	newSelector   func(kind overlay.Kind) (overlay.Selector, error)
	capturer      screenshot.Capturer
	initClipboard func() error
	setupLogging  func(logutil.Options)
	newServer     func() singleinstance.Server
	newClient     func() singleinstance.Client

	v       *viper.Viper
	opts    globalOptions
	capture captureOptions
}

type globalOptions struct {
	configPath string
	verbose    bool
}

type captureOptions struct {
	output      string
	stdout      bool
	jsonOutput  bool
	preview     string
	previewSize int
	delegate    bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:        stdout,
		stderr:        stderr,
		newSelector:   overlay.NewSelector,
		capturer:      screenshot.NewScreenCapturer(),
		initClipboard: clipboard.Init,
		setupLogging:  logutil.Setup,
		newServer:     singleinstance.NewServer,
		newClient:     singleinstance.NewClient,
		v:             viper.New(),
	}
}

func (a *app) execute(args []string) error {
	cmd := a.newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd.Execute()
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "screen-grab",
		Short:         "Select a screen region with two clicks and capture it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configPath, "config", "", "Path to a .env file (default: next to the executable, or $SCREEN_GRAB)")
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Log to stderr")
	pf.Bool("constrain", false, "Constrain the selection to the aspect ratio given by --ratio")
	pf.Float64("ratio", 1.0, "Aspect ratio (width/height) used with --constrain")
	pf.String("selector", "fyne", "Selection host: fyne (overlay window) or hook (global input hook)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.Bool("log-file", false, "Also write logs to screen_grab_debug.log")

	root.AddCommand(a.newSelectCmd(), a.newCaptureCmd(), a.newResidentCmd())
	return root
}

// flagKeys maps command-line flags onto configuration keys. Flags win over
// the environment and the .env file.
var flagKeys = map[string]string{
	"constrain":  config.KeyRatioConstraint,
	"ratio":      config.KeyRatio,
	"selector":   config.KeySelector,
	"log-level":  config.KeyLogLevel,
	"log-file":   config.KeyEnableFileLogging,
	"output-dir": config.KeyOutputDir,
	"format":     config.KeyOutputFormat,
	"clipboard":  config.KeyCopyToClipboard,
	"deadline":   config.KeyCaptureDeadlineSec,
	"hotkey":     config.KeyHotkey,
}

// bindFlags binds the flags of the command being run, so commands sharing a
// flag name do not overwrite each other's binding.
func (a *app) bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func (a *app) bootstrap(needClipboard bool) (*config.Config, error) {
	var console io.Writer
	if a.opts.verbose {
		console = a.stderr
	}
	return runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   config.LoadOptions{EnvPath: a.opts.configPath, Viper: a.v},
		Console:       console,
		NeedClipboard: needClipboard,
		SetupLogging:  a.setupLogging,
		InitClipboard: a.initClipboard,
	})
}

func (a *app) selector(cfg *config.Config) (overlay.Selector, error) {
	kind, err := overlay.ParseKind(cfg.Selector)
	if err != nil {
		return nil, err
	}
	return a.newSelector(kind)
}

type selectionOutput struct {
	First  region.Point  `json:"first"`
	Second region.Point  `json:"second"`
	Bounds region.Region `json:"bounds"`
}

func (a *app) newSelectCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Run an interactive selection and print its corners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.bootstrap(false)
			if err != nil {
				return err
			}
			sel, err := a.selector(cfg)
			if err != nil {
				return err
			}
			ctrl, err := session.NewController(session.Options{Selector: sel, Ratio: cfg.Ratio})
			if err != nil {
				return err
			}

			corners, ok, err := ctrl.RunInteractiveSelection(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return session.ErrSelectionCancelled
			}

			out := selectionOutput{First: corners.First, Second: corners.Second, Bounds: corners.Bounds()}
			if jsonOutput {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			_, err = fmt.Fprintf(a.stdout, "%d,%d %d,%d\n", out.First.X, out.First.Y, out.Second.X, out.Second.Y)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the selection as JSON")
	return cmd
}

// CaptureResult is the JSON document printed by capture --json.
type CaptureResult struct {
	ID        string        `json:"id"`
	Bounds    region.Region `json:"bounds"`
	Path      string        `json:"path,omitempty"`
	Preview   string        `json:"preview,omitempty"`
	Clipboard bool          `json:"clipboard"`
	Delegated bool          `json:"delegated,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
}

func (a *app) newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Select a region and save it to a file, the clipboard or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.capture.stdout && a.capture.jsonOutput {
				return errors.New("--stdout and --json cannot be combined")
			}
			if a.capture.delegate && (a.capture.stdout || a.capture.output != "" || a.capture.preview != "") {
				return errors.New("--delegate cannot be combined with --stdout, --output or --preview")
			}
			cfg, err := a.bootstrap(false)
			if err != nil {
				return err
			}
			if a.capture.delegate {
				done, err := a.runDelegated(cmd.Context(), cfg)
				if done || err != nil {
					return err
				}
			}
			return a.runCapture(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&a.capture.output, "output", "o", "", "File to write (default: a generated name in --output-dir)")
	f.BoolVar(&a.capture.stdout, "stdout", false, "Write the encoded image to stdout instead of a file")
	f.BoolVar(&a.capture.jsonOutput, "json", false, "Print capture metadata as JSON")
	f.StringVar(&a.capture.preview, "preview", "", "Also write a scaled preview to this file")
	f.IntVar(&a.capture.previewSize, "preview-size", 320, "Longest edge of the preview in pixels")
	f.String("output-dir", "", "Directory for generated file names")
	f.String("format", "png", "Image format: png, jpeg, bmp, tiff")
	f.Bool("clipboard", false, "Copy the capture to the clipboard")
	f.Int("deadline", 20, "Seconds allowed for capturing and saving after the selection")
	f.BoolVar(&a.capture.delegate, "delegate", false, "Hand the capture to a running resident instance if there is one")
	return cmd
}

// runDelegated asks a resident instance to run the capture. It reports
// false when no resident is running.
func (a *app) runDelegated(ctx context.Context, cfg *config.Config) (bool, error) {
	log := logutil.WithComponent("capture")
	delegated, path, err := a.newClient().TryCapture(ctx, singleinstance.Request{CopyToClipboard: cfg.CopyToClipboard})
	if err != nil {
		return true, fmt.Errorf("delegated capture failed: %w", err)
	}
	if !delegated {
		log.Info().Msg("no resident instance, capturing locally")
		return false, nil
	}
	log.Info().Str("path", path).Msg("capture delegated to resident instance")

	if a.capture.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(CaptureResult{Path: path, Clipboard: cfg.CopyToClipboard, Delegated: true}); err != nil {
			return true, fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return true, nil
	}
	if path != "" {
		fmt.Fprintln(a.stdout, path)
	}
	return true, nil
}

func (a *app) runCapture(ctx context.Context, cfg *config.Config) error {
	format, err := storage.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}
	sel, err := a.selector(cfg)
	if err != nil {
		return err
	}
	ctrl, err := session.NewController(session.Options{
		Selector: sel,
		Capturer: a.capturer,
		Saver:    storage.FileSaver{DefaultFormat: format},
		Ratio:    cfg.Ratio,
	})
	if err != nil {
		return err
	}

	opts := session.ExecuteOptions{
		Deadline: cfg.CaptureDeadline,
		Format:   format,
	}
	switch {
	case a.capture.stdout:
		opts.Targets = append(opts.Targets, session.WriterTarget{Writer: a.stdout, Format: format})
	case a.capture.output != "":
		opts.OutputPath = a.capture.output
	default:
		opts.OutputDir = cfg.OutputDir
	}
	if cfg.CopyToClipboard {
		if err := a.initClipboard(); err != nil {
			return fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		opts.Targets = append(opts.Targets, session.ClipboardTarget{})
	}

	res, err := ctrl.Execute(ctx, opts)
	if err != nil {
		return err
	}

	out := CaptureResult{
		ID:        res.Capture.ID.String(),
		Bounds:    res.Capture.Bounds,
		Path:      res.Path,
		Clipboard: cfg.CopyToClipboard,
		Timestamp: res.Capture.TakenAt.UTC().Format(time.RFC3339),
	}
	if a.capture.preview != "" {
		img, err := ctrl.Preview(a.capture.previewSize, a.capture.previewSize)
		if err != nil {
			return err
		}
		if err := (storage.FileSaver{DefaultFormat: format}).Save(img, a.capture.preview); err != nil {
			return fmt.Errorf("%w: %w", session.ErrPersistenceFailure, err)
		}
		out.Preview = a.capture.preview
	}

	switch {
	case a.capture.jsonOutput:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	case a.capture.stdout:
	case res.Path != "":
		fmt.Fprintln(a.stdout, res.Path)
	}
	return nil
}

func (a *app) newResidentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resident",
		Short: "Stay in the tray and capture on a global hotkey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.opts.verbose = true
			cfg, err := a.bootstrap(false)
			if err != nil {
				return err
			}
			return a.runResident(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("hotkey", "Ctrl+Alt+G", "Global hotkey that starts a capture")
	cmd.Flags().String("output-dir", "", "Directory for captures")
	cmd.Flags().Bool("clipboard", false, "Copy captures to the clipboard")
	return cmd
}

func (a *app) runResident(parent context.Context, cfg *config.Config) error {
	log := logutil.WithComponent("resident")
	if cfg.Selector != string(overlay.KindHook) {
		log.Warn().Str("selector", cfg.Selector).Msg("resident mode always uses the hook selector")
	}
	if cfg.CopyToClipboard {
		if err := a.initClipboard(); err != nil {
			return fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	sel, err := a.newSelector(overlay.KindHook)
	if err != nil {
		return err
	}
	ctrl, err := session.NewController(session.Options{
		Selector: sel,
		Capturer: a.capturer,
		Ratio:    cfg.Ratio,
	})
	if err != nil {
		return err
	}
	loop, err := eventloop.New(ctrl, cfg)
	if err != nil {
		return err
	}
	tooltip := fmt.Sprintf("Screen Grab - Press %s to capture", cfg.Hotkey)
	loop.SetDefaultTooltip(tooltip)
	loop.SetStatusSink(tray.Status{})

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := a.newServer()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("another resident instance may already be running: %w", err)
	}
	defer srv.Close()
	loop.AttachServer(srv)
	log.Info().Int("port", srv.Port()).Msg("accepting delegated captures")

	if err := hotkey.Listen(ctx, inputhook.Default, cfg.Hotkey, loop.Trigger); err != nil {
		return err
	}

	loopErr := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		tray.Quit()
		loopErr <- err
	}()

	log.Info().Str("hotkey", cfg.Hotkey).Msg("resident started")
	tray.Run("Screen Grab", cfg.Ratio.Enabled, tray.Callbacks{
		OnCapture:     loop.Trigger,
		OnRatioToggle: loop.SetRatioEnabled,
		OnQuit:        cancel,
	})
	cancel()

	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
