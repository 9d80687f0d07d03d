package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"screen-grab/src/logutil"
)

// Callbacks are invoked from the tray goroutine.
type Callbacks struct {
	OnCapture     func()
	OnRatioToggle func(enabled bool)
	OnQuit        func()
}

var (
	readyMu sync.Mutex
	ready   bool
)

// Run shows the tray icon and blocks until Quit is called. It must run on
// the main goroutine.
func Run(title string, ratioEnabled bool, cb Callbacks) {
	systray.Run(func() { onReady(title, ratioEnabled, cb) }, onExit)
}

// Quit removes the tray icon and makes Run return.
func Quit() {
	systray.Quit()
}

func onReady(title string, ratioEnabled bool, cb Callbacks) {
	log := logutil.WithComponent("tray")

	if icon, err := Icon(); err == nil {
		systray.SetIcon(icon)
	} else {
		log.Warn().Err(err).Msg("failed to render tray icon")
	}
	systray.SetTitle(title)
	systray.SetTooltip(title)

	mCapture := systray.AddMenuItem("Capture Region", "Select a region and capture it")
	mRatio := systray.AddMenuItemCheckbox("Constrain Ratio", "Keep the configured aspect ratio", ratioEnabled)
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	readyMu.Lock()
	ready = true
	readyMu.Unlock()
	log.Info().Msg("tray ready")

	go func() {
		for {
			select {
			case <-mCapture.ClickedCh:
				if cb.OnCapture != nil {
					cb.OnCapture()
				}
			case <-mRatio.ClickedCh:
				enabled := !mRatio.Checked()
				if enabled {
					mRatio.Check()
				} else {
					mRatio.Uncheck()
				}
				if cb.OnRatioToggle != nil {
					cb.OnRatioToggle(enabled)
				}
			case <-mQuit.ClickedCh:
				if cb.OnQuit != nil {
					cb.OnQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

func onExit() {
	readyMu.Lock()
	ready = false
	readyMu.Unlock()
}

// UpdateTooltip sets the tray tooltip once the tray is running.
func UpdateTooltip(text string) {
	readyMu.Lock()
	defer readyMu.Unlock()
	if ready {
		systray.SetTooltip(text)
	}
}

// Status adapts the tray tooltip to the event loop's status sink.
type Status struct{}

func (Status) UpdateTooltip(text string) { UpdateTooltip(text) }
