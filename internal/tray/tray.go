// Package tray provides the system tray menu for choosing jewelry, the
// tracked finger and calibration.
package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

// Controller is the tracking state the menu drives. *tracking.Publisher
// implements it.
type Controller interface {
	State() tracking.State
	SetJewelry(j tracking.Jewelry) error
	SetFinger(f tracking.Finger) error
	EnterCalibrationMode()
	ExitCalibrationMode()
	ResetCalibration() tracking.CalibrationData
}

var (
	jewelryOrder = []tracking.Jewelry{tracking.JewelryRing, tracking.JewelryBracelet, tracking.JewelryNecklace}
	fingerOrder  = []tracking.Finger{
		tracking.FingerThumb, tracking.FingerIndex, tracking.FingerMiddle, tracking.FingerRing, tracking.FingerPinky,
	}
)

// Tray represents the system tray application. It also implements
// tracking.Sink to show whether the target is tracked.
type Tray struct {
	ctrl Controller
	log  logrus.FieldLogger

	mu         sync.RWMutex
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	status     string

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuStatus      *systray.MenuItem
	menuCalibration *systray.MenuItem
	menuJewelry     map[tracking.Jewelry]*systray.MenuItem
	menuFingers     map[tracking.Finger]*systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New(ctrl Controller, log logrus.FieldLogger) *Tray {
	return &Tray{
		ctrl:    ctrl,
		log:     log.WithField("component", "tray"),
		enabled: true,
		status:  statusWaiting,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray menu and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady builds the menu once the tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle("Try-on")
	systray.SetTooltip("Jewelry try-on tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume tracking")
	t.menuStatus = systray.AddMenuItem(t.status, "Tracking status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	jewelry := systray.AddMenuItem("Jewelry", "Jewelry to place")
	t.menuJewelry = make(map[tracking.Jewelry]*systray.MenuItem, len(jewelryOrder))
	for _, j := range jewelryOrder {
		t.menuJewelry[j] = jewelry.AddSubMenuItemCheckbox(jewelryTitle(j), "", false)
	}

	fingers := systray.AddMenuItem("Finger", "Finger that wears the ring")
	t.menuFingers = make(map[tracking.Finger]*systray.MenuItem, len(fingerOrder))
	for _, f := range fingerOrder {
		t.menuFingers[f] = fingers.AddSubMenuItemCheckbox(fingerTitle(f), "", false)
	}
	systray.AddSeparator()

	t.menuCalibration = systray.AddMenuItemCheckbox("Calibration Mode", "Measure finger and wrist widths", false)
	menuReset := systray.AddMenuItem("Reset Calibration", "Restore default widths")
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit try-on")
	t.mu.Unlock()

	t.syncChecks()

	// Handle menu item clicks in separate goroutines
	for j, item := range t.menuJewelry {
		go listen(item, func() { t.SelectJewelry(j) })
	}
	for f, item := range t.menuFingers {
		go listen(item, func() { t.SelectFinger(f) })
	}
	go listen(t.menuToggle, t.handleToggle)
	go listen(t.menuCalibration, t.ToggleCalibration)
	go listen(menuReset, t.ResetCalibration)
	go listen(menuSettings, t.handleSettings)
	go func() {
		<-menuQuit.ClickedCh
		t.handleQuit()
	}()
}

func listen(item *systray.MenuItem, fn func()) {
	for range item.ClickedCh {
		fn()
	}
}

// SelectJewelry switches the jewelry type.
func (t *Tray) SelectJewelry(j tracking.Jewelry) {
	if err := t.ctrl.SetJewelry(j); err != nil {
		t.log.WithError(err).Warn("failed to select jewelry")
	}
	t.syncChecks()
}

// SelectFinger switches the tracked finger.
func (t *Tray) SelectFinger(f tracking.Finger) {
	if err := t.ctrl.SetFinger(f); err != nil {
		t.log.WithError(err).Warn("failed to select finger")
	}
	t.syncChecks()
}

// ToggleCalibration enters or exits calibration mode.
func (t *Tray) ToggleCalibration() {
	if t.ctrl.State().CalibrationMode {
		t.ctrl.ExitCalibrationMode()
	} else {
		t.ctrl.EnterCalibrationMode()
	}
	t.syncChecks()
}

// ResetCalibration restores the default widths.
func (t *Tray) ResetCalibration() {
	t.ctrl.ResetCalibration()
}

// syncChecks mirrors the controller state into the check marks. Selections
// may also change through the HTTP API, so the state is always re-read.
func (t *Tray) syncChecks() {
	state := t.ctrl.State()

	t.mu.RLock()
	defer t.mu.RUnlock()

	for j, item := range t.menuJewelry {
		setChecked(item, j == state.Jewelry)
	}
	for f, item := range t.menuFingers {
		setChecked(item, f == state.Finger)
		if state.Jewelry == tracking.JewelryRing {
			item.Enable()
		} else {
			item.Disable()
		}
	}
	if t.menuCalibration != nil {
		setChecked(t.menuCalibration, state.CalibrationMode)
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	// Update menu item text based on new state
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Publish implements tracking.Sink. Only position and lost events change
// the status line.
func (t *Tray) Publish(_ context.Context, e tracking.Event) error {
	var status string
	switch ev := e.(type) {
	case tracking.PositionEvent:
		status = trackingStatus(ev.Jewelry, ev.Position)
	case tracking.LostEvent:
		status = statusLost
	default:
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if status == t.status {
		return nil
	}
	t.status = status
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(status)
	}
	return nil
}

// Status returns the status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
