// Package tray provides the system tray menu: a detection toggle and the
// current device state.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu. It implements gesture.Handler so the device
// label follows emitted events.
type Tray struct {
	mu         sync.RWMutex
	enabled    bool
	device     string // "on", "off" or "" before the first event
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()

	menuToggle *systray.MenuItem
	menuDevice *systray.MenuItem
}

// New creates a Tray showing the given detection state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback run when detection is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback run when "Open Settings..." is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run shows the tray icon. It blocks until Quit and must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handswitch")
	systray.SetTooltip("Hand gesture switch")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture detection")
	systray.AddSeparator()
	t.menuDevice = systray.AddMenuItem(deviceTitle(t.device), "Last switched device state")
	t.menuDevice.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit handswitch")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
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

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetEnabled updates the toggle without running the callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// OnOpen marks the device as on.
func (t *Tray) OnOpen(ts float64) error {
	t.setDevice("on")
	return nil
}

// OnClose marks the device as off.
func (t *Tray) OnClose(ts float64) error {
	t.setDevice("off")
	return nil
}

func (t *Tray) setDevice(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.device = state
	if t.menuDevice != nil {
		t.menuDevice.SetTitle(deviceTitle(state))
	}
}

// DeviceLabel returns the text of the device menu item.
func (t *Tray) DeviceLabel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return deviceTitle(t.device)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Detection on"
	}
	return "○ Detection off"
}

func deviceTitle(state string) string {
	if state == "" {
		return "Device: unknown"
	}
	return "Device: " + state
}
