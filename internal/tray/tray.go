// Package tray provides the desktop status menu for live recognition.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray shows the last recognized sign and toggles live recognition.
type Tray struct {
	onToggle   func(enabled bool)
	onWordMode func(wordMode bool)
	onQuit     func()
	enabled    bool
	wordMode   bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuWordMode *systray.MenuItem
	menuLastSign *systray.MenuItem
}

// New creates a Tray with recognition enabled.
func New(wordMode bool) *Tray {
	return &Tray{
		enabled:  true,
		wordMode: wordMode,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnWordMode sets the callback called when word matching is switched on or off.
func (t *Tray) OnWordMode(fn func(wordMode bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWordMode = fn
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
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Sign Recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(enabledTitle(t.enabled), "Toggle sign recognition")
	t.menuWordMode = systray.AddMenuItem(wordModeTitle(t.wordMode), "Match registered words before letters")
	systray.AddSeparator()

	t.menuLastSign = systray.AddMenuItem("Last: none", "Last recognized sign")
	t.menuLastSign.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuWordMode.ClickedCh:
				t.handleWordMode()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(enabledTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleWordMode() {
	t.mu.Lock()
	t.wordMode = !t.wordMode
	wordMode := t.wordMode
	if t.menuWordMode != nil {
		t.menuWordMode.SetTitle(wordModeTitle(wordMode))
	}
	callback := t.onWordMode
	t.mu.Unlock()

	if callback != nil {
		callback(wordMode)
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

// SetLastSign updates the last recognized sign in the menu.
func (t *Tray) SetLastSign(label string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastSign != nil {
		t.menuLastSign.SetTitle(lastSignTitle(label))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// WordMode reports whether word matching is on.
func (t *Tray) WordMode() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.wordMode
}

func enabledTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func wordModeTitle(wordMode bool) string {
	if wordMode {
		return "Mode: words and letters"
	}
	return "Mode: letters"
}

func lastSignTitle(label string) string {
	if label == "" {
		return "Last: none"
	}
	return "Last: " + label
}
