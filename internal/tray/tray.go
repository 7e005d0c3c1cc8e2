// Package tray is the menu bar front end of the service.
package tray

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/app"
	"github.com/petems/micstream/internal/audio"
	"github.com/petems/micstream/internal/capture"
	"github.com/petems/micstream/internal/config"
)

const pollInterval = 500 * time.Millisecond

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger
	logPath string

	mStatus    *systray.MenuItem
	mDevices   *systray.MenuItem
	mCopyUID   *systray.MenuItem
	mUnmirror  *systray.MenuItem
	mMicAccess *systray.MenuItem
}

func New(application *app.App, cfg *config.Config, log zerolog.Logger, logPath, version, commit string) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
		logPath: logPath,
	}
}

// Run blocks until Quit is chosen or ctx is cancelled. It must be called
// from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(func() { u.onReady(ctx) }, u.onExit)
	return nil
}

func (u *UI) onReady(ctx context.Context) {
	u.updateStatus(capture.Idle)
	systray.SetTooltip("Microphone streaming")

	u.mStatus = systray.AddMenuItem(statusLabel(capture.Idle), "")
	u.mStatus.Disable()
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select the input device for the next stream")
	u.mCopyUID = systray.AddMenuItem("Copy Device UID", "Copy a device UID to the clipboard")
	devices := u.app.Devices()
	u.buildDeviceMenu(devices)
	u.buildCopyMenu(devices)

	systray.AddSeparator()
	u.mUnmirror = systray.AddMenuItem("Remove Aggregate Outputs", "Destroy aggregate devices created by micstream")
	u.mMicAccess = systray.AddMenuItem("Request Microphone Access", "")

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About micstream")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	go u.pollStatus(ctx)
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mUnmirror.ClickedCh:
			if err := u.app.DestroyAggregateOutput(); err != nil {
				u.log.Error().Err(err).Msg("Failed to remove aggregate outputs")
			}
		case <-u.mMicAccess.ClickedCh:
			if u.app.RequestMicrophoneAccess() {
				u.mMicAccess.SetTitle("Microphone Access Granted")
				u.mMicAccess.Disable()
			}
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) pollStatus(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := capture.Idle
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := u.app.CaptureState()
			if state == last {
				continue
			}
			last = state
			u.updateStatus(state)
			u.mStatus.SetTitle(statusLabel(state))
		}
	}
}

func (u *UI) buildDeviceMenu(devices []audio.Descriptor) {
	deviceItems := make(map[string]*systray.MenuItem)
	selected := u.app.InputDevice()

	for _, dev := range inputs(devices) {
		item := u.mDevices.AddSubMenuItem(dev.Name, dev.ID)
		if dev.ID == selected {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.app.SetInputDevice(deviceID)
				if err := u.saveDevice(deviceID); err != nil {
					u.log.Error().Err(err).Msg("Failed to save config")
				}
				u.log.Info().Str("device", deviceName).Msg("Changed input device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) buildCopyMenu(devices []audio.Descriptor) {
	for _, dev := range devices {
		item := u.mCopyUID.AddSubMenuItem(fmt.Sprintf("%s (%s)", dev.Name, dev.Direction), dev.ID)
		go func(uid string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				if err := clipboard.WriteAll(uid); err != nil {
					u.log.Error().Err(err).Msg("Failed to write clipboard")
					continue
				}
				u.log.Info().Str("uid", uid).Msg("Copied device UID")
			}
		}(dev.ID, item)
	}
}

// saveDevice persists the input device choice to the config file the
// process was started with.
func (u *UI) saveDevice(deviceID string) error {
	u.cfg.Audio.DeviceID = deviceID
	return config.UpdateFile(u.cfg.FilePath(), func(c *config.Config) {
		c.Audio.DeviceID = deviceID
	})
}

// inputs returns the In descriptors of devices.
func inputs(devices []audio.Descriptor) []audio.Descriptor {
	var result []audio.Descriptor
	for _, d := range devices {
		if d.Direction == audio.In {
			result = append(result, d)
		}
	}
	return result
}

func (u *UI) openLogs() {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u.logPath)
	case "windows":
		cmd = exec.Command("explorer", filepath.Dir(u.logPath))
	default:
		cmd = exec.Command("xdg-open", u.logPath)
	}
	if err := cmd.Start(); err != nil {
		u.log.Error().Err(err).Str("path", u.logPath).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("micstream")
	if err := clipboard.WriteAll(fmt.Sprintf("micstream %s (%s)", u.version, u.commit)); err != nil {
		u.log.Debug().Err(err).Msg("Failed to copy version")
	}
}

func (u *UI) onExit() {
	if err := u.app.Shutdown(context.Background()); err != nil {
		u.log.Error().Err(err).Msg("Shutdown error")
	}
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(state capture.State) {
	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForState(state)))
}

func statusLabel(state capture.State) string {
	switch state {
	case capture.Configuring:
		return "Starting capture..."
	case capture.Running:
		return "Streaming"
	case capture.Failed:
		return "Capture failed"
	default:
		return "Idle"
	}
}

// emojiForState returns the status emoji for a capture state
func emojiForState(state capture.State) string {
	switch state {
	case capture.Running:
		return "🔴" // Red - streaming
	case capture.Configuring:
		return "🟡" // Yellow - waiting for the first buffer
	case capture.Failed:
		return "⚪️" // White - error
	default:
		return "🟢" // Green - ready/idle
	}
}
