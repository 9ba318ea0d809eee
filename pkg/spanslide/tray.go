package spanslide

import (
	"github.com/getlantern/systray"

	"github.com/ronlev/spanslide/pkg/spanslide/util"
)

func (s *Spanslide) initializeTray(onDone func()) {
	logger := s.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTitle("spanslide")
		systray.SetTooltip("spanslide")

		editConfig := systray.AddMenuItem("Edit configuration", "Open config file with your editor")

		resetWidgets := systray.AddMenuItem("Reset widget ranges", "Rebuild all widgets from the current config")

		if s.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(s.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem("Quit", "Stop spanslide and quit")

		// wait on things to happen
		go func() {
			for {
				select {

				// quit
				case <-quit.ClickedCh:
					logger.Info("Quit menu item clicked, stopping")

					s.signalStop()

				// edit config
				case <-editConfig.ClickedCh:
					logger.Info("Edit config menu item clicked, opening config for editing")

					editor := "notepad.exe"
					if util.Linux() {
						editor = "gedit"
					}

					if err := util.OpenExternal(logger, editor, userConfigFilepath); err != nil {
						logger.Warnw("Failed to open config file for editing", "error", err)
					}

				// reset widgets
				case <-resetWidgets.ClickedCh:
					logger.Info("Reset menu item clicked, rebuilding widgets from config")

					// performance: users can't spam the right-click -> select-this-option
					// sequence at a rate that's meaningful to performance
					s.widgets.buildWidgets()
				}
			}
		}()

		// actually start the main runtime
		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	// start the tray icon
	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (s *Spanslide) stopTray() {
	s.logger.Debug("Quitting tray")
	systray.Quit()
}
