// Package spanslide provides the interaction engine behind dual-thumb range
// sliders: drag geometry in, debounced quantized (lower, upper) ranges out.
// It ships with the plumbing that makes that engine usable as a standalone
// process, where drag samples arrive from a serial line or a UDP socket and
// applied ranges fan out to whoever subscribes, including a terminal
// preview screen.
package spanslide

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/util"
)

const (

	// when this is set to anything, spanslide won't use a tray icon
	envNoTray = "SPANSLIDE_NO_TRAY_ICON"
)

// Spanslide is the main entity managing access to all sub-components
type Spanslide struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	config   *CanonicalConfig
	feed     ThumbFeed
	widgets  *widgetMap

	stopChannel chan bool
	version     string
	verbose     bool
	demo        bool
	usingTray   bool
}

// NewSpanslide creates a Spanslide instance
func NewSpanslide(logger *zap.SugaredLogger, verbose bool) (*Spanslide, error) {
	logger = logger.Named("spanslide")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	s := &Spanslide{
		logger:   logger,
		notifier: notifier,
		config:   config,

		// buffered so a stop signaled from the run loop's own panic
		// recovery doesn't block with nobody left to receive it
		stopChannel: make(chan bool, 1),
		verbose:     verbose,
	}

	widgets, err := newWidgetMap(s, logger)
	if err != nil {
		logger.Errorw("Failed to create widgetMap", "error", err)
		return nil, fmt.Errorf("create new widgetMap: %w", err)
	}

	s.widgets = widgets

	logger.Debug("Created spanslide instance")

	return s, nil
}

// Initialize sets up components and starts to run in the background
func (s *Spanslide) Initialize() error {
	s.logger.Debug("Initializing")

	// load the config for the first time
	if err := s.config.Load(); err != nil {
		s.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	// the feed type is a config value, so this can only happen after the
	// first load. changing the type afterwards requires a restart; the
	// feeds renew their own connection parameters on reload
	if err := s.createFeed(); err != nil {
		s.logger.Errorw("Failed to create feed during initialization", "error", err)
		return fmt.Errorf("create feed during init: %w", err)
	}

	// initialize the widget map
	if err := s.widgets.initialize(); err != nil {
		s.logger.Errorw("Failed to initialize widget map", "error", err)
		return fmt.Errorf("init widget map: %w", err)
	}

	// decide how to present ourselves: the preview screen takes over the
	// terminal, otherwise we sit in the tray unless asked not to
	if s.demo {
		s.logger.Debug("Running with terminal preview screen")

		s.setupInterruptHandler()
		s.run()

	} else if _, noTraySet := os.LookupEnv(envNoTray); noTraySet {

		s.logger.Debugw("Running without tray icon", "reason", "envvar set")

		// run in main thread while waiting on ctrl+C
		s.setupInterruptHandler()
		s.run()

	} else {
		s.usingTray = true

		s.setupInterruptHandler()
		s.initializeTray(s.run)
	}

	return nil
}

// SetVersion causes spanslide to add a version string to its tray menu if called before Initialize
func (s *Spanslide) SetVersion(version string) {
	s.version = version
}

// SetDemoMode causes spanslide to take over the terminal with an interactive
// preview screen instead of using the tray icon, if called before Initialize
func (s *Spanslide) SetDemoMode(demo bool) {
	s.demo = demo
}

// Verbose returns a boolean indicating whether spanslide is running in verbose mode
func (s *Spanslide) Verbose() bool {
	return s.verbose
}

func (s *Spanslide) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		s.logger.Debugw("Interrupted", "signal", signal)
		s.signalStop()
	}()
}

// createFeed picks the drag source according to config. A nil feed (off) is
// valid, the widgets are still drivable programmatically and from the
// preview screen.
func (s *Spanslide) createFeed() error {
	switch s.config.Feed {
	case feedSerial:
		feed, err := NewSerialFeed(s, s.logger)
		if err != nil {
			return fmt.Errorf("create serial feed: %w", err)
		}

		s.feed = feed
	case feedUDP:
		feed, err := NewUDPFeed(s, s.logger)
		if err != nil {
			return fmt.Errorf("create udp feed: %w", err)
		}

		s.feed = feed
	case feedOff:
		s.logger.Debug("Feed is off, widgets will only move by other means")
	}

	return nil
}

func (s *Spanslide) run() {
	s.logger.Info("Run loop starting")
	defer s.recoverFromPanic()

	// watch the config file for changes
	go s.config.WatchConfigFileChanges()

	// start the feed for the first time
	if s.feed != nil {
		go func() {
			if err := s.feed.Start(); err != nil {
				s.logger.Warnw("Failed to start first-time feed connection", "error", err)

				// If the port is busy, that's because something else is connected - notify and quit
				if errors.Is(err, os.ErrPermission) {
					s.logger.Warnw("Serial port seems busy, notifying user and closing",
						"comPort", s.config.ConnectionInfo.COMPort)

					s.notifier.Notify(fmt.Sprintf("Can't connect to %s!", s.config.ConnectionInfo.COMPort),
						"This serial port is busy, make sure to close any serial monitor or other spanslide instance.")

					s.signalStop()

					// also notify if the COM port they gave isn't found, maybe their config is wrong
				} else if errors.Is(err, os.ErrNotExist) {
					s.logger.Warnw("Provided COM port seems wrong, notifying user and closing",
						"comPort", s.config.ConnectionInfo.COMPort)

					s.notifier.Notify(fmt.Sprintf("Can't connect to %s!", s.config.ConnectionInfo.COMPort),
						"This serial port doesn't exist, check your configuration and make sure it's set correctly.")

					s.signalStop()
				}
			}
		}()
	}

	// take over the terminal with the preview screen, if requested
	if s.demo {
		go func() {
			defer s.recoverFromPanic()

			if err := s.runDemo(); err != nil {
				s.logger.Warnw("Preview screen exited with error", "error", err)
			}

			s.signalStop()
		}()
	}

	// wait until stopped (gracefully)
	<-s.stopChannel
	s.logger.Debug("Stop channel signaled, terminating")

	if err := s.stop(); err != nil {
		s.logger.Warnw("Failed to stop spanslide", "error", err)
		os.Exit(1)
	} else {
		// exit with 0
		os.Exit(0)
	}
}

func (s *Spanslide) signalStop() {
	s.logger.Debug("Signalling stop channel")
	s.stopChannel <- true
}

func (s *Spanslide) stop() error {
	s.logger.Info("Stopping")

	s.config.StopWatchingConfigFile()

	if s.feed != nil {
		s.feed.Stop()
	}

	// release the widget map so pending debounces die quietly
	if err := s.widgets.release(); err != nil {
		s.logger.Errorw("Failed to release widget map", "error", err)
		return fmt.Errorf("release widget map: %w", err)
	}

	if s.usingTray {
		s.stopTray()
	}

	// attempt to sync on exit - this won't necessarily work but can't harm
	s.logger.Sync()

	return nil
}
