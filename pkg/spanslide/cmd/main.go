package main

import (
	"flag"
	"fmt"

	"github.com/ronlev/spanslide/pkg/spanslide"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose bool
	demo    bool
)

func init() {
	flag.BoolVar(&verbose, "verbose", false, "show verbose logs (useful for debugging the feed)")
	flag.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	flag.BoolVar(&demo, "demo", false, "run the interactive terminal preview instead of the tray")
	flag.Parse()
}

func main() {

	// first we need a logger
	logger, err := spanslide.NewLogger(buildType)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	// provide a fair warning if the user's running in verbose mode
	if verbose {
		named.Debug("Verbose flag provided, all log messages will be shown")
	}

	// create the spanslide instance
	s, err := spanslide.NewSpanslide(logger, verbose)
	if err != nil {
		named.Fatalw("Failed to create spanslide object", "error", err)
	}

	s.SetDemoMode(demo)

	// if injected by build process, set version info to show up in the tray
	if buildType != "" && (versionTag != "" || gitCommit != "") {
		identifier := gitCommit
		if versionTag != "" {
			identifier = versionTag
		}

		versionString := fmt.Sprintf("Version %s-%s", buildType, identifier)
		s.SetVersion(versionString)
	}

	// onwards, to glory
	if err = s.Initialize(); err != nil {
		named.Fatalw("Failed to initialize spanslide", "error", err)
	}
}
