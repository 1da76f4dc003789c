// Package main provides the entry point for the Pocket Curator mockup viewer.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fyneapp "fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"pocket-curator/internal/app"
	"pocket-curator/internal/config"
	"pocket-curator/internal/logging"
	"pocket-curator/internal/version"
	"pocket-curator/ui/mainwindow"
	"pocket-curator/ui/prefs"
)

const appID = "com.pocketcurator.mockup"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the settings file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [artwork [title]]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := logging.New(logging.Options{Level: cfg.LogLevel, Development: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		level.SetLevel(zap.DebugLevel)
	}
	logger.Info("Starting Pocket Curator", zap.String("version", version.String()))

	appState, err := app.NewState(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer appState.Close()
	appState.ConfigPath = *configPath

	appPrefs := prefs.Load()

	// Handle command line arguments
	artwork := appPrefs.String(prefs.KeyArtwork, "")
	if flag.NArg() > 0 {
		artwork = flag.Arg(0)
	}
	if artwork != "" {
		title := strings.TrimSuffix(filepath.Base(artwork), filepath.Ext(artwork))
		if flag.NArg() > 1 {
			title = flag.Arg(1)
		}
		appState.SetArtwork(artwork, title)
	}

	if cfg.WatchCatalog {
		if err := appState.WatchCatalog(); err != nil {
			logger.Warn("Catalog watch disabled", zap.Error(err))
		}
	}

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.CuratorTheme{})

	win := mainwindow.New(fyneApp, appState, appPrefs)
	win.ShowAndRun()
}
