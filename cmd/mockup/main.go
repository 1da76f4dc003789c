// Command mockup renders merchandise mockups from the command line.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pocket-curator/internal/app"
	"pocket-curator/internal/config"
	"pocket-curator/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mockup",
	Short: "Render artwork mockups on merchandise photos",
	Long: `mockup places an artwork image on a product photo and exports the
composite at the photo's native resolution.

Placement is given as a normalized center (0..1 on each axis) and a scale
factor between 0.2 and 3.0, the same values the desktop viewer produces.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		var err error
		var level zap.AtomicLevel
		logger, level, err = logging.New(logging.Options{})
		if err != nil {
			return err
		}
		if verbose {
			level.SetLevel(zap.DebugLevel)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(composeCmd, overlayCmd, removeBgCmd, productsCmd, versionCmd)
}

// newState loads the settings and builds the shared services.
func newState() (*app.State, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !verbose {
		if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
			logger = logger.WithOptions(zap.IncreaseLevel(lvl))
		}
	}
	return app.NewState(cfg, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
