package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stridestats/internal/logging"
)

var (
	verbosity            int
	dbPath               string
	listenAddr           string
	tokenRefreshInterval time.Duration
	forceReauth          bool
)

var rootCmd = &cobra.Command{
	Use:   "stridestats",
	Short: "Strava stats server - fetch your activities and serve aggregate statistics",
	Long: `stridestats authenticates against the Strava API and serves aggregate
statistics over HTTP: activity and time distributions, run statistics,
workout and running heatmaps, streaks, and mileage/pace trends.

The server runs with:
- Automatic authentication via OAuth (prompts on first run)
- Background token refresh to keep authentication valid
- A JSON stats API under /api/stats and Prometheus metrics on /metrics

On first run, you will be prompted for your Strava API credentials.
Get these from https://www.strava.com/settings/api

Use --force-reauth to re-enter credentials and re-authenticate.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on verbosity before any command runs
		logging.Setup(logging.Level(verbosity))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rtCfg := &RuntimeConfig{
			DBPath:               dbPath,
			ListenAddr:           listenAddr,
			TokenRefreshInterval: tokenRefreshInterval,
			ForceReauth:          forceReauth,
		}

		return Run(rtCfg)
	},
}

func init() {
	// Logging verbosity
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v for debug, -vv for trace with HTTP headers)")

	// Runtime settings as CLI flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "stridestats.db", "path to SQLite database file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address for the stats API")
	rootCmd.PersistentFlags().DurationVar(&tokenRefreshInterval, "token-refresh-interval", 30*time.Minute, "interval between token refresh checks")

	// Force re-authentication
	rootCmd.PersistentFlags().BoolVar(&forceReauth, "force-reauth", false, "force OAuth re-authentication, replacing existing tokens")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
