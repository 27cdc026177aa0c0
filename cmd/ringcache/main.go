// Command ringcache drives the consistent-hashing cache from the command line:
// a synthetic benchmark with optional membership churn, a ring distribution
// report, and the version.
//
// Every flag can also be set through the environment as RINGCACHE_<flag>
// (e.g. RINGCACHE_MAX_CACHE_SIZE=5000); .env and .env.local are read first.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ringcache",
		Short: "consistent-hashing in-memory cache",
		Long: fmt.Sprintf(`ringcache (v%s)

An in-memory key/value cache that spreads keys over named nodes with
consistent hashing, bounded per-node LRU stores and optional replication.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ringcache",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ringcache v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(benchCmd)
	RootCmd.AddCommand(ringCmd)
	RootCmd.AddCommand(versionCmd)

	setupCacheFlags(RootCmd)
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
