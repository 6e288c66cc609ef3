package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/update"
	"github.com/pthm/easyrls/internal/version"
)

var (
	versionShort bool
	versionCheck bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Example: `  # Print the version and look for a newer release
  easyrls version --check`,
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Println(version.Short())
		} else {
			fmt.Println(version.Info())
		}
		if versionCheck {
			checkForUpdate()
		}
	},
}

// checkForUpdate reports a newer release on stderr. Failures show at -v.
func checkForUpdate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := update.CheckWithCache(ctx)
	if err != nil {
		debugf("Update check failed: %v", err)
		return
	}
	if !info.UpdateAvailable {
		logf("easyrls is up to date")
		return
	}
	logf("Update available: %s -> %s", info.CurrentVersion, info.LatestVersion)
	if info.ReleaseURL != "" {
		logf("  %s", info.ReleaseURL)
	}
}

func init() {
	f := versionCmd.Flags()
	f.BoolVar(&versionShort, "short", false, "print only the version")
	f.BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
	rootCmd.Version = version.Short()
}
