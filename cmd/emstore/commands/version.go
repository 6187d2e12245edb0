package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo records the build-time version variables.
func SetVersionInfo(version, commit, date string) {
	buildVersion, buildCommit, buildDate = version, commit, date
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("emstore %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}
