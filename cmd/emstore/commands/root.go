// Package commands implements the emstore CLI: small inspection tools for
// external-memory container directories.
package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marmos91/emstore/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "emstore",
	Short: "Inspect external-memory container directories",
	Long: `emstore inspects the on-disk state of external-memory containers:
persistent maps (index.bin, keys.bin, values.bin) and persistent
sequences (index.bin, values.bin).

Examples:
  # Show header fields and file sizes
  emstore stat /var/data/m1

  # Dump entries
  emstore dump /var/data/m1 --limit 10

Environment Variables:
  The --log-level and --log-format flags can be set through the
  environment with the EMSTORE_ prefix, e.g. EMSTORE_LOG_LEVEL=DEBUG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Config{
			Level:  viper.GetString("log-level"),
			Format: viper.GetString("log-format"),
		})
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	viper.SetEnvPrefix("EMSTORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
