package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tuner",
	Short: "Adaptive tuning of temperature, top_k and top_p",
	Long: `tuner adjusts LLM sampling parameters turn by turn from a reward signal.

Commands:
  serve    Run the gRPC tuner service
  replay   Replay a fixture or a recorded trial through a fresh policy
  inspect  Show checkpoints and turns stored for a trial
  export   Write a recorded trial out as a replay fixture
  rollback Point a trial's active checkpoint at an earlier version`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
}

// #region main
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
// #endregion main
