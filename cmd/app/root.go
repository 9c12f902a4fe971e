package app

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./cmd/app/config.yml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hadathub",
	Short: "Event ticketing capacity and scheduling engine",
	Long: `Hadathub admits ticket purchases against per-event capacity, keeps
venue schedules free of overlaps and checks attendees in at the gate.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the config file")
}
