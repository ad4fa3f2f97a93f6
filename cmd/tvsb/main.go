package main

import (
	"AkhilTG/tvsb/config"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var versionString = "2.0.0"

var rootCmd = &cobra.Command{
	Use:   "tvsb",
	Short: "Telegram stream gateway: republish Telegram media as streamable URLs.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionString)
	},
}

func main() {
	config.SetFlagsFromConfig(runCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
