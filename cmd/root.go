/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tuner",
	Short: "Terminal internet radio player for SomaFM",
	Long: `tuner is a terminal internet radio player for the SomaFM directory.

It streams stations through the local audio device and keeps playing
through flaky networks by detecting stalls and reconnecting.

A running player can be controlled from other shells with the play, stop,
pause, toggle, volume, tune and select commands, which send UDP datagrams
to the player's control port. The now command prints the current station
for status bars.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
