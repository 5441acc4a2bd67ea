/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jfmyers9/tuner/internal/config"
	"github.com/jfmyers9/tuner/internal/control"
	"github.com/spf13/cobra"
)

var (
	controlHost      string
	controlPort      int
	controlBroadcast bool
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the selected station",
	Long:  `Play the station under the player's cursor, replacing whatever is playing.`,
	Args:  cobra.NoArgs,
	RunE:  sendArgs("play"),
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Long:  `Stop playback. Sending stop again resumes the last station.`,
	Args:  cobra.NoArgs,
	RunE:  sendArgs("stop"),
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Toggle pause",
	Long:  `Pause playback, or resume it if paused. Does nothing while stopped.`,
	Args:  cobra.NoArgs,
	RunE:  sendArgs("pause"),
}

// toggleCmd represents the toggle command
var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle between playing and stopped",
	Long: `Toggle playback. If playing, stops. If paused, resumes. If stopped,
plays the selected station, resuming it when it is the last one played.`,
	Args: cobra.NoArgs,
	RunE: sendArgs("toggle"),
}

// volumeCmd represents the volume command
var volumeCmd = &cobra.Command{
	Use:   "volume up|down|<0.0-2.0>",
	Short: "Change playback volume",
	Long: `Step the volume up or down by 0.1, or set it to an absolute level.

Levels are clamped to 0.0 (muted) through 2.0 (double gain).`,
	Args: cobra.ExactArgs(1),
	RunE: sendArgs("volume"),
}

// tuneCmd represents the tune command
var tuneCmd = &cobra.Command{
	Use:   "tune next|prev|<station-id>",
	Short: "Switch station",
	Long: `Switch to the next or previous station, or to a station by id.

Station ids are listed by the stations command.`,
	Args: cobra.ExactArgs(1),
	RunE: sendArgs("tune"),
}

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select up|down",
	Short: "Move the station cursor",
	Long:  `Move the player's station cursor without changing what is playing.`,
	Args:  cobra.ExactArgs(1),
	RunE:  sendArgs("select"),
}

func init() {
	for _, c := range []*cobra.Command{playCmd, stopCmd, pauseCmd, toggleCmd, volumeCmd, tuneCmd, selectCmd} {
		c.Flags().StringVar(&controlHost, "host", "127.0.0.1", "Host running the player")
		c.Flags().IntVarP(&controlPort, "port", "p", 0, "UDP control port (default: config udp_port)")
		c.Flags().BoolVar(&controlBroadcast, "broadcast", false, "Send to every player on the local network")
		rootCmd.AddCommand(c)
	}
}

// sendArgs returns a RunE that sends verb and its arguments to the player
func sendArgs(verb string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		port := controlPort
		if port == 0 {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			port = cfg.UDPPort
		}

		host := controlHost
		if controlBroadcast {
			host = control.BroadcastHost
		}

		line := strings.Join(append([]string{verb}, args...), " ")
		if err := control.Send(ctx, host, port, line); err != nil {
			return fmt.Errorf("failed to send %s: %w", verb, err)
		}

		return nil
	}
}
