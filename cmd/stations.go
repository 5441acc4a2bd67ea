/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/jfmyers9/tuner/internal/config"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultStationsFormat = "{{.ID}}\t{{.Title}}{{if .Genre}} ({{.Genre}}){{end}}"

var (
	stationsFormat  string
	stationsWidth   int
	stationsRefresh bool
	stationsDataDir string
)

// stationsCmd represents the stations command
var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List SomaFM stations",
	Long: `List the stations in the SomaFM directory, one per line.

The directory is served from the cache in the data directory while it is
fresh. Use --refresh to fetch it again. Available template fields: .ID,
.Title, .Description, .DJ, .Genre, .URL, .LastPlaying`,
	Args: cobra.NoArgs,
	RunE: runStations,
}

func init() {
	rootCmd.AddCommand(stationsCmd)

	stationsCmd.Flags().StringVarP(&stationsFormat, "format", "f", defaultStationsFormat, "Output format template for each station")
	stationsCmd.Flags().IntVarP(&stationsWidth, "width", "w", 0, "Fixed width for each line (0=disabled)")
	stationsCmd.Flags().BoolVar(&stationsRefresh, "refresh", false, "Fetch the directory even if the cache is fresh")
	stationsCmd.Flags().StringVar(&stationsDataDir, "data-dir", "", "Data directory for the station cache (default: ~/.local/share/tuner)")
}

func runStations(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := stationsDataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Only warnings reach the terminal
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	directory, closeDir := newDirectory(cfg, dataDir, logger)
	defer closeDir()

	var list []radio.Station
	if stationsRefresh {
		list, err = directory.Refresh(ctx)
	} else {
		list, err = directory.FetchAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load stations: %w", err)
	}

	return writeStations(cmd.OutOrStdout(), list, stationsFormat, stationsWidth)
}

// writeStations renders one line per station
func writeStations(w io.Writer, list []radio.Station, format string, width int) error {
	tmpl, err := template.New("station").Parse(format)
	if err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	for _, st := range list {
		buf.Reset()
		if err := tmpl.Execute(&buf, st); err != nil {
			return fmt.Errorf("template execution failed: %w", err)
		}
		if _, err := fmt.Fprintln(w, padToWidth(buf.String(), width)); err != nil {
			return err
		}
	}
	return nil
}
