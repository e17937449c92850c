package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/metronome/internal/config"
)

// RootOptions holds flags shared by every command. Environment variables
// provide the defaults; flags win.
type RootOptions struct {
	Config   config.Config
	Output   string
	LogLevel string

	// KeepSaved is false when tempo flags were given, so saved settings
	// do not override them.
	KeepSaved bool
}

// NewRootCommand creates the metronome CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Load(), KeepSaved: true}

	cmd := &cobra.Command{
		Use:   "metronome",
		Short: "Sample-accurate metronome engine",
		Long: `A metronome engine with accented clicks, bar muting, a local speaker
output, HTTP/WebRTC click streams and an HTTP command bridge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Output != "" {
				out := config.Output(opts.Output)
				if !out.Device() && !out.Stream() && out != config.OutputNone {
					return fmt.Errorf("invalid output %q: must be one of device, stream, both, none", opts.Output)
				}
				opts.Config.Output = out
			}
			if cmd.Flags().Changed("bpm") || cmd.Flags().Changed("beats") {
				opts.KeepSaved = false
			}
			if opts.LogLevel != "" {
				opts.Config.LogLevel = opts.LogLevel
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Output, "output", "", "audio output: device|stream|both|none (default $METRONOME_OUTPUT)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (default $METRONOME_LOG_LEVEL)")
	cmd.PersistentFlags().IntVar(&opts.Config.BPM, "bpm", opts.Config.BPM, "initial tempo")
	cmd.PersistentFlags().IntVar(&opts.Config.BeatsPerBar, "beats", opts.Config.BeatsPerBar, "initial beats per bar")
	cmd.PersistentFlags().StringVar(&opts.Config.DBPath, "db", opts.Config.DBPath, "SQLite database path, empty disables persistence")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))

	return cmd
}
