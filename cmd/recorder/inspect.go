package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exphon/speech-recording-app/internal/audio"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wav>",
	Short: "Print the format of a canonical WAV file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		info, err := audio.GetWAVInfo(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
