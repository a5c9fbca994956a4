package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyekrgk/libevtx/evtx"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Show event log file metadata",
		Long: `The info command prints file-level metadata: format version, chunk
count, next record identifier, and the dirty/full state.

Example:
  evtxctl info System.evtx
  evtxctl info System.evtx --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

func runInfo(path string) error {
	f, err := openLog(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info := f.Info()

	if jsonOut {
		return printJSON(info)
	}

	fmt.Printf("Format version: %d.%d\n", info.MajorVersion, info.MinorVersion)
	fmt.Printf("Chunks:         %d\n", info.ChunkCount)
	fmt.Printf("Next record ID: %d\n", info.NextRecordID)
	fmt.Printf("Dirty:          %v\n", info.Dirty)
	fmt.Printf("Full:           %v\n", info.Full)
	return nil
}

// openLog opens path honoring the global tolerance flag.
func openLog(path string) (*evtx.File, error) {
	printVerbose("Opening event log: %s\n", path)
	opts := evtx.DefaultOptions()
	opts.Tolerant = tolerant
	f, err := evtx.OpenWithOptions(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return f, nil
}
