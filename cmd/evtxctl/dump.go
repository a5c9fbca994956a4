package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dumpRecordID uint64
	dumpDebug    bool
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().Uint64Var(&dumpRecordID, "record", 0, "Dump only the record with this identifier")
	cmd.Flags().BoolVar(&dumpDebug, "debug", false, "Use the unbuffered diagnostic printer")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Render event records as XML",
		Long: `The dump command decodes the binary XML body of each record and prints
it as indented XML text.

Example:
  evtxctl dump System.evtx
  evtxctl dump System.evtx --record 4211
  evtxctl dump System.evtx --tolerant`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0])
		},
	}
}

func runDump(path string) error {
	f, err := openLog(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := f.Records()
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}

	type recordXML struct {
		ID  uint64 `json:"id"`
		XML string `json:"xml"`
	}
	var collected []recordXML

	for _, rec := range records {
		if dumpRecordID != 0 && rec.ID != dumpRecordID {
			continue
		}
		if dumpDebug {
			if err := rec.DebugPrint(os.Stdout); err != nil {
				return fmt.Errorf("record %d: %w", rec.ID, err)
			}
			continue
		}
		xml, err := rec.XML()
		if err != nil {
			if tolerant {
				printVerbose("record %d: %v\n", rec.ID, err)
				continue
			}
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		if jsonOut {
			collected = append(collected, recordXML{ID: rec.ID, XML: xml})
			continue
		}
		fmt.Print(xml)
	}

	if jsonOut && !dumpDebug {
		return printJSON(collected)
	}
	return nil
}
