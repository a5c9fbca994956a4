package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	recordsLimit int
	recordsSince string
)

func init() {
	cmd := newRecordsCmd()
	cmd.Flags().IntVar(&recordsLimit, "limit", 0, "Maximum number of records to list (0 = unlimited)")
	cmd.Flags().StringVar(&recordsSince, "since", "", "Only records written at or after this time (RFC 3339)")
	rootCmd.AddCommand(cmd)
}

func newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <file>",
		Short: "List event records",
		Long: `The records command lists record identifiers and written times without
decoding the record bodies.

Example:
  evtxctl records System.evtx
  evtxctl records System.evtx --limit 20
  evtxctl records System.evtx --since 2024-01-01T00:00:00Z --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(args[0])
		},
	}
}

func runRecords(path string) error {
	f, err := openLog(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var since time.Time
	if recordsSince != "" {
		since, err = time.Parse(time.RFC3339, recordsSince)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
	}

	records, err := f.Records()
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}

	type recordInfo struct {
		ID      uint64    `json:"id"`
		Written time.Time `json:"written"`
	}

	var listed []recordInfo
	for _, rec := range records {
		if !since.IsZero() && rec.Written.Before(since) {
			continue
		}
		listed = append(listed, recordInfo{ID: rec.ID, Written: rec.Written})
		if recordsLimit > 0 && len(listed) >= recordsLimit {
			break
		}
	}

	if jsonOut {
		return printJSON(listed)
	}

	for _, r := range listed {
		fmt.Printf("%10d  %s\n", r.ID, r.Written.Format(time.RFC3339Nano))
	}
	if !quiet {
		fmt.Printf("%d record(s)\n", len(listed))
	}
	return nil
}
