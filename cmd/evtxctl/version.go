package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const toolVersion = "0.1.0"

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	}
}

func runVersion() error {
	if jsonOut {
		return printJSON(map[string]string{
			"version":  toolVersion,
			"go":       runtime.Version(),
			"platform": runtime.GOOS + "/" + runtime.GOARCH,
		})
	}
	fmt.Printf("evtxctl %s (%s, %s/%s)\n",
		toolVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
