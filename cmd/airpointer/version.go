package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "airpointer %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "go         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(cmd.OutOrStdout(), "gocv       %s\n", gocv.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "opencv     %s\n", gocv.OpenCVVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
