package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vsariola/quanta/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of quanta",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("quanta", version.VersionOrHash)
	},
}

func init() {
	rootCmd.Version = version.VersionOrHash
	rootCmd.AddCommand(versionCmd)
}
