package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/TitanMedia/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the titan version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "titan %s\n", version.Version)
		},
	}
}
