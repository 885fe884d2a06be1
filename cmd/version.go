// File: cmd/version.go
package cmd

import "github.com/spf13/cobra"

// Version is the application version, set at build time via ldflags:
// go build -ldflags "-X github.com/voidmaw/wayfarer/cmd.Version=1.0.0"
var Version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wayfarer version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("wayfarer %s\n", Version)
		},
	}
}
