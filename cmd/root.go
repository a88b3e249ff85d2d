package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kvasir/cmd/kv"
	"kvasir/cmd/serve"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvasir",
		Short: "in-memory key-value server",
		Long: fmt.Sprintf(`kvasir (v%s)

A single-node in-memory key-value server speaking the Redis wire
protocol, built on a readiness-based connection multiplexer.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvasir",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvasir v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
