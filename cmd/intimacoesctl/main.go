package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "intimacoesctl",
		Short:         "Operations tool for the intimação pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(deadlinesCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(deactivateCmd())
	rootCmd.AddCommand(genkeyCmd())
	rootCmd.AddCommand(encryptCheckCmd())

	return rootCmd
}
