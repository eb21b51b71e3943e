package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "supportchat-cli",
		Short: "Terminal client for the customer support chat",
		Long:  "supportchat-cli drives the support conversation from a terminal: menus, FAQs, inquiries and voice input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (overrides SUPPORTCHAT_CONFIG)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before the environment")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "supportchat-cli %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
