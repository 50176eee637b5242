package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	store      string
	debug      bool
}

var globals globalOptions

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
}

func newRootCmd() *cobra.Command {
	globals = globalOptions{}

	cmd := &cobra.Command{
		Use:   "calbridge",
		Short: "Read and edit your calendars from the terminal or an AI assistant",
		Long: `calbridge gives command-line and MCP access to a calendar store.

It can run as:
  - A CLI for listing, searching and editing events
  - An MCP (Model Context Protocol) server for AI assistants (calbridge serve)

The first command that touches the calendar asks for access and remembers the
answer. Use "calbridge authorize --reset" to be asked again.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(`{{printf "calbridge version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&globals.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/calbridge/config.yaml). Can also use CALBRIDGE_CONFIG env var.")
	cmd.PersistentFlags().StringVar(&globals.store, "store", "", "Calendar store: caldav or memory. Overrides the config file.")
	cmd.PersistentFlags().BoolVar(&globals.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newAuthorizeCmd(),
		newCalendarsCmd(),
		newTodayCmd(),
		newWeekCmd(),
		newSearchCmd(),
		newShowCmd(),
		newAddCmd(),
		newEditCmd(),
		newRmCmd(),
		newServeCmd(),
		newVersionCmd(),
		newGenerateDocsCmd(),
	)
	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		newPrinter(root.ErrOrStderr()).errorLine(err)
		os.Exit(1)
	}
}
