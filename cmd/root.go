package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the lever-mcp application
var rootCmd = &cobra.Command{
	Use:   "lever-mcp",
	Short: "MCP server for Lever recruiting and themed Gmail email",
	Long: `lever-mcp is a Model Context Protocol (MCP) server that exposes Lever
recruiting operations (candidates, requisitions, postings, notes) and
themed email sending through Gmail to AI assistants.

Google access is mediated through the server's own OAuth endpoints, so
MCP clients and browser agents never handle Google credentials directly.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "lever-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
