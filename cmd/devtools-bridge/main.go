// Command devtools-bridge runs the HTTP/WebSocket bridge that multiplexes
// JSON-RPC tool calls onto a single browser agent connection.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "devtools-bridge",
		Short: "Bridge JSON-RPC/MCP tool calls to a browser devtools agent over WebSocket",
		Long: `devtools-bridge exposes a JSON-RPC 2.0 endpoint (POST /mcp) backed by a
single persistent WebSocket connection to a browser extension. Tool calls
such as get_dom_snapshot or capture_screenshot are correlated by request id,
dispatched to whichever agent is currently attached, and the reply is shaped
back into an MCP tool result.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("devtools-bridge " + version)
		},
	}
}
