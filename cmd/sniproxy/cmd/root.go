// Package cmd provides the CLI commands for sniproxy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sniproxy",
	Short: "Transparent SNI-routing TLS proxy",
	Long: `sniproxy multiplexes many TLS backends onto a single TCP port
without terminating TLS. It reads the SNI hostname out of each
ClientHello and pipes the raw stream to the Unix socket configured for
that hostname.

The listening socket is inherited on standard input from the service
manager; the working directory is the configuration root, holding one
directory per hostname:

  <root>/<hostname>/tls-socket      backend Unix stream socket
  <root>/<hostname>/send-proxy-v1   optional; presence enables PROXY v1

There are no command-line options.`,
	Version: Version,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runProxy(); err != nil {
			fmt.Fprintf(os.Stderr, "sniproxy: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("sniproxy version {{.Version}}\ncommit: %s\nbuilt: %s\n", Commit, BuildDate))
}
