package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/munichmade/sniproxy/internal/hostname"
)

var hashCmd = &cobra.Command{
	Use:   "hash-hostname <hostname>...",
	Short: "Print the hashed directory name for a hostname",
	Long: `Print the hashed lookup key for each hostname, one per line.

When the proxy runs with hashed_keys enabled, backend directories are
named after the BLAKE2b-256 digest of the canonical hostname instead of
the hostname itself. Use this command to compute the directory name:

  mkdir "$(sniproxy hash-hostname example.com)"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			canonical, err := hostname.Canonicalize([]byte(arg))
			if err != nil {
				fmt.Fprintf(os.Stderr, "sniproxy: %q: %v\n", arg, err)
				os.Exit(1)
			}
			fmt.Println(hostname.HashedKey(canonical))
		}
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
