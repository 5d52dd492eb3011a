package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	apiURL         string
	keyPath        string
	requestTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mural",
	Short: "Mural - community-funded collaborative canvas",
	Long: `Mural drives seasons of an 8x8 community canvas.

Contributors fund grid regions during the funding phase, artists bid to paint
them and contributors vote during the voting phase, and the winning artists are
paid from the region vaults once the season is finalized.

Every mutating command is signed with your key (--key) and submitted to a
murald instance (--api).`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mural", "key")
	}
	return filepath.Join(home, ".mural", "key")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("MURAL_API", "http://localhost:8080"), "murald base URL (env MURAL_API)")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", envOr("MURAL_KEY", defaultKeyPath()), "Signing key file (env MURAL_KEY)")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 10*time.Second, "HTTP request timeout")
}
