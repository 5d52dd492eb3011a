package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dyluth/mural/internal/config"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	initDir   string
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter murald configuration",
	Long: `Write a starter configuration for running murald.

Creates:
  • mural.yml - daemon configuration (Redis, API listener, logging)
  • .env.example - MURAL_* overrides, including the admin token

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write the configuration into")
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing mural.yml and .env.example")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(initDir, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Wrote %s\n", filepath.Join(initDir, config.DefaultPath))
	printer.Println("")
	printer.Println("Next steps:")
	printer.Println("  1. Copy .env.example to .env and set MURAL_ADMIN_TOKEN")
	printer.Println("  2. Start Redis, then run: murald --config " + filepath.Join(initDir, config.DefaultPath))
	printer.Println("  3. Create a signing key: mural keygen")
	return nil
}
