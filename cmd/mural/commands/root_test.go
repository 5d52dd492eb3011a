package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	testRoot := &cobra.Command{
		Use:   "mural",
		Short: "Test root command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	buf := new(bytes.Buffer)
	testRoot.SetOut(buf)
	testRoot.SetErr(buf)

	err := testRoot.Execute()

	assert.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Usage:", "Help should be displayed")
	assert.Contains(t, output, "mural", "Help should show command name")
}

// TestRootCommand_RejectsUnknownFlags tests that unknown flags
// passed to the root command cause an error instead of being silently ignored
func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	testRoot := &cobra.Command{
		Use:   "mural",
		Short: "Test root command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}
	testRoot.SetArgs([]string{"--unknown-flag", "value"})

	buf := new(bytes.Buffer)
	testRoot.SetOut(buf)
	testRoot.SetErr(buf)

	err := testRoot.Execute()
	assert.Error(t, err, "Unknown flag should cause an error")
	assert.Contains(t, err.Error(), "unknown flag", "Error should mention unknown flag")
}

// TestRootCommand_RegistersCommands guards the command surface
func TestRootCommand_RegistersCommands(t *testing.T) {
	expected := []string{
		"keygen", "whoami", "season", "fund", "bid", "vote", "finalize-region",
		"payout", "grid", "region", "balance", "credit", "watch", "comments", "like", "init",
	}
	for _, name := range expected {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, sub := range []string{"create", "show", "finalize", "wait"} {
		cmd, _, err := rootCmd.Find([]string{"season", sub})
		require.NoError(t, err, sub)
		assert.Equal(t, sub, cmd.Name())
	}
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-01-01)", rootCmd.Version)
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		x, y    string
		wantErr bool
	}{
		{"0", "0", false},
		{"7", "7", false},
		{"8", "0", true},
		{"-1", "2", true},
		{"a", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.x+","+tt.y, func(t *testing.T) {
			captureOutput(t)
			_, _, err := parseCell(tt.x, tt.y)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
