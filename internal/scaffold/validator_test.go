package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "no existing files",
			wantErr: false,
		},
		{
			name:    "existing mural.yml only",
			files:   []string{"mural.yml"},
			wantErr: true,
			errMsg:  "Found existing: mural.yml",
		},
		{
			name:    "both files",
			files:   []string{"mural.yml", ".env.example"},
			wantErr: true,
			errMsg:  "  - .env.example",
		},
		{
			name:    "unrelated files are ignored",
			files:   []string{"README.md", ".env"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
					t.Fatal(err)
				}
			}

			err := CheckExisting(dir)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Contains(t, err.Error(), "mural init --force")
			}
		})
	}
}
