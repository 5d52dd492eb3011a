// Package scaffold writes a starter murald configuration.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/mural/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

// Files lists what Initialize creates, relative to the target directory.
var Files = []FileInfo{
	{Path: config.DefaultPath, Template: "templates/mural.yml.tmpl", Permissions: 0644},
	{Path: ".env.example", Template: "templates/env.example.tmpl", Permissions: 0644},
}

// Initialize writes the starter files into dir. Existing files are only
// replaced when force is set.
func Initialize(dir string, force bool) error {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	for _, file := range Files {
		content, err := templatesFS.ReadFile(file.Template)
		if err != nil {
			return fmt.Errorf("failed to read %s template: %w", file.Path, err)
		}
		if err := os.WriteFile(filepath.Join(dir, file.Path), content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return validateCreatedFiles(dir)
}

// validateCreatedFiles checks the written config loads as murald would load it.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}
	return nil
}
