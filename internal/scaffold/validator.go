package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckExisting returns an error listing the starter files already present in
// dir, or nil if there are none.
func CheckExisting(dir string) error {
	var existingFiles []string
	for _, file := range Files {
		if _, err := os.Stat(filepath.Join(dir, file.Path)); err == nil {
			existingFiles = append(existingFiles, file.Path)
		}
	}

	if len(existingFiles) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("configuration already initialized\n\nFound existing")
	if len(existingFiles) == 1 {
		fmt.Fprintf(&b, ": %s\n", existingFiles[0])
	} else {
		b.WriteString(" files:\n")
		for _, file := range existingFiles {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}
	b.WriteString("\nUse 'mural init --force' to overwrite them")
	return fmt.Errorf("%s", b.String())
}
