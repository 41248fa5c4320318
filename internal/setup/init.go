// Package setup writes a starter settings file.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/msageha/conductor/internal/settings"
	atomicyaml "github.com/msageha/conductor/internal/yaml"
	"github.com/msageha/conductor/templates"
)

// Run writes the starter settings into dir and returns its path. An
// existing file is only replaced when force is set.
func Run(dir string, force bool) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", absDir, err)
	}

	dst := filepath.Join(absDir, templates.SettingsFile)
	if _, err := os.Stat(dst); err == nil && !force {
		return "", fmt.Errorf("%s already exists", dst)
	}

	data, err := fs.ReadFile(templates.FS, templates.SettingsFile)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", templates.SettingsFile, err)
	}
	doc, err := settings.Decode(filepath.Ext(templates.SettingsFile), data)
	if err != nil {
		return "", fmt.Errorf("parse settings template: %w", err)
	}
	if err := settings.Validate(doc); err != nil {
		return "", fmt.Errorf("settings template: %w", err)
	}
	if err := atomicyaml.AtomicWriteRaw(dst, data); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}
