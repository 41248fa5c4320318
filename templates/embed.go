// Package templates embeds the starter settings file.
package templates

import "embed"

//go:embed conductor.yaml
var FS embed.FS

// SettingsFile is the name of the embedded starter settings.
const SettingsFile = "conductor.yaml"
