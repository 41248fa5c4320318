package yaml

import (
	"fmt"
	"os"
	"time"

	yamlv3 "gopkg.in/yaml.v3"
)

const (
	CurrentSchemaVersion = 1
	ReportFileType       = "run_report"
	ReportFileName       = "run.yaml"
)

// Report is the on-disk snapshot of a task run, rewritten on every change.
type Report struct {
	SchemaVersion int              `yaml:"schema_version"`
	FileType      string           `yaml:"file_type"`
	RunID         string           `yaml:"run_id"`
	Task          string           `yaml:"task"`
	URN           string           `yaml:"urn,omitempty"`
	Mode          string           `yaml:"mode"`
	Timeslot      string           `yaml:"timeslot,omitempty"`
	State         string           `yaml:"state"`
	Progress      int              `yaml:"progress"`
	Details       string           `yaml:"details,omitempty"`
	UpdatedAt     time.Time        `yaml:"updated_at"`
	Inputs        []ReportResource `yaml:"inputs,omitempty"`
	Outputs       []ReportResource `yaml:"outputs,omitempty"`
}

type ReportResource struct {
	Name     string `yaml:"name"`
	Active   bool   `yaml:"active"`
	Optional bool   `yaml:"optional"`
	Path     string `yaml:"path,omitempty"`
}

// WriteReport stamps the schema header and writes r atomically.
func WriteReport(path string, r Report) error {
	r.SchemaVersion = CurrentSchemaVersion
	r.FileType = ReportFileType
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	return AtomicWrite(path, r)
}

// ReadReport loads a report, rejecting files with a foreign or newer header.
func ReadReport(path string) (Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := yamlv3.Unmarshal(content, &r); err != nil {
		return Report{}, fmt.Errorf("parse report: %w", err)
	}
	if r.SchemaVersion < 1 {
		return Report{}, fmt.Errorf("invalid schema_version %d (must be >= 1)", r.SchemaVersion)
	}
	if r.SchemaVersion > CurrentSchemaVersion {
		return Report{}, fmt.Errorf("unsupported schema_version %d (max supported: %d)", r.SchemaVersion, CurrentSchemaVersion)
	}
	if r.FileType != ReportFileType {
		return Report{}, fmt.Errorf("file_type mismatch: got %q, expected %q", r.FileType, ReportFileType)
	}
	return r, nil
}
