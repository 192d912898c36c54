// Package output renders cluster status in table, YAML and JSON
// formats.
package output

import (
	"fmt"
	"time"

	"spinup/internal/lifecycle"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative consumers.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter renders a cluster view in one output format.
type Formatter interface {
	FormatStatus(view *ClusterView) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a Formatter for the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}

// ClusterView is the serializable status of one cluster.
type ClusterView struct {
	ID        string        `json:"id" yaml:"id"`
	Directory string        `json:"directory" yaml:"directory"`
	Machines  []MachineView `json:"machines" yaml:"machines"`
}

// MachineView is one machine's row: the recorded spec and state plus
// the hypervisor's live view.
type MachineView struct {
	Name        string    `json:"name" yaml:"name"`
	State       string    `json:"state" yaml:"state"`
	Live        string    `json:"live,omitempty" yaml:"live,omitempty"`
	Variant     string    `json:"variant" yaml:"variant"`
	CPUCount    int       `json:"cpuCount" yaml:"cpuCount"`
	MemoryBytes uint64    `json:"memoryBytes" yaml:"memoryBytes"`
	DiskBytes   uint64    `json:"diskBytes" yaml:"diskBytes"`
	Address     string    `json:"address,omitempty" yaml:"address,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// NewClusterView flattens a lifecycle status into its output form.
func NewClusterView(status *lifecycle.ClusterStatus) *ClusterView {
	view := &ClusterView{
		ID:        status.Record.ID,
		Directory: status.Record.Directory,
		Machines:  make([]MachineView, 0, len(status.Machines)),
	}
	for _, ms := range status.Machines {
		view.Machines = append(view.Machines, MachineView{
			Name:        ms.Record.Name,
			State:       string(ms.Record.State),
			Live:        ms.Live,
			Variant:     ms.Record.Variant,
			CPUCount:    ms.Record.CPUCount,
			MemoryBytes: ms.Record.MemoryBytes,
			DiskBytes:   ms.Record.DiskBytes,
			Address:     ms.Record.Address,
			CreatedAt:   ms.Record.CreatedAt,
		})
	}
	return view
}
