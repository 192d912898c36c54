package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"spinup/internal/spec"
)

// TableFormatter formats cluster status as a human-readable table.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatStatus formats the cluster as one table row per machine.
func (f *TableFormatter) FormatStatus(view *ClusterView) (string, error) {
	if len(view.Machines) == 0 {
		return "No machines recorded\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tLIVE\tVARIANT\tCPUS\tMEMORY\tDISK\tADDRESS\tAGE")
	}

	for _, m := range view.Machines {
		live := m.Live
		if live == "" {
			live = "-"
		}
		address := m.Address
		if address == "" {
			address = "-"
		}
		age := "-"
		if !m.CreatedAt.IsZero() {
			age = formatAge(time.Since(m.CreatedAt))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			m.Name, m.State, live, m.Variant, m.CPUCount,
			spec.FormatSize(m.MemoryBytes), spec.FormatSize(m.DiskBytes),
			address, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatAge formats a duration as a compact age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
