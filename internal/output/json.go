package output

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter formats cluster status as JSON.
type JSONFormatter struct{}

// FormatStatus formats the cluster as one indented JSON object.
func (f *JSONFormatter) FormatStatus(view *ClusterView) (string, error) {
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
