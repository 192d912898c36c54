package output

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats cluster status as YAML.
type YAMLFormatter struct{}

// FormatStatus formats the cluster as one YAML document.
func (f *YAMLFormatter) FormatStatus(view *ClusterView) (string, error) {
	data, err := yaml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("failed to marshal status to YAML: %w", err)
	}
	return string(data), nil
}
