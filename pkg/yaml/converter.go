// Package yaml holds small goccy/go-yaml helpers used for configuration and
// other generic documents. Deployment descriptors are handled by the
// descriptor service, which needs node-level access.
package yaml

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// JSONToYAML converts JSON bytes to YAML bytes
func JSONToYAML(jsonBytes []byte) ([]byte, error) {
	var jsonObj interface{}
	if err := json.Unmarshal(jsonBytes, &jsonObj); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	yamlBytes, err := yaml.Marshal(jsonObj)
	if err != nil {
		return nil, fmt.Errorf("error converting to YAML: %w", err)
	}

	return yamlBytes, nil
}

// YAMLToJSON converts YAML bytes to JSON bytes
func YAMLToJSON(yamlBytes []byte) ([]byte, error) {
	var yamlObj interface{}
	if err := yaml.Unmarshal(yamlBytes, &yamlObj); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	jsonBytes, err := json.Marshal(yamlObj)
	if err != nil {
		return nil, fmt.Errorf("error converting to JSON: %w", err)
	}

	return jsonBytes, nil
}

// UnmarshalViaJSON decodes YAML into obj through its JSON tags, so structs
// that are only annotated for encoding/json can be filled from YAML files.
func UnmarshalViaJSON(yamlBytes []byte, obj interface{}) error {
	jsonBytes, err := YAMLToJSON(yamlBytes)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonBytes, obj); err != nil {
		return fmt.Errorf("error decoding converted YAML: %w", err)
	}
	return nil
}

// ReadFile reads path and decodes it with UnmarshalViaJSON.
func ReadFile(path string, obj interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return UnmarshalViaJSON(data, obj)
}
