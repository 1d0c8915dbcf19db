package descriptor

import (
	"fmt"
	"os"
	"path/filepath"

	"appdeck/internal/domain/model"
)

// candidateFiles are checked in order when locating a descriptor in a tree.
var candidateFiles = []string{"compose.yml", "compose.yaml", "docker-compose.yml", "docker-compose.yaml"}

// Locate returns the path of the descriptor at the root of dir.
func Locate(dir string) (string, error) {
	for _, name := range candidateFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no descriptor found in %s", model.ErrDescriptorParse, dir)
}

// ReadFrom locates and reads the descriptor in dir without parsing it.
func ReadFrom(dir string) ([]byte, error) {
	path, err := Locate(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDescriptorParse, err)
	}
	return data, nil
}
