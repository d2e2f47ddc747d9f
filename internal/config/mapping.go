package config

import (
	"fmt"
	"os"

	"github.com/BartekS5/donorsync/pkg/models"
)

// LoadMapping reads the table mapping file from the given path. An empty
// path yields the default schema.
func LoadMapping(filePath string) (*models.Schema, error) {
	if filePath == "" {
		return models.DefaultSchema(), nil
	}

	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file '%s': %w", filePath, err)
	}

	schema, err := models.LoadSchema(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping file '%s': %w", filePath, err)
	}
	return schema, nil
}
