package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BartekS5/fieldmapper/pkg/models"
	"gopkg.in/yaml.v3"
)

// targetSchemaFile is the on-disk layout of a target schema.
type targetSchemaFile struct {
	Fields []models.TargetFieldSpec `json:"fields" yaml:"fields"`
}

// LoadTargetSchema reads a target schema from a .yaml/.yml or .json file and
// builds the registry. An empty path yields the default product schema.
func LoadTargetSchema(filePath string) (*models.Registry, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.NewRegistry(models.DefaultProductSchema())
	}

	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file '%s': %w", filePath, err)
	}

	var file targetSchemaFile
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &file)
	case ".json":
		err = json.Unmarshal(bytes, &file)
	default:
		return nil, fmt.Errorf("schema file '%s': unsupported extension, use .yaml, .yml or .json", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file '%s': %w", filePath, err)
	}

	reg, err := models.NewRegistry(file.Fields)
	if err != nil {
		return nil, fmt.Errorf("invalid schema file '%s': %w", filePath, err)
	}
	return reg, nil
}
