package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid mapping request")

// validate checks the request before any strategy runs.
func validate(req Request, reg *models.Registry) error {
	if reg == nil || reg.Len() == 0 {
		return fmt.Errorf("%w: target registry is empty", ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(req.Fields))
	for i, f := range req.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("%w: field %d has no name", ErrInvalidRequest, i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("%w: duplicate source field %q", ErrInvalidRequest, f.Name)
		}
		seen[key] = true

		if f.NullPercentage < 0 || f.NullPercentage > 100 {
			return fmt.Errorf("%w: field %q has null percentage %.2f outside [0,100]",
				ErrInvalidRequest, f.Name, f.NullPercentage)
		}
		if f.DataType != "" && !f.DataType.Valid() {
			return fmt.Errorf("%w: field %q has unknown data type %q", ErrInvalidRequest, f.Name, f.DataType)
		}
	}
	return nil
}

// validateLearned checks mappings handed to Learn.
func validateLearned(mappings []models.FieldMapping, reg *models.Registry) error {
	for _, m := range mappings {
		if strings.TrimSpace(m.SourceField) == "" {
			return fmt.Errorf("%w: mapping without source field", ErrInvalidRequest)
		}
		if !reg.Has(m.TargetField) {
			return fmt.Errorf("%w: unknown target field %q", ErrInvalidRequest, m.TargetField)
		}
		if m.Confidence < 0 || m.Confidence > 100 {
			return fmt.Errorf("%w: confidence %d of %q outside [0,100]", ErrInvalidRequest, m.Confidence, m.SourceField)
		}
	}
	return nil
}
