package learning

import (
	"context"

	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
)

// DefaultThreshold is the minimum confidence a mapping needs to be learned.
const DefaultThreshold = 70

// Updater writes confident, accepted mappings back to the cache.
type Updater struct {
	store     Store
	threshold int
}

func NewUpdater(store Store, threshold int) *Updater {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Updater{store: store, threshold: threshold}
}

// Record stores every mapping at or above the threshold and returns how many
// qualified.
func (u *Updater) Record(ctx context.Context, mappings []models.FieldMapping) (int, error) {
	if u == nil || u.store == nil {
		return 0, nil
	}
	items := make([]Upsert, 0, len(mappings))
	for _, m := range mappings {
		if m.Confidence < u.threshold || m.TargetField == "" || PatternKey(m.SourceField) == "" {
			continue
		}
		items = append(items, Upsert{
			Pattern:     m.SourceField,
			TargetField: m.TargetField,
			Confidence:  m.Confidence,
			Strategy:    m.Strategy,
			Metadata: map[string]string{
				"sourceField":  m.SourceField,
				"lastStrategy": string(m.Strategy),
			},
		})
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := u.store.Upsert(ctx, items); err != nil {
		return 0, err
	}
	logger.WithFields(logger.Fields{"learned": len(items)}).Debug("learning cache updated")
	return len(items), nil
}
