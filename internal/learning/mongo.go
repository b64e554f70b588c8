package learning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultCollection = "learning_cache"

// MongoStore keeps the learning cache in a collection keyed by pattern.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	if strings.TrimSpace(collection) == "" {
		collection = defaultCollection
	}
	return &MongoStore{
		coll: client.Database(database).Collection(collection),
		now:  time.Now,
	}
}

// EnsureIndexes creates the index backing TopEntries ordering.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "usageCount", Value: -1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create usage index: %w", err)
	}
	return nil
}

func (m *MongoStore) TopEntries(ctx context.Context, limit int) ([]models.LearningCacheEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "usageCount", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query learning cache: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.LearningCacheEntry
	for cursor.Next(ctx) {
		var e models.LearningCacheEntry
		if err := cursor.Decode(&e); err != nil {
			logger.Errorf("Skipping undecodable cache entry: %v", err)
			continue
		}
		out = append(out, e)
	}
	return out, cursor.Err()
}

// Upsert reads the current documents, folds the items in, and writes the
// results back with one BulkWrite of upserts.
func (m *MongoStore) Upsert(ctx context.Context, items []Upsert) error {
	if len(items) == 0 {
		return nil
	}

	keys := make([]string, 0, len(items))
	for _, u := range items {
		keys = append(keys, PatternKey(u.Pattern))
	}
	current, err := m.load(ctx, keys)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	var writes []mongo.WriteModel
	for _, u := range items {
		key := PatternKey(u.Pattern)
		var existing *models.LearningCacheEntry
		if e, ok := current[key]; ok {
			existing = &e
		}
		next := Apply(existing, u, now)
		current[key] = next

		set := bson.M{
			"targetField": next.TargetField,
			"confidence":  next.Confidence,
			"strategyTag": next.Strategy,
			"usageCount":  next.UsageCount,
			"successRate": next.SuccessRate,
			"lastUsedAt":  next.LastUsedAt,
		}
		if len(next.Metadata) > 0 {
			set["metadata"] = next.Metadata
		}
		filter := bson.M{"_id": key}
		update := bson.M{"$set": set}
		writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	res, err := m.coll.BulkWrite(ctx, writes)
	if err != nil {
		return fmt.Errorf("write learning cache: %w", err)
	}
	logger.Debugf("Mongo BulkWrite: Match %d, Mod %d, Upsert %d", res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
	return nil
}

func (m *MongoStore) load(ctx context.Context, keys []string) (map[string]models.LearningCacheEntry, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("read learning cache: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]models.LearningCacheEntry, len(keys))
	for cursor.Next(ctx) {
		var e models.LearningCacheEntry
		if err := cursor.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode cache entry: %w", err)
		}
		out[e.Pattern] = e
	}
	return out, cursor.Err()
}
