package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/donorsync/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSink stores each rejection bucket as one document, keyed by run and
// owner, so a re-run replaces rather than duplicates its own buckets.
type MongoSink struct {
	Coll  *mongo.Collection
	RunID string
}

func NewMongoSink(client *mongo.Client, database, collection, runID string) *MongoSink {
	return &MongoSink{
		Coll:  client.Database(database).Collection(collection),
		RunID: runID,
	}
}

func (m *MongoSink) WriteBucket(ctx context.Context, owner string, records []models.RawRecord) error {
	var header []string
	rows := make(bson.A, 0, len(records))
	for _, r := range records {
		if header == nil {
			header = r.Header
		}
		rows = append(rows, bson.D{
			{Key: "source", Value: r.Source},
			{Key: "line", Value: r.Line},
			{Key: "values", Value: r.Values},
		})
	}

	doc := bson.D{
		{Key: "run_id", Value: m.RunID},
		{Key: "owner", Value: owner},
		{Key: "header", Value: header},
		{Key: "rows", Value: rows},
		{Key: "created_at", Value: time.Now().UTC()},
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	filter := bson.M{"run_id": m.RunID, "owner": owner}
	if _, err := m.Coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo rejection bucket %s: %w", owner, err)
	}
	return nil
}
