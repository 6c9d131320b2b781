package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrPartialWrite indicates that a batch write only partially succeeded.
var ErrPartialWrite = errors.New("partial write failure")

// PartialWriteError reports how many traces of a batch failed to insert.
type PartialWriteError struct {
	TotalEntries int
	FailedCount  int
	Cause        mongo.BulkWriteException
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial trace insert: %d of %d traces failed: %v",
		e.FailedCount, e.TotalEntries, e.Cause.Error())
}

func (e *PartialWriteError) Unwrap() error {
	return ErrPartialWrite
}

// MongoDBStore implements TraceStore on the agent_traces collection.
// Retention is enforced by a TTL index rather than a cleanup loop.
type MongoDBStore struct {
	collection *mongo.Collection
	metrics    *Metrics
}

// NewMongoDBStore ensures indexes exist. metrics may be nil.
func NewMongoDBStore(ctx context.Context, database *mongo.Database, retentionDays int, metrics *Metrics) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	collection := database.Collection("agent_traces")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	}
	// A TTL index cannot share its field with another index.
	startIdx := mongo.IndexModel{Keys: bson.D{{Key: "start_time", Value: -1}}}
	if retentionDays > 0 {
		startIdx.Options = options.Index().SetExpireAfterSeconds(int32(int64(retentionDays) * 24 * 60 * 60))
	}
	indexes = append(indexes, startIdx)

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		slog.Warn("failed to create some MongoDB indexes for traces", "error", err)
	}

	return &MongoDBStore{collection: collection, metrics: metrics}, nil
}

// WriteBatch inserts traces unordered so one bad document does not stop the rest.
func (s *MongoDBStore) WriteBatch(ctx context.Context, traces []*Trace) error {
	if len(traces) == 0 {
		return nil
	}

	docs := make([]any, len(traces))
	for i, t := range traces {
		docs[i] = t
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		failed := len(bulkErr.WriteErrors)
		slog.Warn("partial trace insert failure",
			"total", len(traces),
			"failed", failed,
			"succeeded", len(traces)-failed,
		)
		s.metrics.TracePartialWrite()
		return &PartialWriteError{TotalEntries: len(traces), FailedCount: failed, Cause: bulkErr}
	}
	return fmt.Errorf("failed to insert traces: %w", err)
}

// Flush is a no-op; writes are synchronous.
func (s *MongoDBStore) Flush(_ context.Context) error { return nil }

// Close is a no-op; the client belongs to the storage layer.
func (s *MongoDBStore) Close() error { return nil }
