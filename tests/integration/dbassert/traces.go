//go:build integration

// Package dbassert reads agent traces back from the databases for assertions.
package dbassert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TraceRow is a stored trace in a backend-neutral form.
type TraceRow struct {
	ID        string
	Name      string
	Project   string
	StartTime time.Time
	Metadata  map[string]any
	Tags      []string
}

const collectionName = "agent_traces"

// QueryTraces returns every trace in PostgreSQL ordered by start time.
func QueryTraces(t *testing.T, pool *pgxpool.Pool) []TraceRow {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
		SELECT id::text, name, project_name, start_time, metadata, tags
		FROM agent_traces
		ORDER BY start_time ASC
	`)
	require.NoError(t, err, "failed to query traces")
	defer rows.Close()

	var out []TraceRow
	for rows.Next() {
		var (
			row     TraceRow
			project *string
			meta    []byte
		)
		require.NoError(t, rows.Scan(&row.ID, &row.Name, &project, &row.StartTime, &meta, &row.Tags))
		if project != nil {
			row.Project = *project
		}
		if meta != nil {
			require.NoError(t, json.Unmarshal(meta, &row.Metadata))
		}
		out = append(out, row)
	}
	require.NoError(t, rows.Err())
	return out
}

// QueryTracesMongo returns every trace in MongoDB ordered by start time.
func QueryTracesMongo(t *testing.T, db *mongo.Database) []TraceRow {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := db.Collection(collectionName).Find(ctx, bson.M{}, opts)
	require.NoError(t, err, "failed to query traces from MongoDB")
	defer func() { _ = cursor.Close(ctx) }()

	var docs []struct {
		ID        string         `bson:"_id"`
		Name      string         `bson:"name"`
		Project   string         `bson:"project_name"`
		StartTime time.Time      `bson:"start_time"`
		Metadata  map[string]any `bson:"metadata"`
		Tags      []string       `bson:"tags"`
	}
	require.NoError(t, cursor.All(ctx, &docs))

	out := make([]TraceRow, len(docs))
	for i, d := range docs {
		out[i] = TraceRow{ID: d.ID, Name: d.Name, Project: d.Project, StartTime: d.StartTime, Metadata: d.Metadata, Tags: d.Tags}
	}
	return out
}

// ClearTraces empties the PostgreSQL trace table if it exists.
func ClearTraces(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := pool.Exec(ctx, "DROP TABLE IF EXISTS agent_traces")
	require.NoError(t, err)
}

// ClearTracesMongo drops the MongoDB trace collection.
func ClearTracesMongo(t *testing.T, db *mongo.Database) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.Collection(collectionName).Drop(ctx))
}

// CountByName tallies traces per name.
func CountByName(rows []TraceRow) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Name]++
	}
	return counts
}
