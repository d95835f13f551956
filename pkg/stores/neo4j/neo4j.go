// Package neo4j implements the graph store contract on the official Bolt
// driver. Memory nodes, their tags, and the entities/relationships extracted
// from them live here as a derived view of the vector store.
package neo4j

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/memory"
)

type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to a Neo4j instance over Bolt with basic auth.
func New(uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.NewStoreConnectivity("neo4j", err)
	}

	return &Store{driver: driver}, nil
}

func (store *Store) Close(ctx context.Context) error {
	return store.driver.Close(ctx)
}

// EnsureConstraints installs the uniqueness constraints the merge-based
// writes rely on. Safe to call on every startup.
func (store *Store) EnsureConstraints(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT memory_id IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE CONSTRAINT tag_name IF NOT EXISTS FOR (t:Tag) REQUIRE t.name IS UNIQUE",
		"CREATE CONSTRAINT entity_key IF NOT EXISTS FOR (e:Entity) REQUIRE e.key IS UNIQUE",
	}

	var failed []any
	for _, statement := range statements {
		if err := store.write(ctx, statement, nil); err != nil {
			failed = append(failed, err)
		}
	}

	if len(failed) > 0 {
		return errors.New(failed...)
	}

	return nil
}

func (store *Store) UpsertMemoryNode(ctx context.Context, mem memory.Memory) error {
	return store.write(ctx, `
		MERGE (m:Memory {id: $id})
		SET m.text = $text,
		    m.importance = $importance,
		    m.sessionId = $sessionId,
		    m.source = $source,
		    m.timestamp = $timestamp
	`, map[string]any{
		"id":         mem.ID,
		"text":       mem.Text,
		"importance": mem.Importance,
		"sessionId":  mem.SessionID,
		"source":     string(mem.Source),
		"timestamp":  mem.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	})
}

// ReplaceTags swaps the full tag set of a memory node in one statement so a
// re-sync after an update converges instead of accumulating stale tags.
func (store *Store) ReplaceTags(ctx context.Context, memoryID string, tags []string) error {
	lowered := make([]string, 0, len(tags))
	for _, tag := range tags {
		lowered = append(lowered, strings.ToLower(tag))
	}

	return store.write(ctx, `
		MATCH (m:Memory {id: $id})
		OPTIONAL MATCH (m)-[r:HAS_TAG]->(:Tag)
		DELETE r
		WITH DISTINCT m
		UNWIND $tags AS tag
		MERGE (t:Tag {name: tag})
		MERGE (m)-[:HAS_TAG]->(t)
	`, map[string]any{
		"id":   memoryID,
		"tags": lowered,
	})
}

func (store *Store) UpsertEntity(ctx context.Context, ent memory.Entity) error {
	return store.write(ctx, `
		MERGE (e:Entity {key: $key})
		SET e.name = $name, e.type = $type
	`, map[string]any{
		"key":  ent.Key(),
		"name": ent.Name,
		"type": ent.Type,
	})
}

func (store *Store) UpsertMention(ctx context.Context, memoryID string, ent memory.Entity) error {
	return store.write(ctx, `
		MATCH (m:Memory {id: $id})
		MATCH (e:Entity {key: $key})
		MERGE (m)-[:MENTIONS]->(e)
	`, map[string]any{
		"id":  memoryID,
		"key": ent.Key(),
	})
}

func (store *Store) UpsertEntityRelation(ctx context.Context, from, to memory.Entity, relType string) error {
	return store.write(ctx, `
		MATCH (a:Entity {key: $from})
		MATCH (b:Entity {key: $to})
		MERGE (a)-[r:RELATES {type: $type}]->(b)
	`, map[string]any{
		"from": from.Key(),
		"to":   to.Key(),
		"type": relType,
	})
}

func (store *Store) DeleteMemoryNode(ctx context.Context, memoryID string) error {
	return store.write(ctx, `
		MATCH (m:Memory {id: $id})
		DETACH DELETE m
	`, map[string]any{"id": memoryID})
}

// RunQuery executes a read statement and returns the rows as plain maps with
// driver types flattened to Go primitives.
func (store *Store) RunQuery(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	session := store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, statement, params)
	if err != nil {
		return nil, errors.NewStoreConnectivity("neo4j", err)
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rows = append(rows, normalizeRow(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, errors.NewStoreConnectivity("neo4j", err)
	}

	return rows, nil
}

func (store *Store) Ping(ctx context.Context) error {
	if err := store.driver.VerifyConnectivity(ctx); err != nil {
		return errors.NewStoreConnectivity("neo4j", err)
	}
	return nil
}

func (store *Store) write(ctx context.Context, statement string, params map[string]any) error {
	session := store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, statement, params)
	if err != nil {
		return errors.NewStoreConnectivity("neo4j", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return errors.NewStoreConnectivity("neo4j", err)
	}

	return nil
}
