package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/hybrid-rag/engine/collab"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4jStore executes read queries against Neo4j. It implements
// collab.GraphStore and is safe for concurrent use.
type Neo4jStore struct {
	driver     neo4j.DriverWithContext
	database   string
	newSession func(ctx context.Context) runner // for testing
}

var _ collab.GraphStore = (*Neo4jStore)(nil)

// NewNeo4jStore creates a store. An empty database selects the server default.
func NewNeo4jStore(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{driver: driver, database: database}
}

// Dial opens a driver and verifies connectivity.
func Dial(ctx context.Context, url, user, password string) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(url, auth)
	if err != nil {
		return nil, fmt.Errorf("graph: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: neo4j connect %s: %w", url, err)
	}
	return driver, nil
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *Neo4jStore) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &sessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})}
}

// ExecuteQuery runs query in a read session and returns every row as a
// plain map. Nodes and relationships are flattened to their properties.
func (s *Neo4jStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]collab.Record, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("graph: run: %w", err)
	}
	var out []collab.Record
	for res.Next(ctx) {
		rec := res.Record()
		row := make(collab.Record, len(rec.Keys))
		for i, key := range rec.Keys {
			if i < len(rec.Values) {
				row[key] = plain(rec.Values[i])
			}
		}
		out = append(out, row)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("graph: read result: %w", err)
	}
	return out, nil
}

// plain converts driver graph types into maps and slices.
func plain(v any) any {
	switch x := v.(type) {
	case dbtype.Node:
		m := plainMap(x.Props)
		m["_labels"] = x.Labels
		return m
	case dbtype.Relationship:
		m := plainMap(x.Props)
		m["_type"] = x.Type
		return m
	case map[string]any:
		return plainMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

func plainMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = plain(v)
	}
	return out
}
