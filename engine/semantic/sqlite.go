package semantic

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads passages from a table with columns
// (id TEXT, content TEXT, embedding BLOB|TEXT). Embeddings are stored either
// as a JSON array or as little-endian float32 values. Rows with a NULL
// embedding are skipped.
type SQLiteSource struct {
	db    *sql.DB
	table string
	owned bool
}

// NewSQLiteSource wraps an open database.
func NewSQLiteSource(db *sql.DB, table string) (*SQLiteSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("semantic: invalid table name %q", table)
	}
	return &SQLiteSource{db: db, table: table}, nil
}

// OpenSQLiteSource opens the database file at path read-only.
func OpenSQLiteSource(path, table string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("semantic: open sqlite %s: %w", path, err)
	}
	s, err := NewSQLiteSource(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Close closes the database if it was opened by OpenSQLiteSource.
func (s *SQLiteSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSource) Candidates(ctx context.Context) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content, embedding, typeof(embedding) FROM "+s.table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("semantic: query %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			id, content, kind string
			raw               any
		)
		if err := rows.Scan(&id, &content, &raw, &kind); err != nil {
			return nil, fmt.Errorf("semantic: scan %s: %w", s.table, err)
		}
		if raw == nil {
			continue
		}
		vec, err := decodeEmbedding(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("semantic: row %q: %w", id, err)
		}
		out = append(out, Candidate{ID: id, Text: content, Embedding: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic: iterate %s: %w", s.table, err)
	}
	return out, nil
}

// decodeEmbedding decodes by SQLite storage class: text holds a JSON array,
// blob holds little-endian float32 values.
func decodeEmbedding(raw any, kind string) ([]float32, error) {
	var b []byte
	switch v := raw.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return nil, fmt.Errorf("unsupported embedding column type %T", raw)
	}
	switch kind {
	case "text":
		var vec []float32
		if err := json.Unmarshal(b, &vec); err != nil {
			return nil, fmt.Errorf("decode json embedding: %w", err)
		}
		return vec, nil
	case "blob":
		if len(b)%4 != 0 {
			return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
		}
		vec := make([]float32, len(b)/4)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		}
		return vec, nil
	}
	return nil, fmt.Errorf("unsupported embedding storage class %q", kind)
}

// EncodeEmbedding packs vec as little-endian float32 values.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}
