// ABOUTME: VectorStore implementation on PostgreSQL with the pgvector extension
// ABOUTME: One table per collection with an HNSW cosine index and JSONB payloads
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const registrySchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_collections (
    name TEXT PRIMARY KEY,
    vector_size INTEGER NOT NULL CHECK (vector_size > 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// filterFields lists payload keys that may appear in filters
var filterFields = map[string]bool{
	models.FieldEpisodeNumber: true,
	models.FieldEpisodeTitle:  true,
	"language":                true,
	"file_path":               true,
}

// Store persists collections of points in PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and ensures the extension and registry exist
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &core.ConnectivityError{Service: "postgres", Err: err}
	}

	if _, err := pool.Exec(ctx, registrySchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// tableName returns the quoted table holding a collection's points
func tableName(collection string) string {
	return pgx.Identifier{"points_" + collection}.Sanitize()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &core.ConnectivityError{Service: "postgres", Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RecreateCollection drops the collection table and creates it empty
func (s *Store) RecreateCollection(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := tableName(name)
	statements := []string{
		"DROP TABLE IF EXISTS " + table,
		fmt.Sprintf("CREATE TABLE %s (id BIGINT PRIMARY KEY, embedding vector(%d) NOT NULL, payload JSONB NOT NULL)", table, vectorSize),
		fmt.Sprintf("CREATE INDEX ON %s USING hnsw (embedding vector_cosine_ops)", table),
		fmt.Sprintf("CREATE INDEX ON %s ((payload->>'episode_number'))", table),
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to recreate collection %s: %w", name, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vector_collections (name, vector_size) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET vector_size = excluded.vector_size, created_at = now()
	`, name, vectorSize)
	if err != nil {
		return fmt.Errorf("failed to register collection %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) vectorSize(ctx context.Context, name string) (int, error) {
	var size int
	err := s.pool.QueryRow(ctx, "SELECT vector_size FROM vector_collections WHERE name = $1", name).Scan(&size)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", core.ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

// Upsert writes points in one batch round trip
func (s *Store) Upsert(ctx context.Context, name string, points []models.Point) error {
	size, err := s.vectorSize(ctx, name)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, payload) VALUES ($1, $2::vector, $3::jsonb)
		ON CONFLICT (id) DO UPDATE SET embedding = excluded.embedding, payload = excluded.payload
	`, tableName(name))

	batch := &pgx.Batch{}
	for _, p := range points {
		if len(p.Vector) != size {
			return fmt.Errorf("point %d: invalid vector dimension: expected %d, got %d", p.ID, size, len(p.Vector))
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("point %d: failed to encode payload: %w", p.ID, err)
		}
		batch.Queue(query, p.ID, pgvector.NewVector(p.Vector), string(payload))
	}

	results := s.pool.SendBatch(ctx, batch)
	for _, p := range points {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
	}
	return results.Close()
}

// filterClause renders conditions on payload fields starting at placeholder
// $next. Unknown fields match nothing.
func filterClause(filter *models.Filter, next int) (string, []any) {
	if filter == nil || len(filter.Must) == 0 {
		return "", nil
	}
	var (
		clauses []string
		args    []any
	)
	for _, m := range filter.Must {
		if !filterFields[m.Key] {
			return " WHERE false", nil
		}
		clauses = append(clauses, fmt.Sprintf("payload->>$%d::text = $%d::text", next, next+1))
		args = append(args, m.Key, m.Value)
		next += 2
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// searchQuery builds the ranking query. Unfiltered searches order by the
// bare distance expression so the HNSW index can serve them. Filtered
// searches are exact: the index applies WHERE only after collecting
// hnsw.ef_search candidates, which silently drops matching points.
func searchQuery(name string, vector []float32, opts models.SearchOptions) (query string, args []any, exact bool) {
	where, filterArgs := filterClause(opts.Filter, 2)
	exact = where != ""

	order := " ORDER BY embedding <=> $1::vector"
	if exact {
		order += ", id"
	}
	query = fmt.Sprintf(
		"SELECT id, payload, 1 - (embedding <=> $1::vector) AS score FROM %s%s%s",
		tableName(name), where, order,
	)
	args = append([]any{pgvector.NewVector(vector)}, filterArgs...)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	return query, args, exact
}

// Search ranks points by cosine distance
func (s *Store) Search(ctx context.Context, name string, vector []float32, opts models.SearchOptions) ([]models.ScoredPoint, error) {
	if _, err := s.vectorSize(ctx, name); err != nil {
		return nil, err
	}

	query, args, exact := searchQuery(name, vector, opts)
	if !exact {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", name, err)
		}
		return scanScored(rows)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// bitmap scans on the payload index stay enabled
	if _, err := tx.Exec(ctx, "SET LOCAL enable_indexscan = off"); err != nil {
		return nil, fmt.Errorf("failed to force exact search: %w", err)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	results, err := scanScored(rows)
	if err != nil {
		return nil, err
	}
	return results, tx.Commit(ctx)
}

func scanScored(rows pgx.Rows) ([]models.ScoredPoint, error) {
	defer rows.Close()

	var results []models.ScoredPoint
	for rows.Next() {
		var (
			sp      models.ScoredPoint
			payload []byte
		)
		if err := rows.Scan(&sp.ID, &payload, &sp.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &sp.Payload); err != nil {
			return nil, fmt.Errorf("point %d: failed to decode payload: %w", sp.ID, err)
		}
		results = append(results, sp)
	}
	return results, rows.Err()
}

// Scroll lists points in id order
func (s *Store) Scroll(ctx context.Context, name string, filter *models.Filter, limit int) ([]models.Point, error) {
	if _, err := s.vectorSize(ctx, name); err != nil {
		return nil, err
	}

	where, args := filterClause(filter, 1)
	query := fmt.Sprintf("SELECT id, embedding, payload FROM %s%s ORDER BY id", tableName(name), where)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll %s: %w", name, err)
	}
	defer rows.Close()

	var points []models.Point
	for rows.Next() {
		var (
			p       models.Point
			vec     pgvector.Vector
			payload []byte
		)
		if err := rows.Scan(&p.ID, &vec, &payload); err != nil {
			return nil, err
		}
		p.Vector = vec.Slice()
		if err := json.Unmarshal(payload, &p.Payload); err != nil {
			return nil, fmt.Errorf("point %d: failed to decode payload: %w", p.ID, err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (*models.CollectionInfo, error) {
	size, err := s.vectorSize(ctx, name)
	if err != nil {
		return nil, err
	}
	info := &models.CollectionInfo{Name: name, VectorSize: size}
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+tableName(name)).Scan(&info.PointsCount); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM vector_collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ core.VectorStore = (*Store)(nil)
