// ABOUTME: VectorStore implementation on SQLite for single-machine deployments
// ABOUTME: Brute-force cosine search over a collection's points with payload filters
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// filterPaths maps filterable payload fields to JSON paths
var filterPaths = map[string]string{
	models.FieldEpisodeNumber: "$.episode_number",
	models.FieldEpisodeTitle:  "$.episode_title",
	"language":                "$.language",
	"file_path":               "$.file_path",
}

// Store persists collections of points in SQLite
type Store struct {
	db *DB
}

// NewStore creates a Store on an open database
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// OpenStore opens the database at path and wraps it in a Store
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecreateCollection drops the collection and its points, then registers it empty
func (s *Store) RecreateCollection(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE collection = ?", name); err != nil {
		return fmt.Errorf("failed to clear points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO collections (name, vector_size) VALUES (?, ?)", name, vectorSize); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return tx.Commit()
}

func (s *Store) vectorSize(ctx context.Context, name string) (int, error) {
	var size int
	err := s.db.QueryRowContext(ctx, "SELECT vector_size FROM collections WHERE name = ?", name).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", core.ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

// Upsert inserts or replaces points by id in a single transaction
func (s *Store) Upsert(ctx context.Context, name string, points []models.Point) error {
	size, err := s.vectorSize(ctx, name)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, vector, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			vector = excluded.vector,
			payload = excluded.payload
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		if len(p.Vector) != size {
			return fmt.Errorf("point %d: invalid vector dimension: expected %d, got %d", p.ID, size, len(p.Vector))
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("point %d: failed to encode payload: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, name, p.ID, vectorToBlob(p.Vector), string(payload)); err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// filterClause renders the filter as extra WHERE conditions. Unknown fields
// match nothing.
func filterClause(filter *models.Filter) (string, []any) {
	if filter == nil || len(filter.Must) == 0 {
		return "", nil
	}
	var (
		clauses []string
		args    []any
	)
	for _, m := range filter.Must {
		path, ok := filterPaths[m.Key]
		if !ok {
			return " AND 1 = 0", nil
		}
		clauses = append(clauses, "CAST(json_extract(payload, ?) AS TEXT) = ?")
		args = append(args, path, m.Value)
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func (s *Store) queryPoints(ctx context.Context, name string, filter *models.Filter, limit int) ([]models.Point, error) {
	if _, err := s.vectorSize(ctx, name); err != nil {
		return nil, err
	}

	where, filterArgs := filterClause(filter)
	query := "SELECT id, vector, payload FROM points WHERE collection = ?" + where + " ORDER BY id ASC"
	args := append([]any{name}, filterArgs...)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var points []models.Point
	for rows.Next() {
		var (
			p       models.Point
			blob    []byte
			payload string
		)
		if err := rows.Scan(&p.ID, &blob, &payload); err != nil {
			return nil, err
		}
		if p.Vector, err = blobToVector(blob); err != nil {
			return nil, fmt.Errorf("point %d: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
			return nil, fmt.Errorf("point %d: failed to decode payload: %w", p.ID, err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Search scores every matching point against the query vector
func (s *Store) Search(ctx context.Context, name string, vector []float32, opts models.SearchOptions) ([]models.ScoredPoint, error) {
	points, err := s.queryPoints(ctx, name, opts.Filter, 0)
	if err != nil {
		return nil, err
	}

	results := make([]models.ScoredPoint, 0, len(points))
	for _, p := range points {
		results = append(results, models.ScoredPoint{
			ID:      p.ID,
			Score:   CosineSimilarity(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	// stable keeps id order among equal scores
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Scroll lists points in id order
func (s *Store) Scroll(ctx context.Context, name string, filter *models.Filter, limit int) ([]models.Point, error) {
	return s.queryPoints(ctx, name, filter, limit)
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (*models.CollectionInfo, error) {
	size, err := s.vectorSize(ctx, name)
	if err != nil {
		return nil, err
	}
	info := &models.CollectionInfo{Name: name, VectorSize: size}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points WHERE collection = ?", name).Scan(&info.PointsCount); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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
