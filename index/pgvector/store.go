package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/index"
)

const (
	catalogTable = "knowit_indexes"
	tablePrefix  = "knowit_"

	// PostgreSQL identifiers cap at 63 bytes; leave room for the prefix.
	maxIndexNameLen = 63 - len(tablePrefix)
)

// Index names are interpolated into table identifiers, so they are held
// to a stricter shape than the embedded backend requires.
var indexNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store implements index.Store on PostgreSQL with the pgvector extension.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ index.Store = (*Store)(nil)

// NewStore connects to PostgreSQL, installs the vector extension and the
// index catalog, and returns the store.
func NewStore(connString string) (index.Store, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{
		db:     db,
		logger: slog.Default().With("component", "pgvector-index"),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			dimension INT NOT NULL,
			metric TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`, catalogTable),
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// CreateIndex creates a named index, or verifies an existing one.
func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric index.Metric) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := core.ValidateDimension(dimension); err != nil {
		return err
	}
	if metric != index.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}

	existing, err := s.lookupIndex(ctx, name)
	if err != nil && !errors.Is(err, core.ErrIndexNotFound) {
		return err
	}
	if existing != nil {
		if existing.Dimension != dimension || existing.Metric != string(metric) {
			return fmt.Errorf("%w: index %q has dimension %d metric %q, requested dimension %d metric %q",
				core.ErrDimensionMismatch, name, existing.Dimension, existing.Metric, dimension, metric)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := tableIdent(name)
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB DEFAULT '{}'
		)`, table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`,
			name, table),
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index table: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, dimension, metric) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`, catalogTable),
		name, dimension, string(metric))
	if err != nil {
		return fmt.Errorf("register index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("created index", "name", name, "dimension", dimension, "metric", metric)
	return nil
}

// Upsert writes records into the named index, replacing by id.
// The batch runs in one transaction, so a failure writes nothing.
func (s *Store) Upsert(ctx context.Context, name string, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}

	info, err := s.lookupIndex(ctx, name)
	if err != nil {
		return err
	}

	for i := range records {
		if len(records[i].Vector) != info.Dimension {
			return fmt.Errorf("%w: record %d has dimension %d, index %q requires %d",
				core.ErrDimensionMismatch, records[i].Id, len(records[i].Vector), name, info.Dimension)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
	`, tableIdent(name))

	for i := range records {
		metadata, err := json.Marshal(records[i].Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, query, int64(records[i].Id), formatEmbedding(records[i].Vector), metadata)
		if err != nil {
			return fmt.Errorf("upsert record %d: %w", records[i].Id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("upserted records", "index", name, "batch", len(records))
	return nil
}

// Query returns up to TopK records scoring at least MinScore against the
// query vector, ordered by score descending. Scoring uses pgvector's
// cosine distance operator, so ranking happens on the server.
func (s *Store) Query(ctx context.Context, name string, vector []float32, opts index.QueryOptions) ([]core.ScoredRecord, error) {
	info, err := s.lookupIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index %q requires %d",
			core.ErrDimensionMismatch, len(vector), name, info.Dimension)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	embedding := formatEmbedding(vector)
	args := []any{embedding, opts.MinScore, topK}

	filterClause := ""
	if len(opts.Filter) > 0 {
		filterJSON, err := json.Marshal(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		filterClause = " AND metadata @> $4::jsonb"
		args = append(args, filterJSON)
	}

	query := fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2%s
		ORDER BY embedding <=> $1
		LIMIT $3
	`, tableIdent(name), filterClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var results []core.ScoredRecord
	for rows.Next() {
		var id int64
		var metadataBytes []byte
		var score float64

		if err := rows.Scan(&id, &metadataBytes, &score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		var metadata map[string]string
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}

		results = append(results, core.ScoredRecord{
			Id:       core.ID(id),
			Score:    float32(score),
			Metadata: metadata,
		})
	}

	return results, rows.Err()
}

// Exists reports whether the named index exists and holds at least one
// record.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.lookupIndex(ctx, name)
	if errors.Is(err, core.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var populated bool
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s)`, tableIdent(name))).Scan(&populated)
	if err != nil {
		return false, fmt.Errorf("check records: %w", err)
	}
	return populated, nil
}

// Count returns the number of records in the named index.
func (s *Store) Count(ctx context.Context, name string) (uint64, error) {
	if _, err := s.lookupIndex(ctx, name); err != nil {
		return 0, err
	}

	var count uint64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableIdent(name))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// DropIndex removes the named index and all its records.
// Dropping an unknown index is a no-op.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableIdent(name))); err != nil {
		return fmt.Errorf("drop index table: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, catalogTable), name); err != nil {
		return fmt.Errorf("unregister index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("dropped index", "name", name)
	return nil
}

// Describe returns the configuration and record count of the named index.
func (s *Store) Describe(ctx context.Context, name string) (*core.IndexInfo, error) {
	info, err := s.lookupIndex(ctx, name)
	if err != nil {
		return nil, err
	}

	count, err := s.Count(ctx, name)
	if err != nil {
		return nil, err
	}
	info.Count = count
	return info, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// lookupIndex reads an index's catalog row.
// Returns core.ErrIndexNotFound when the index was never created.
func (s *Store) lookupIndex(ctx context.Context, name string) (*core.IndexInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	info := &core.IndexInfo{Name: name}
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT dimension, metric FROM %s WHERE name = $1`, catalogTable),
		name).Scan(&info.Dimension, &info.Metric)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", core.ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup index: %w", err)
	}
	return info, nil
}

// validateName enforces the identifier-safe subset of index names.
func validateName(name string) error {
	if err := core.ValidateIndexName(name); err != nil {
		return err
	}
	if len(name) > maxIndexNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", core.ErrInvalidIndexName, maxIndexNameLen)
	}
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", core.ErrInvalidIndexName, name, indexNamePattern)
	}
	return nil
}

// tableIdent maps an index name onto its table identifier.
// Callers must validate the name first.
func tableIdent(name string) string {
	return tablePrefix + name
}

// formatEmbedding converts a vector to pgvector's text format: "[0.1,0.2,0.3]"
func formatEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
