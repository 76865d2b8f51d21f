// Package postgres implements the durable building cache on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/geo"
	"github.com/couchcryptid/building-lens/internal/observability"
)

// metersPerDegreeLat is the approximate north-south span of one degree of
// latitude, used to turn a radius into a bounding box for the SQL prefilter.
const metersPerDegreeLat = 111320.0

// Store persists building records keyed by (external_id, source).
type Store struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

// Connect opens a pgx connection pool against the database URL and verifies
// it with a ping.
func Connect(ctx context.Context, url string, metrics *observability.Metrics) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, metrics: metrics}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping verifies database connectivity, backing the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the buildings table and its indexes if missing.
// Statements run one at a time: pgx's extended protocol does not accept
// multi-statement strings.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS buildings (
            id bigserial PRIMARY KEY,
            external_id text NOT NULL,
            source text NOT NULL,
            name text NOT NULL DEFAULT '',
            address text NOT NULL DEFAULT '',
            latitude double precision NOT NULL,
            longitude double precision NOT NULL,
            metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
            created_at timestamptz NOT NULL DEFAULT now(),
            updated_at timestamptz NOT NULL DEFAULT now(),
            expires_at timestamptz
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS buildings_external_id_source_idx
            ON buildings (external_id, source)`,
		`CREATE INDEX IF NOT EXISTS buildings_lat_lon_idx
            ON buildings (latitude, longitude)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// FindNear returns non-expired records within radiusM meters of the
// coordinate. The SQL query prefilters with a bounding box on the indexed
// lat/lon columns; the exact great-circle cut happens here.
func (s *Store) FindNear(ctx context.Context, coord domain.Coordinate, radiusM float64) ([]domain.BuildingRecord, error) {
	dLat := radiusM / metersPerDegreeLat
	dLon := radiusM / (metersPerDegreeLat * math.Cos(coord.Latitude*math.Pi/180.0))

	rows, err := s.pool.Query(ctx, `
        SELECT id, external_id, source, name, address, latitude, longitude,
               metadata, created_at, updated_at, expires_at
        FROM buildings
        WHERE latitude BETWEEN $1 AND $2
          AND longitude BETWEEN $3 AND $4
          AND (expires_at IS NULL OR expires_at > now())
    `, coord.Latitude-dLat, coord.Latitude+dLat, coord.Longitude-dLon, coord.Longitude+dLon)
	if err != nil {
		s.metrics.StoreOps.WithLabelValues("find_near", "error").Inc()
		return nil, fmt.Errorf("query buildings near point: %w", err)
	}
	defer rows.Close()

	var records []domain.BuildingRecord
	for rows.Next() {
		var rec domain.BuildingRecord
		if err := rows.Scan(
			&rec.ID, &rec.ExternalID, &rec.Source, &rec.Name, &rec.Address,
			&rec.Coordinate.Latitude, &rec.Coordinate.Longitude,
			&rec.Metadata, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
		); err != nil {
			s.metrics.StoreOps.WithLabelValues("find_near", "error").Inc()
			return nil, fmt.Errorf("scan building row: %w", err)
		}
		if geo.DistanceMeters(coord, rec.Coordinate) <= radiusM {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		s.metrics.StoreOps.WithLabelValues("find_near", "error").Inc()
		return nil, fmt.Errorf("iterate building rows: %w", err)
	}

	s.metrics.StoreOps.WithLabelValues("find_near", "success").Inc()
	return records, nil
}

// Upsert inserts the record or updates the existing row with the same
// (external_id, source) key. A single atomic statement, so concurrent
// identical saves converge without duplicate rows. Stored metadata is merged
// with the incoming bag rather than replaced, keeping keys the new save
// does not carry.
func (s *Store) Upsert(ctx context.Context, rec domain.BuildingRecord) (int64, error) {
	if rec.Metadata == nil {
		// A nil map would encode as jsonb null and break the merge below.
		rec.Metadata = domain.Metadata{}
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
        INSERT INTO buildings (external_id, source, name, address, latitude, longitude, metadata, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (external_id, source) DO UPDATE SET
            name = EXCLUDED.name,
            address = EXCLUDED.address,
            latitude = EXCLUDED.latitude,
            longitude = EXCLUDED.longitude,
            metadata = buildings.metadata || EXCLUDED.metadata,
            expires_at = EXCLUDED.expires_at,
            updated_at = now()
        RETURNING id
    `, rec.ExternalID, rec.Source, rec.Name, rec.Address,
		rec.Coordinate.Latitude, rec.Coordinate.Longitude, rec.Metadata, rec.ExpiresAt).Scan(&id)
	if err != nil {
		s.metrics.StoreOps.WithLabelValues("upsert", "error").Inc()
		return 0, fmt.Errorf("upsert building %s/%s: %w", rec.Source, rec.ExternalID, err)
	}
	s.metrics.StoreOps.WithLabelValues("upsert", "success").Inc()
	return id, nil
}
