package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Migrate creates the schema if it does not exist yet. Every statement is
// idempotent so it is safe to run on each start.
func Migrate(ctx context.Context, db bun.IDB, logr *zap.Logger) error {
	migrations := []string{
		createPostGISExtension,
		createProjectTypeEnum,
		createProjectsTable,
		createFeaturesTable,
	}

	for i, migration := range migrations {
		logr.Debug("running migration", zap.Int("step", i+1), zap.Int("total", len(migrations)))
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logr.Info("schema migrations completed", zap.Int("count", len(migrations)))
	return nil
}

const createPostGISExtension = `CREATE EXTENSION IF NOT EXISTS postgis;`

const createProjectTypeEnum = `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'geo_project_type') THEN
    CREATE TYPE geo_project_type AS ENUM ('Feature', 'FeatureCollection');
  END IF;
END$$;
`

const createProjectsTable = `
CREATE TABLE IF NOT EXISTS projects (
  project_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  name VARCHAR(32) NOT NULL,
  description VARCHAR(255),
  start_date DATE NOT NULL,
  end_date DATE NOT NULL,
  geo_project_type geo_project_type NOT NULL,
  bbox DOUBLE PRECISION[],
  created_at TIMESTAMP NOT NULL DEFAULT now(),
  updated_at TIMESTAMP NOT NULL DEFAULT now(),
  CONSTRAINT projects_date_range_check CHECK (end_date >= start_date),
  CONSTRAINT projects_name_start_date_end_date_key UNIQUE (name, start_date, end_date),
  CONSTRAINT projects_bbox_length_check CHECK (bbox IS NULL OR array_length(bbox, 1) = 4)
);
`

const createFeaturesTable = `
CREATE TABLE IF NOT EXISTS features (
  feature_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  geometry GEOMETRY NOT NULL,
  properties JSON,
  project_id BIGINT NOT NULL REFERENCES projects (project_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS ix_features_project_id ON features (project_id);
`
