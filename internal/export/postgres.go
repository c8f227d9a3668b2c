package export

import (
	"context"
	"fmt"

	"dqa/internal/quality"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// rollupCopyCols are the columns of the rollup table, in COPY order.
var rollupCopyCols = []string{
	"run_id", "ou_uid", "ou_name", "level", "de_uid", "de_name", "coc_uid", "coc_name",
	"facilities", "reporting_months_count", "outlier_rs_count", "zero_count",
	"value", "availability_bool", "outlier_rs", "extreme_rs", "outlier_fosa",
	"outlier_values", "zero", "always", "never", "stopped", "inconsistent",
}

// PostgresSink appends rollup rows of each run to a Postgres table.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink connects and verifies the connection.
func NewPostgresSink(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Info().Str("table", table).Msg("Connected to PostgreSQL")
	return &PostgresSink{pool: pool, table: table}, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// CreateTableSQL returns the DDL of the rollup table.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id text NOT NULL,
	ou_uid text NOT NULL,
	ou_name text,
	level integer,
	de_uid text NOT NULL,
	de_name text,
	coc_uid text,
	coc_name text,
	facilities integer,
	reporting_months_count integer,
	outlier_rs_count integer,
	zero_count integer,
	value double precision,
	availability_bool double precision,
	outlier_rs double precision,
	extreme_rs double precision,
	outlier_fosa double precision,
	outlier_values double precision,
	zero double precision,
	always double precision,
	never double precision,
	stopped double precision,
	inconsistent double precision
)`, pgx.Identifier{table}.Sanitize())
}

// CopyRollup writes the rollup rows of one run in a single transaction.
// Rows of a previous load of the same run are replaced.
func (s *PostgresSink) CopyRollup(ctx context.Context, runID string, rows []quality.RollupStat) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Ensure the table exists
	if _, err := tx.Exec(ctx, CreateTableSQL(s.table)); err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	// 2. Drop the run's earlier rows
	del := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", pgx.Identifier{s.table}.Sanitize())
	if _, err := tx.Exec(ctx, del, runID); err != nil {
		return 0, fmt.Errorf("delete previous rows: %w", err)
	}

	// 3. Bulk load
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{s.table},
		rollupCopyCols,
		pgx.CopyFromRows(RollupCopyRows(runID, rows)),
	)
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", s.table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	log.Info().Str("runId", runID).Int64("rows", copied).Str("table", s.table).Msg("Rollup copied to PostgreSQL")
	return copied, nil
}

// RollupCopyRows lays rollup rows out in rollupCopyCols order. Nil pointers
// become SQL NULL.
func RollupCopyRows(runID string, rows []quality.RollupStat) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{
			runID, r.OrgUnit, r.OrgUnitName, int32(r.Level),
			r.Key.DataElement, r.DataElementName, r.Key.CategoryOptionCombo, r.COCName,
			int32(r.Facilities), int32(r.ReportingMonths), int32(r.OutlierCount), int32(r.ZeroCount),
			r.MeanValue, r.MeanAvailability, r.OutlierRate, r.ExtremeRate, r.OutlierFOSA,
			r.OutlierValues, r.Zero, r.Always, r.Never, r.Stopped, r.Inconsistent,
		}
	}
	return out
}
