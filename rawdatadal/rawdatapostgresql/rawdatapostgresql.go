package rawdatapostgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/hotosm/osm-rawdata/rawdatadal"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

var _ rawdatadal.RelationalStore = &PostgresqlStore{}

const boundarySRID = 4326

// PostgresqlStore is a PostGIS database with the nodes, ways_line and ways_poly tables
type PostgresqlStore struct {
	logger *logpkg.Logger
	db     *sqlx.DB
}

func NewPostgresqlStore(logger *logpkg.Logger, db *sqlx.DB) *PostgresqlStore {
	return &PostgresqlStore{logger, db}
}

// NewDBConn opens a connection. connStr is the connection string without the "postgresql://" prefix.
func NewDBConn(logger *logpkg.Logger, connStr string) (*PostgresqlStore, errorsx.Error) {
	db, err := sqlx.Open("postgres", "postgresql://"+connStr)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return NewPostgresqlStore(logger, db), nil
}

func (s *PostgresqlStore) CreateBoundaryViews(ctx context.Context, tables []rawdata.GeometryClass, boundary orb.Geometry) errorsx.Error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		for _, statement := range BoundaryViewStatements(table, boundary) {
			_, err = tx.ExecContext(ctx, statement)
			if err != nil {
				return errorsx.Wrap(err, "table", table)
			}
		}
		s.logger.Debug("created view %q", table.ViewName())
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

func (s *PostgresqlStore) Query(ctx context.Context, sql string) ([][]interface{}, errorsx.Error) {
	startTime := time.Now()

	rows, err := s.db.QueryxContext(ctx, sql)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer rows.Close()

	var results [][]interface{}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		results = append(results, row)
	}

	err = rows.Err()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	s.logger.Debug("fetched %d rows in %s", len(results), time.Since(startTime))

	return results, nil
}

func (s *PostgresqlStore) Close() errorsx.Error {
	return errorsx.Wrap(s.db.Close())
}

// BoundaryViewStatements are the statements that replace the view of a table with one limited to the boundary
func BoundaryViewStatements(table rawdata.GeometryClass, boundary orb.Geometry) []string {
	ewkt := fmt.Sprintf("SRID=%d;%s", boundarySRID, wkt.MarshalString(boundary))

	return []string{
		fmt.Sprintf("DROP VIEW IF EXISTS %s", table.ViewName()),
		fmt.Sprintf(
			"CREATE VIEW %s AS SELECT * FROM %s WHERE ST_CONTAINS(ST_GeomFromEWKT(%s), geom)",
			table.ViewName(),
			table,
			pq.QuoteLiteral(ewkt),
		),
	}
}
