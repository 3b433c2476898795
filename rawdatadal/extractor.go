package rawdatadal

import (
	"context"
	"time"

	"github.com/hotosm/osm-rawdata/queryrender"
	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/semaphore"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const DefaultMaxConcurrentQueries = 3

type ExtractOptions struct {
	// IncludeFullGeometry returns the full geometry of ways instead of their centroid. Ignored by remote extracts.
	IncludeFullGeometry bool
	// ExtraParams are merged into the remote query document. Ignored by local extracts.
	ExtraParams map[string]interface{}
}

// Extractor runs compiled queries against either a relational store or a remote extract service
type Extractor struct {
	logger               *logpkg.Logger
	store                RelationalStore
	remote               RemoteExtractService
	sqlRenderer          *queryrender.SQLRenderer
	remoteRenderer       *queryrender.RemoteRenderer
	maxConcurrentQueries uint
}

// NewExtractor creates an Extractor. Either store or remote may be nil, but not both.
func NewExtractor(logger *logpkg.Logger, store RelationalStore, remote RemoteExtractService, maxConcurrentQueries uint) *Extractor {
	if maxConcurrentQueries == 0 {
		maxConcurrentQueries = DefaultMaxConcurrentQueries
	}

	return &Extractor{
		logger,
		store,
		remote,
		queryrender.NewSQLRenderer(),
		queryrender.NewRemoteRenderer(),
		maxConcurrentQueries,
	}
}

// Extract runs the model against the remote service if there is one, otherwise against the relational store.
// A local extract can return both a result and an error, when only some of the tables could be rendered.
func (e *Extractor) Extract(ctx context.Context, model *rawdata.QueryModel, boundary orb.Geometry, options ExtractOptions) (*ExtractResult, errorsx.Error) {
	if e.remote != nil {
		return e.ExtractRemote(ctx, model, boundary, options.ExtraParams)
	}

	fc, err := e.ExtractLocal(ctx, model, boundary, options.IncludeFullGeometry)
	if fc == nil {
		return nil, err
	}

	return &ExtractResult{Features: fc}, err
}

// ExtractLocal renders the model to SQL and runs every statement against the relational store.
// Statements that fail to run are logged and contribute no features.
// Tables that could not be rendered are reported in the returned error, alongside the features of the other tables.
func (e *Extractor) ExtractLocal(ctx context.Context, model *rawdata.QueryModel, boundary orb.Geometry, includeFullGeometry bool) (*geojson.FeatureCollection, errorsx.Error) {
	if e.store == nil {
		return nil, errorsx.Errorf("no relational store configured")
	}

	statements, renderErr := e.sqlRenderer.Render(model, includeFullGeometry)
	if renderErr != nil {
		e.logger.Warn("rendering SQL: %s", renderErr)
	}

	if boundary == nil {
		boundary = model.Geometry()
	}

	if boundary != nil && len(statements) != 0 {
		var tables []rawdata.GeometryClass
		for _, statement := range statements {
			tables = append(tables, statement.Table)
		}

		err := e.store.CreateBoundaryViews(ctx, tables, boundary)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		for idx, statement := range statements {
			statements[idx] = statement.WithViews()
		}
	}

	results := make([]*geojson.FeatureCollection, len(statements))

	sema := semaphore.NewSemaphore(e.maxConcurrentQueries)
	for idx, statement := range statements {
		sema.Add()
		go func(idx int, statement *queryrender.Statement) {
			defer sema.Done()

			results[idx] = queryrender.NewDecoder(statement).DecodeRows(e.query(ctx, statement.SQL))
		}(idx, statement)
	}
	sema.Wait()

	if ctx.Err() != nil {
		return nil, errorsx.Wrap(ctx.Err())
	}

	fc := geojson.NewFeatureCollection()
	for _, result := range results {
		fc.Features = append(fc.Features, result.Features...)
	}

	return fc, renderErr
}

// ExtractCustomSQL runs caller supplied SQL. Several statements may be given, separated by semicolons outside of quoted literals.
// Property names are taken from the SELECT list of each statement.
func (e *Extractor) ExtractCustomSQL(ctx context.Context, sql string, boundary orb.Geometry) (*geojson.FeatureCollection, errorsx.Error) {
	if e.store == nil {
		return nil, errorsx.Errorf("no relational store configured")
	}

	if boundary != nil {
		err := e.store.CreateBoundaryViews(ctx, rawdata.AllGeometryClasses, boundary)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, statementSQL := range queryrender.SplitStatements(sql) {
		if boundary != nil {
			statementSQL = queryrender.UseViews(statementSQL)
		}

		decoded := queryrender.NewCustomSQLDecoder(statementSQL).DecodeRows(e.query(ctx, statementSQL))
		fc.Features = append(fc.Features, decoded.Features...)
	}

	if ctx.Err() != nil {
		return nil, errorsx.Wrap(ctx.Err())
	}

	return fc, nil
}

// ExtractRemote renders the model to a remote query document and waits for the remote service to finish the extract.
// The boundary defaults to the geometry of the model.
func (e *Extractor) ExtractRemote(ctx context.Context, model *rawdata.QueryModel, boundary orb.Geometry, extraParams map[string]interface{}) (*ExtractResult, errorsx.Error) {
	if e.remote == nil {
		return nil, errorsx.Errorf("no remote extract service configured")
	}

	query, err := e.remoteRenderer.Render(model, boundary, extraParams)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	e.logger.Debug("submitting remote query: %s", query)

	result, err := e.remote.Extract(ctx, query)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return result, nil
}

func (e *Extractor) query(ctx context.Context, sql string) [][]interface{} {
	startTime := time.Now()

	rows, err := e.store.Query(ctx, sql)
	if err != nil {
		e.logger.Error("running query %q: %s\nStack:\n%s", sql, err, err.Stack())
		return nil
	}

	e.logger.Debug("query returned %d rows in %s: %s", len(rows), time.Since(startTime), sql)

	return rows
}
