package rawdatadal

import (
	"context"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RelationalStore is a spatial database holding the nodes, ways_line and ways_poly tables
type RelationalStore interface {
	// CreateBoundaryViews (re)creates one "<table>_view" per table, holding only the rows inside the boundary
	CreateBoundaryViews(ctx context.Context, tables []rawdata.GeometryClass, boundary orb.Geometry) errorsx.Error
	// Query runs a SQL statement and returns the raw rows
	Query(ctx context.Context, sql string) ([][]interface{}, errorsx.Error)
}

// ExtractResult is the outcome of an extract.
// Features is nil when the remote service was asked for an output type other than GeoJSON.
type ExtractResult struct {
	DownloadURL string
	Features    *geojson.FeatureCollection
}

// RemoteExtractService submits a remote query document and waits for the extract to finish
type RemoteExtractService interface {
	Extract(ctx context.Context, query string) (*ExtractResult, errorsx.Error)
}
