package webservices

import (
	"context"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/hotosm/osm-rawdata/queryconfig"
	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/hotosm/osm-rawdata/rawdatadal"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

const maxConfigBodySize = 10 * 1024 * 1024

type configFormat string

const (
	configFormatYAML configFormat = "yaml"
	configFormatJSON configFormat = "json"
)

// readModel compiles the config in the request body. The format is given by the "format" URL parameter, and defaults to YAML.
func readModel(compiler *queryconfig.Compiler, w http.ResponseWriter, r *http.Request) (*rawdata.QueryModel, errorsx.Error) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBodySize))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	format := configFormat(r.URL.Query().Get("format"))
	switch format {
	case "", configFormatYAML:
		return compiler.ParseYAML(body)
	case configFormatJSON:
		return compiler.ParseJSON(body)
	default:
		return nil, errorsx.Wrap(&rawdata.ConfigFormatError{
			Source: "request body",
			Reason: "unsupported format " + strconv.Quote(string(format)),
		})
	}
}

// readBoundary returns the boundary given by either the "bounds" URL parameter (W,N,E,S) or the "tile" URL parameter (z/x/y), or nil if there is none
func readBoundary(r *http.Request) (orb.Geometry, errorsx.Error) {
	boundsStr := r.URL.Query().Get("bounds")
	tileStr := r.URL.Query().Get("tile")

	var bounds osm.Bounds
	var err errorsx.Error
	switch {
	case boundsStr != "" && tileStr != "":
		return nil, errorsx.Errorf("only one of 'bounds' and 'tile' may be given")
	case boundsStr != "":
		bounds, err = rawdatadal.ParseBounds(boundsStr)
	case tileStr != "":
		bounds, err = rawdatadal.ParseTile(tileStr)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return rawdatadal.BoundaryFromBounds(bounds), nil
}

func readBoolParam(r *http.Request, name string) (bool, errorsx.Error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errorsx.Wrap(err, "param", name)
	}

	return b, nil
}

// compileErrorStatus is 400 for errors in the config, and 500 for anything else
func compileErrorStatus(err error) int {
	if rawdata.IsConfigFormatError(err) || rawdata.IsUnknownGeometryClassError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// startSpan starts a tracing span, if the request is being traced
func startSpan(ctx context.Context, name string) func() {
	if ctx.Value(tracing.TracerCtxKey) == nil || ctx.Value(tracing.TraceCtxKey) == nil {
		return func() {}
	}

	span := tracing.StartSpan(ctx, name)
	return func() {
		span.End(ctx)
	}
}
