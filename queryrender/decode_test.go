package queryrender

import (
	"testing"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRows(t *testing.T) {
	model := parseYAML(t, "from: [nodes]\nwhere:\n  tags:\n    - building: null\n")

	fc := DecodeRows([][]interface{}{
		{"POINT(1 2)", 42, 3, "yes"},
	}, model, rawdata.GeometryClassNodes, "")

	require.Len(t, fc.Features, 1)
	feature := fc.Features[0]
	assert.Equal(t, orb.Point{1, 2}, feature.Geometry)
	assert.Equal(t, map[string]interface{}{
		"id":       int64(42),
		"version":  int64(3),
		"building": "yes",
	}, map[string]interface{}(feature.Properties))
	assert.Equal(t, "node/42", feature.ID)
}

func TestDecoder_DecodeRows(t *testing.T) {
	decoder := NewDecoder(&Statement{
		Table:   rawdata.GeometryClassWaysPoly,
		Columns: []string{"building", "name"},
	})

	fc := decoder.DecodeRows([][]interface{}{
		{"POLYGON((0 0,1 0,1 1,0 0))", int64(7), int64(1), []byte("house"), nil},
		{"POINT(1 2)", int64(8)},
		{"NOT WKT", int64(9), int64(1), "house", "x"},
		{nil, int64(10), int64(1), "house", "x"},
		{"POINT(3 4)", int64(11), int64(2), nil, "Town Hall", "extra column"},
	})

	require.Len(t, fc.Features, 2)

	assert.Equal(t, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, fc.Features[0].Geometry)
	assert.Equal(t, "way/7", fc.Features[0].ID)
	assert.Equal(t, map[string]interface{}{
		"id":       int64(7),
		"version":  int64(1),
		"building": "house",
	}, map[string]interface{}(fc.Features[0].Properties))

	assert.Equal(t, "way/11", fc.Features[1].ID)
	assert.Equal(t, map[string]interface{}{
		"id":      int64(11),
		"version": int64(2),
		"name":    "Town Hall",
	}, map[string]interface{}(fc.Features[1].Properties))
}

func TestDecodeRows_customSQL(t *testing.T) {
	sql := "SELECT ST_AsText(geom) AS geometry, osm_id, version, tags->>'amenity', tags->>'name' AS label FROM nodes WHERE tags->>'amenity' = 'school'"

	model := rawdata.NewQueryModelBuilder().Build()
	fc := DecodeRows([][]interface{}{
		{"POINT(5 6)", int64(1), int64(4), "school", "Primary School"},
	}, model, "", sql)

	require.Len(t, fc.Features, 1)
	assert.Equal(t, "node/1", fc.Features[0].ID)
	assert.Equal(t, map[string]interface{}{
		"id":      int64(1),
		"version": int64(4),
		"amenity": "school",
		"label":   "Primary School",
	}, map[string]interface{}(fc.Features[0].Properties))
}

func TestSelectColumnNames(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "rendered statement",
			sql:  "SELECT ST_AsText(geom), osm_id, version, tags->>'building' FROM nodes WHERE tags->>'building' IS NOT NULL",
			want: []string{"geom", "osm_id", "version", "building"},
		}, {
			name: "aliases and functions with commas",
			sql:  "select ST_AsText(ST_Transform(geom, 4326)) as wkt, n.osm_id, version, COALESCE(tags->>'name', 'unknown') AS \"name\" from nodes n;SELECT 1",
			want: []string{"wkt", "osm_id", "version", "name"},
		}, {
			name: "semicolon and comma inside a literal",
			sql:  "SELECT ST_AsText(geom), osm_id, version, COALESCE(tags->>'name', 'a;b, c') AS label FROM nodes",
			want: []string{"geom", "osm_id", "version", "label"},
		}, {
			name: "not a select",
			sql:  "DROP VIEW nodes_view",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectColumnNames(tt.sql))
		})
	}
}
