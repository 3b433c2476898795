package rawdata

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeometryClass(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    GeometryClass
		wantErr bool
	}{
		{"nodes", "nodes", GeometryClassNodes, false},
		{"ways_line", "ways_line", GeometryClassWaysLine, false},
		{"ways_poly", "ways_poly", GeometryClassWaysPoly, false},
		{"unknown", "relations", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGeometryClass(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsUnknownGeometryClassError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeometryClassesForRemoteType(t *testing.T) {
	classes, err := GeometryClassesForRemoteType("all_geometry")
	require.NoError(t, err)
	assert.Equal(t, AllGeometryClasses, classes)

	classes, err = GeometryClassesForRemoteType("polygon")
	require.NoError(t, err)
	assert.Equal(t, []GeometryClass{GeometryClassWaysPoly}, classes)

	_, err = GeometryClassesForRemoteType("relation")
	require.Error(t, err)
	assert.True(t, IsUnknownGeometryClassError(err))
}

func TestGeometryClass_RemoteGeometryType(t *testing.T) {
	for _, gc := range AllGeometryClasses {
		classes, err := GeometryClassesForRemoteType(string(gc.RemoteGeometryType()))
		require.NoError(t, err)
		assert.Equal(t, []GeometryClass{gc}, classes)
	}

	assert.Equal(t, osm.TypeNode, GeometryClassNodes.OSMType())
	assert.Equal(t, osm.TypeWay, GeometryClassWaysPoly.OSMType())
	assert.Equal(t, "ways_line_view", GeometryClassWaysLine.ViewName())
}

func TestParseJoinKey(t *testing.T) {
	op, ok, err := ParseJoinKey("join_and")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, JoinAnd, op)

	_, ok, err = ParseJoinKey("building")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseJoinKey("join_xor")
	assert.True(t, ok)
	require.Error(t, err)
	assert.True(t, IsConfigFormatError(err))
}

func TestPredicate_IsPresenceTest(t *testing.T) {
	tests := []struct {
		name      string
		predicate Predicate
		want      bool
	}{
		{"no values", Predicate{Tag: "building"}, true},
		{"not null", Predicate{Tag: "building", Values: []FilterValue{NewScalarValue("not null")}}, true},
		{"value", Predicate{Tag: "building", Values: []FilterValue{NewScalarValue("yes")}}, false},
		{"not null among others", Predicate{Tag: "building", Values: []FilterValue{NewScalarValue("not null"), NewScalarValue("yes")}}, false},
		{"empty array", Predicate{Tag: "building", Values: []FilterValue{NewArrayValue(nil)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.predicate.IsPresenceTest())
		})
	}
}

func TestQueryModelBuilder_Build(t *testing.T) {
	b := NewQueryModelBuilder()
	b.AddTable(GeometryClassNodes)
	b.AddTable(GeometryClassWaysPoly)
	b.AddTable(GeometryClassNodes)
	b.AddSelect(GeometryClassNodes, SelectItem{Name: "amenity"})
	b.AddPredicate(GeometryClassNodes, Predicate{Tag: "amenity", Values: []FilterValue{NewScalarValue("cafe")}, Join: JoinOr})
	b.EnsureClass(GeometryClassWaysPoly)
	b.SetKeep([]string{"name", "name"})
	b.SetGeometry(orb.Point{1, 2})

	model := b.Build()

	assert.Equal(t, []GeometryClass{GeometryClassNodes, GeometryClassWaysPoly}, model.Tables())
	assert.Equal(t, []string{"name"}, model.Keep())
	assert.Equal(t, orb.Point{1, 2}, model.Geometry())
	require.NoError(t, model.Validate())

	// changes to the builder after Build don't leak into the model
	b.AddPredicate(GeometryClassNodes, Predicate{Tag: "shop", Join: JoinOr})
	b.AddTable(GeometryClassWaysLine)
	assert.Len(t, model.Where(GeometryClassNodes), 1)
	assert.Len(t, model.Tables(), 2)

	// changes to the returned values don't leak into the model
	where := model.Where(GeometryClassNodes)
	where[0].Values[0].Scalar = "pub"
	assert.Equal(t, "cafe", model.Where(GeometryClassNodes)[0].Values[0].Scalar)
}

func TestQueryModel_Validate(t *testing.T) {
	b := NewQueryModelBuilder()
	b.AddTable(GeometryClassNodes)
	b.AddSelect(GeometryClassWaysLine, SelectItem{Name: "highway"})

	err := b.Build().Validate()
	require.Error(t, err)
	assert.True(t, IsRenderError(err))
	assert.Contains(t, err.Error(), "no select entry")
	assert.Contains(t, err.Error(), "select entry for a table not in the query")
}

func TestQueryModel_WithGeometry(t *testing.T) {
	b := NewQueryModelBuilder()
	b.AddTable(GeometryClassNodes)
	b.EnsureClass(GeometryClassNodes)
	b.SetCentroid(true)
	model := b.Build()

	square := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	withGeometry := model.WithGeometry(square)

	assert.Nil(t, model.Geometry())
	assert.Equal(t, square, withGeometry.Geometry())
	assert.True(t, withGeometry.Centroid())
	assert.False(t, withGeometry.WithCentroid(false).Centroid())
}

func TestFilterValue_MarshalJSON(t *testing.T) {
	b, err := NewArrayValue(nil).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	b, err = NewScalarValue("yes").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"yes"`, string(b))
}
