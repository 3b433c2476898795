package queryconfig

import (
	"bytes"
	"testing"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompiler(t *testing.T, files map[string]string) *Compiler {
	fs := mockfs.NewMockFs()
	for path, contents := range files {
		err := fs.WriteFile(path, []byte(contents), 0644)
		require.NoError(t, err)
	}

	return NewCompiler(fs, "/data")
}

func scalars(values ...string) []rawdata.FilterValue {
	filterValues := []rawdata.FilterValue{}
	for _, value := range values {
		filterValues = append(filterValues, rawdata.NewScalarValue(value))
	}
	return filterValues
}

func selectNames(items []rawdata.SelectItem) []string {
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

func TestCompiler_ParseYAML(t *testing.T) {
	type want struct {
		tables  []rawdata.GeometryClass
		selects map[rawdata.GeometryClass][]string
		wheres  map[rawdata.GeometryClass][]rawdata.Predicate
	}

	tests := []struct {
		name   string
		config string
		want   want
	}{
		{
			name: "presence test",
			config: `
from:
  - nodes
where:
  tags:
    - building: null
`,
			want: want{
				tables:  []rawdata.GeometryClass{rawdata.GeometryClassNodes},
				selects: map[rawdata.GeometryClass][]string{rawdata.GeometryClassNodes: {"building"}},
				wheres: map[rawdata.GeometryClass][]rawdata.Predicate{
					rawdata.GeometryClassNodes: {{Tag: "building", Values: scalars(), Join: rawdata.JoinOr}},
				},
			},
		}, {
			name: "join groups and boolean values",
			config: `
from:
  - ways_poly
where:
  tags:
    - join_or:
        - amenity: cafe
        - amenity: restaurant
    - join_and:
        - building: true
        - disused: false
        - levels: 3
`,
			want: want{
				tables:  []rawdata.GeometryClass{rawdata.GeometryClassWaysPoly},
				selects: map[rawdata.GeometryClass][]string{rawdata.GeometryClassWaysPoly: {"amenity", "building", "disused", "levels"}},
				wheres: map[rawdata.GeometryClass][]rawdata.Predicate{
					rawdata.GeometryClassWaysPoly: {
						{Tag: "amenity", Values: scalars("cafe"), Join: rawdata.JoinOr},
						{Tag: "amenity", Values: scalars("restaurant"), Join: rawdata.JoinOr},
						{Tag: "building", Values: scalars("yes"), Join: rawdata.JoinAnd},
						{Tag: "disused", Values: scalars("no"), Join: rawdata.JoinAnd},
						{Tag: "levels", Values: scalars("3"), Join: rawdata.JoinAnd},
					},
				},
			},
		}, {
			name: "explicit select and keep",
			config: `
from:
  - nodes
  - ways_line
select:
  - name
  - highway: {}
where:
  tags:
    - highway:
        - primary
        - [trunk, motorway]
keep:
  - ref
  - name
`,
			want: want{
				tables: []rawdata.GeometryClass{rawdata.GeometryClassNodes, rawdata.GeometryClassWaysLine},
				selects: map[rawdata.GeometryClass][]string{
					rawdata.GeometryClassNodes:    {"name", "highway", "ref"},
					rawdata.GeometryClassWaysLine: {"name", "highway", "ref"},
				},
				wheres: map[rawdata.GeometryClass][]rawdata.Predicate{
					rawdata.GeometryClassNodes: {
						{Tag: "highway", Values: []rawdata.FilterValue{rawdata.NewScalarValue("primary"), rawdata.NewArrayValue([]string{"trunk", "motorway"})}, Join: rawdata.JoinOr},
					},
					rawdata.GeometryClassWaysLine: {
						{Tag: "highway", Values: []rawdata.FilterValue{rawdata.NewScalarValue("primary"), rawdata.NewArrayValue([]string{"trunk", "motorway"})}, Join: rawdata.JoinOr},
					},
				},
			},
		}, {
			name: "no from defaults to every geometry class",
			config: `
where:
  tags:
    - waterway: not null
`,
			want: want{
				tables: rawdata.AllGeometryClasses,
				selects: map[rawdata.GeometryClass][]string{
					rawdata.GeometryClassNodes:    {"waterway"},
					rawdata.GeometryClassWaysLine: {"waterway"},
					rawdata.GeometryClassWaysPoly: {"waterway"},
				},
				wheres: map[rawdata.GeometryClass][]rawdata.Predicate{
					rawdata.GeometryClassNodes:    {{Tag: "waterway", Values: scalars("not null"), Join: rawdata.JoinOr}},
					rawdata.GeometryClassWaysLine: {{Tag: "waterway", Values: scalars("not null"), Join: rawdata.JoinOr}},
					rawdata.GeometryClassWaysPoly: {{Tag: "waterway", Values: scalars("not null"), Join: rawdata.JoinOr}},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiler := newTestCompiler(t, nil)

			model, err := compiler.ParseYAML([]byte(tt.config))
			require.NoError(t, err)

			assert.Equal(t, tt.want.tables, model.Tables())
			for _, table := range model.Tables() {
				assert.Equal(t, tt.want.selects[table], selectNames(model.Select(table)))
				assert.Equal(t, tt.want.wheres[table], model.Where(table))
			}
			require.NoError(t, model.Validate())
		})
	}
}

func TestCompiler_ParseYAML_sources(t *testing.T) {
	const config = "from: [nodes]\nwhere:\n  tags:\n    - shop: true\n"

	compiler := newTestCompiler(t, map[string]string{
		"/data/shops.yaml":  config,
		"/other/shops.yaml": config,
	})

	sources := map[string]interface{}{
		"relative path": "shops.yaml",
		"absolute path": "/other/shops.yaml",
		"bytes":         []byte(config),
		"reader":        bytes.NewBufferString(config),
		"mapping": map[string]interface{}{
			"from": []interface{}{"nodes"},
			"where": map[string]interface{}{
				"tags": []interface{}{map[string]interface{}{"shop": true}},
			},
		},
	}

	for name, source := range sources {
		t.Run(name, func(t *testing.T) {
			model, err := compiler.ParseYAML(source)
			require.NoError(t, err)

			assert.Equal(t, []rawdata.Predicate{{Tag: "shop", Values: scalars("yes"), Join: rawdata.JoinOr}}, model.Where(rawdata.GeometryClassNodes))
		})
	}
}

func TestCompiler_ParseYAML_errors(t *testing.T) {
	tests := []struct {
		name           string
		source         interface{}
		isFormatError  bool
		isUnknownClass bool
	}{
		{name: "unsupported source type", source: 123, isFormatError: true},
		{name: "missing file", source: "missing.yaml", isFormatError: true},
		{name: "invalid YAML", source: []byte("from: [nodes\n"), isFormatError: true},
		{name: "empty document", source: []byte(""), isFormatError: true},
		{name: "unknown geometry class", source: []byte("from: [relations]\n"), isUnknownClass: true},
		{name: "mixed join and tag", source: []byte("where:\n  tags:\n    - join_or:\n        - a: b\n      c: d\n"), isFormatError: true},
		{name: "unknown join", source: []byte("where:\n  tags:\n    - join_xor:\n        - a: b\n"), isFormatError: true},
		{name: "non-mapping entry", source: []byte("where:\n  tags:\n    - building\n"), isFormatError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiler := newTestCompiler(t, nil)

			model, err := compiler.ParseYAML(tt.source)
			require.Error(t, err)
			assert.Nil(t, model)
			assert.Equal(t, tt.isFormatError, rawdata.IsConfigFormatError(err))
			assert.Equal(t, tt.isUnknownClass, rawdata.IsUnknownGeometryClassError(err))
		})
	}
}

func TestCompiler_ParseFile(t *testing.T) {
	compiler := newTestCompiler(t, map[string]string{
		"/data/buildings.yml":  "from: [ways_poly]\nwhere:\n  tags:\n    - building: null\n",
		"/data/buildings.json": `{"filters": {"tags": {"polygon": {"join_or": {"building": []}}}}}`,
		"/data/buildings.txt":  "building",
	})

	for _, path := range []string{"buildings.yml", "buildings.json"} {
		model, err := compiler.ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, []rawdata.GeometryClass{rawdata.GeometryClassWaysPoly}, model.Tables())
		assert.Equal(t, []rawdata.Predicate{{Tag: "building", Values: scalars(), Join: rawdata.JoinOr}}, model.Where(rawdata.GeometryClassWaysPoly))
	}

	_, err := compiler.ParseFile("buildings.txt")
	require.Error(t, err)
	assert.True(t, rawdata.IsConfigFormatError(err))
	assert.Contains(t, err.Error(), "unsupported file suffix")
}
