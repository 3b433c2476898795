package queryrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "single statement",
			sql:  "SELECT osm_id FROM nodes",
			want: []string{"SELECT osm_id FROM nodes"},
		}, {
			name: "several statements and empty ones",
			sql:  "SELECT osm_id FROM nodes;\n ;SELECT osm_id FROM ways_line;\n",
			want: []string{"SELECT osm_id FROM nodes", "SELECT osm_id FROM ways_line"},
		}, {
			name: "semicolon inside a literal",
			sql:  "SELECT osm_id FROM nodes WHERE ST_Contains(ST_GeomFromEWKT('SRID=4326;POINT(1 2)'), geom); SELECT 1",
			want: []string{"SELECT osm_id FROM nodes WHERE ST_Contains(ST_GeomFromEWKT('SRID=4326;POINT(1 2)'), geom)", "SELECT 1"},
		}, {
			name: "escaped quote inside a literal",
			sql:  "SELECT osm_id FROM nodes WHERE tags->>'name' = 'O''Neill;s'",
			want: []string{"SELECT osm_id FROM nodes WHERE tags->>'name' = 'O''Neill;s'"},
		}, {
			name: "only separators",
			sql:  " ; ;\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.sql))
		})
	}
}
