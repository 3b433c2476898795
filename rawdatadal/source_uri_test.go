package rawdatadal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceURI(t *testing.T) {
	type args struct {
		str string
	}
	tests := []struct {
		name    string
		args    args
		want    SourceURI
		wantErr bool
	}{
		{
			name: "postgresql prefix",
			args: args{"postgresql://localhost/osm"},
			want: SourceURI{
				Type:           SourceTypePostgresql,
				ConnectionPath: "localhost/osm",
			},
		}, {
			name: "postgres prefix",
			args: args{"postgres://user:pass@db:5432/osm?sslmode=disable"},
			want: SourceURI{
				Type:           SourceTypePostgresql,
				ConnectionPath: "user:pass@db:5432/osm?sslmode=disable",
			},
		}, {
			name: "no prefix",
			args: args{"localhost/colorado"},
			want: SourceURI{
				Type:           SourceTypePostgresql,
				ConnectionPath: "localhost/colorado",
			},
		}, {
			name: "remote",
			args: args{"underpass"},
			want: SourceURI{Type: SourceTypeRemote},
		}, {
			name:    "unknown type",
			args:    args{"parquet://data.parquet"},
			wantErr: true,
		}, {
			name:    "empty",
			args:    args{""},
			wantErr: true,
		}, {
			name:    "no connection path",
			args:    args{"postgresql://"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSourceURI(tt.args.str)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "postgresql://localhost/osm", SourceURI{Type: SourceTypePostgresql, ConnectionPath: "localhost/osm"}.String())
}
