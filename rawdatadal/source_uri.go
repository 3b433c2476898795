package rawdatadal

import (
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

type SourceType string

const (
	SourceTypePostgresql SourceType = "postgresql"
	SourceTypeRemote     SourceType = "underpass"
)

type SourceURI struct {
	Type           SourceType
	ConnectionPath string
}

const ConnectionPathSeparator = "://"

// ParseSourceURI parses a data source.
// "underpass" is the remote extract service. Anything else is a PostgreSQL connection, with or without the postgresql:// prefix.
func ParseSourceURI(str string) (SourceURI, errorsx.Error) {
	str = strings.TrimSpace(str)

	if str == "" {
		return SourceURI{}, errorsx.Errorf("no data source given")
	}

	if str == string(SourceTypeRemote) {
		return SourceURI{Type: SourceTypeRemote}, nil
	}

	idx := strings.Index(str, ConnectionPathSeparator)
	if idx < 0 {
		return SourceURI{
			Type:           SourceTypePostgresql,
			ConnectionPath: str,
		}, nil
	}

	sourceType := str[:idx]
	switch sourceType {
	case "postgresql", "postgres":
	default:
		return SourceURI{}, errorsx.Errorf("unsupported data source type %q", sourceType)
	}

	connectionPath := str[idx+len(ConnectionPathSeparator):]
	if connectionPath == "" {
		return SourceURI{}, errorsx.Errorf("no connection path given in data source %q", str)
	}

	return SourceURI{
		Type:           SourceTypePostgresql,
		ConnectionPath: connectionPath,
	}, nil
}

func (s SourceURI) String() string {
	if s.Type == SourceTypeRemote {
		return string(s.Type)
	}
	return string(s.Type) + ConnectionPathSeparator + s.ConnectionPath
}
