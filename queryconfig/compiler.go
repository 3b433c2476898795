package queryconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"gopkg.in/yaml.v3"
)

// Compiler turns filter configs into query models.
// Relative config paths are resolved against dataDir, if it is set.
type Compiler struct {
	fs      gofs.Fs
	dataDir string
}

func NewCompiler(fs gofs.Fs, dataDir string) *Compiler {
	return &Compiler{fs, dataDir}
}

// ParseFile parses a config file, choosing the format by the file suffix
func (c *Compiler) ParseFile(path string) (*rawdata.QueryModel, errorsx.Error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return c.ParseJSON(path)
	case ".yaml", ".yml":
		return c.ParseYAML(path)
	default:
		return nil, errorsx.Wrap(&rawdata.ConfigFormatError{
			Source: path,
			Reason: fmt.Sprintf("unsupported file suffix %q", filepath.Ext(path)),
		})
	}
}

type sourceFormat int

const (
	sourceFormatYAML sourceFormat = iota
	sourceFormatJSON
)

// readSource loads the bytes of a config source.
// A source can be a file path, a byte slice, a reader or an already-parsed mapping.
func (c *Compiler) readSource(source interface{}, format sourceFormat) ([]byte, string, errorsx.Error) {
	switch s := source.(type) {
	case string:
		path := c.resolvePath(s)
		data, err := c.fs.ReadFile(path)
		if err != nil {
			return nil, path, errorsx.Wrap(&rawdata.ConfigFormatError{Source: path, Reason: "couldn't read config file", Err: err})
		}
		return data, path, nil
	case []byte:
		return s, "<bytes>", nil
	case io.Reader:
		data, err := ioutil.ReadAll(s)
		if err != nil {
			return nil, "<reader>", errorsx.Wrap(&rawdata.ConfigFormatError{Source: "<reader>", Reason: "couldn't read config", Err: err})
		}
		return data, "<reader>", nil
	case map[string]interface{}:
		var data []byte
		var err error
		switch format {
		case sourceFormatJSON:
			data, err = json.Marshal(s)
		default:
			data, err = yaml.Marshal(s)
		}
		if err != nil {
			return nil, "<map>", errorsx.Wrap(&rawdata.ConfigFormatError{Source: "<map>", Reason: "couldn't encode mapping", Err: err})
		}
		return data, "<map>", nil
	default:
		return nil, "", errorsx.Wrap(&rawdata.ConfigFormatError{
			Reason: fmt.Sprintf("unsupported config source type %T", source),
		})
	}
}

func (c *Compiler) resolvePath(path string) string {
	if c.dataDir == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(c.dataDir, path)
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}
