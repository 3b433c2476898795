package rawdata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/osm"
)

// GeometryClass is one of the three OSM feature geometry buckets. Each one is backed by a table of the same name.
type GeometryClass string

const (
	GeometryClassNodes    GeometryClass = "nodes"
	GeometryClassWaysLine GeometryClass = "ways_line"
	GeometryClassWaysPoly GeometryClass = "ways_poly"
)

// AllGeometryClasses is the canonical order of the geometry classes
var AllGeometryClasses = []GeometryClass{
	GeometryClassNodes,
	GeometryClassWaysLine,
	GeometryClassWaysPoly,
}

// RemoteGeometryType is the geometry vocabulary of the remote extract service
type RemoteGeometryType string

const (
	RemoteGeometryTypePoint       RemoteGeometryType = "point"
	RemoteGeometryTypeLine        RemoteGeometryType = "line"
	RemoteGeometryTypePolygon     RemoteGeometryType = "polygon"
	RemoteGeometryTypeAllGeometry RemoteGeometryType = "all_geometry"
)

// ParseGeometryClass parses a table name (nodes, ways_line, ways_poly)
func ParseGeometryClass(name string) (GeometryClass, errorsx.Error) {
	for _, gc := range AllGeometryClasses {
		if string(gc) == name {
			return gc, nil
		}
	}

	return "", errorsx.Wrap(&UnknownGeometryClassError{Name: name})
}

// GeometryClassesForRemoteType translates a remote geometry type into the geometry classes it covers.
// "all_geometry" fans out to all three classes.
func GeometryClassesForRemoteType(name string) ([]GeometryClass, errorsx.Error) {
	switch RemoteGeometryType(name) {
	case RemoteGeometryTypePoint:
		return []GeometryClass{GeometryClassNodes}, nil
	case RemoteGeometryTypeLine:
		return []GeometryClass{GeometryClassWaysLine}, nil
	case RemoteGeometryTypePolygon:
		return []GeometryClass{GeometryClassWaysPoly}, nil
	case RemoteGeometryTypeAllGeometry:
		return []GeometryClass{GeometryClassNodes, GeometryClassWaysLine, GeometryClassWaysPoly}, nil
	default:
		return nil, errorsx.Wrap(&UnknownGeometryClassError{Name: name})
	}
}

func (gc GeometryClass) RemoteGeometryType() RemoteGeometryType {
	switch gc {
	case GeometryClassNodes:
		return RemoteGeometryTypePoint
	case GeometryClassWaysLine:
		return RemoteGeometryTypeLine
	case GeometryClassWaysPoly:
		return RemoteGeometryTypePolygon
	default:
		panic(fmt.Sprintf("unknown geometry class: %q", string(gc)))
	}
}

// OSMType is the type of the OSM objects stored in the class's table
func (gc GeometryClass) OSMType() osm.Type {
	if gc == GeometryClassNodes {
		return osm.TypeNode
	}
	return osm.TypeWay
}

// ViewName is the name of the boundary-scoped view over the class's table
func (gc GeometryClass) ViewName() string {
	return string(gc) + "_view"
}

type JoinOperator string

const (
	JoinOr  JoinOperator = "or"
	JoinAnd JoinOperator = "and"
)

const joinKeyPrefix = "join_"

// ParseJoinKey parses a "join_or"/"join_and" key.
// ok is false if the key does not have the join_ prefix at all.
func ParseJoinKey(key string) (op JoinOperator, ok bool, err errorsx.Error) {
	if !strings.HasPrefix(key, joinKeyPrefix) {
		return "", false, nil
	}

	switch JoinOperator(strings.TrimPrefix(key, joinKeyPrefix)) {
	case JoinOr:
		return JoinOr, true, nil
	case JoinAnd:
		return JoinAnd, true, nil
	default:
		return "", true, errorsx.Wrap(&ConfigFormatError{Reason: fmt.Sprintf("unsupported join operator %q", key)})
	}
}

func (op JoinOperator) JoinKey() string {
	return joinKeyPrefix + string(op)
}

// NotNullValue is the legacy literal meaning "the tag is set"
const NotNullValue = "not null"

// FilterValue is one match value of a predicate.
// If Array is not nil, the value is an array and Scalar is ignored.
type FilterValue struct {
	Scalar string
	Array  []string
}

func NewScalarValue(value string) FilterValue {
	return FilterValue{Scalar: value}
}

func NewArrayValue(values []string) FilterValue {
	if values == nil {
		values = []string{}
	}
	return FilterValue{Array: values}
}

func (v FilterValue) IsArray() bool {
	return v.Array != nil
}

func (v FilterValue) MarshalJSON() ([]byte, error) {
	if v.IsArray() {
		return json.Marshal(v.Array)
	}
	return json.Marshal(v.Scalar)
}

func (v FilterValue) String() string {
	if v.IsArray() {
		return fmt.Sprintf("%v", v.Array)
	}
	return v.Scalar
}

// Predicate is a filter on one tag. No values means the tag must be present (non-null).
type Predicate struct {
	Tag    string
	Values []FilterValue
	Join   JoinOperator
}

// IsPresenceTest returns true if the predicate only tests that the tag is set
func (p Predicate) IsPresenceTest() bool {
	if len(p.Values) == 0 {
		return true
	}

	return len(p.Values) == 1 && !p.Values[0].IsArray() && p.Values[0].Scalar == NotNullValue
}

func (p Predicate) clone() Predicate {
	values := make([]FilterValue, len(p.Values))
	for i, value := range p.Values {
		if value.IsArray() {
			value.Array = append([]string{}, value.Array...)
		}
		values[i] = value
	}
	return Predicate{Tag: p.Tag, Values: values, Join: p.Join}
}

// SelectItem is a tag to return in the output.
// Transform is kept for forward compatibility, and does not change how the tag is rendered.
type SelectItem struct {
	Name      string
	Transform map[string]interface{}
}

func (s SelectItem) clone() SelectItem {
	var transform map[string]interface{}
	if s.Transform != nil {
		transform = make(map[string]interface{}, len(s.Transform))
		for k, v := range s.Transform {
			transform[k] = v
		}
	}
	return SelectItem{Name: s.Name, Transform: transform}
}
