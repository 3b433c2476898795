package queryrender

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
)

const minRowColumns = 3

// Decoder turns rows of the relational store into features.
// A row is the geometry as WKT, the OSM id, the version, then one value per column name.
type Decoder struct {
	table   rawdata.GeometryClass
	columns []string
}

// NewDecoder creates a decoder for the rows of a rendered statement
func NewDecoder(statement *Statement) *Decoder {
	return &Decoder{
		table:   statement.Table,
		columns: append([]string{}, statement.Columns...),
	}
}

// NewCustomSQLDecoder creates a decoder for a hand written query. The column names are taken from the SELECT list.
func NewCustomSQLDecoder(sql string) *Decoder {
	columns := SelectColumnNames(sql)
	if len(columns) > minRowColumns {
		columns = columns[minRowColumns:]
	} else {
		columns = nil
	}

	return &Decoder{
		table:   tableFromSQL(sql),
		columns: columns,
	}
}

// DecodeRows decodes rows for a table of a model.
// If the model has no tables, the rows are from a custom query, and the column names are taken from sql.
func DecodeRows(rows [][]interface{}, model *rawdata.QueryModel, table rawdata.GeometryClass, sql string) *geojson.FeatureCollection {
	if len(model.Tables()) == 0 {
		return NewCustomSQLDecoder(sql).DecodeRows(rows)
	}

	var columns []string
	for _, item := range model.Select(table) {
		columns = append(columns, item.Name)
	}

	return (&Decoder{table: table, columns: columns}).DecodeRows(rows)
}

// DecodeRows decodes all the rows it can. Rows that can't be decoded are skipped.
func (d *Decoder) DecodeRows(rows [][]interface{}) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		feature, ok := d.DecodeRow(row)
		if !ok {
			continue
		}
		fc.Append(feature)
	}
	return fc
}

// DecodeRow decodes one row. ok is false if the row is too short or the geometry isn't valid WKT.
func (d *Decoder) DecodeRow(row []interface{}) (feature *geojson.Feature, ok bool) {
	if len(row) < minRowColumns {
		return nil, false
	}

	geomText, ok := textValue(row[0])
	if !ok {
		return nil, false
	}

	geometry, err := wkt.Unmarshal(geomText)
	if err != nil {
		return nil, false
	}

	feature = geojson.NewFeature(geometry)

	id := normalizeValue(row[1])
	feature.Properties["id"] = id
	feature.Properties["version"] = normalizeValue(row[2])

	for i, value := range row[minRowColumns:] {
		if i >= len(d.columns) {
			break
		}
		if value == nil {
			continue
		}
		feature.Properties[d.columns[i]] = normalizeValue(value)
	}

	if osmID, isInt := id.(int64); isInt && d.table != "" {
		feature.ID = featureID(d.table, osmID)
	}

	return feature, true
}

func featureID(table rawdata.GeometryClass, id int64) string {
	switch table.OSMType() {
	case osm.TypeNode:
		return osm.NodeID(id).FeatureID().String()
	default:
		return osm.WayID(id).FeatureID().String()
	}
}

func textValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// normalizeValue converts driver values into JSON friendly ones: integers become int64 and byte slices strings
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case uint32:
		return int64(v)
	case uint16:
		return int64(v)
	case uint8:
		return int64(v)
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return v
	default:
		return v
	}
}

var (
	selectListRegexp = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+FROM\s`)
	aliasRegexp      = regexp.MustCompile(`(?is)\s+AS\s+("?[\w:]+"?)\s*$`)
	tagAccessRegexp  = regexp.MustCompile(`->>\s*'([^']*)'\s*$`)
	identifierRegexp = regexp.MustCompile(`"?([\w:]+)"?\s*$`)
	customFromRegexp = regexp.MustCompile(`(?i)\bFROM\s+(\w+)`)
)

// SelectColumnNames returns the column names of the first SELECT statement in sql.
// The name of a column is its alias, the tag it reads (tags->>'name'), or its last identifier.
func SelectColumnNames(sql string) []string {
	statements := SplitStatements(sql)
	if len(statements) == 0 {
		return nil
	}

	matches := selectListRegexp.FindStringSubmatch(statements[0])
	if matches == nil {
		return nil
	}

	var names []string
	for i, expression := range splitUnquoted(matches[1], ',', true) {
		names = append(names, columnName(strings.TrimSpace(expression), i))
	}
	return names
}

func columnName(expression string, idx int) string {
	if m := aliasRegexp.FindStringSubmatch(expression); m != nil {
		return strings.Trim(m[1], `"`)
	}
	if m := tagAccessRegexp.FindStringSubmatch(expression); m != nil {
		return m[1]
	}
	if m := identifierRegexp.FindStringSubmatch(strings.TrimRight(expression, ")")); m != nil {
		return m[1]
	}
	return fmt.Sprintf("column%d", idx)
}

func tableFromSQL(sql string) rawdata.GeometryClass {
	m := customFromRegexp.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}

	gc, err := rawdata.ParseGeometryClass(strings.TrimSuffix(m[1], "_view"))
	if err != nil {
		return ""
	}
	return gc
}
