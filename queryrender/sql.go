package queryrender

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/lib/pq"
)

const (
	geometryColumn         = "ST_AsText(geom)"
	centroidGeometryColumn = "ST_AsText(ST_Centroid(geom))"
	idColumn               = "osm_id"
	versionColumn          = "version"
)

// Statement is the SELECT statement for one geometry class.
// Columns are the tag names of the columns after the geometry, id and version columns.
type Statement struct {
	Table   rawdata.GeometryClass
	Columns []string
	SQL     string
}

// WithViews returns a copy of the statement that reads from the boundary views instead of the tables
func (s *Statement) WithViews() *Statement {
	return &Statement{
		Table:   s.Table,
		Columns: append([]string{}, s.Columns...),
		SQL:     UseViews(s.SQL),
	}
}

type SQLRenderer struct{}

func NewSQLRenderer() *SQLRenderer {
	return &SQLRenderer{}
}

// Render builds one SELECT statement per table of the model.
// Tables that can't be rendered are skipped, and reported together in the returned error.
func (r *SQLRenderer) Render(model *rawdata.QueryModel, includeFullGeometry bool) ([]*Statement, errorsx.Error) {
	renderErrs := model.Inconsistencies()
	failedTables := make(map[rawdata.GeometryClass]bool)
	for _, renderErr := range renderErrs {
		failedTables[renderErr.Table] = true
	}

	geomColumn := geometryColumn
	if !includeFullGeometry || model.Centroid() {
		geomColumn = centroidGeometryColumn
	}

	var statements []*Statement
	for _, table := range model.Tables() {
		if failedTables[table] {
			continue
		}

		statement, renderErr := renderStatement(table, geomColumn, model.Select(table), model.Where(table))
		if renderErr != nil {
			renderErrs = append(renderErrs, renderErr)
			continue
		}

		statements = append(statements, statement)
	}

	return statements, renderErrs.ErrOrNil()
}

func renderStatement(table rawdata.GeometryClass, geomColumn string, selects []rawdata.SelectItem, wheres []rawdata.Predicate) (*Statement, *rawdata.RenderError) {
	columns := []string{geomColumn, idColumn, versionColumn}
	var tagColumns []string
	for _, item := range selects {
		if item.Name == "" {
			return nil, &rawdata.RenderError{Table: table, Reason: "select entry with no tag name"}
		}
		columns = append(columns, tagExpression(item.Name))
		tagColumns = append(tagColumns, item.Name)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)

	whereClause, renderErr := renderWhere(table, wheres)
	if renderErr != nil {
		return nil, renderErr
	}

	if whereClause != "" {
		sql += " WHERE " + whereClause
	}

	return &Statement{
		Table:   table,
		Columns: tagColumns,
		SQL:     sql,
	}, nil
}

// renderWhere renders the or-group and the and-group of the predicates, and joins the two with AND.
// Predicates on the same tag are only folded in the or-group. Every predicate of the and-group must hold on its own.
// An empty string means there is no filter on the table.
func renderWhere(table rawdata.GeometryClass, predicates []rawdata.Predicate) (string, *rawdata.RenderError) {
	orGroup, andGroup := joinGroups(predicates)

	var groups []string
	for _, group := range []struct {
		predicates []rawdata.Predicate
		separator  string
	}{
		{foldPredicates(orGroup), " OR "},
		{andGroup, " AND "},
	} {
		if len(group.predicates) == 0 {
			continue
		}

		var clauses []string
		for _, predicate := range group.predicates {
			if predicate.Tag == "" {
				return "", &rawdata.RenderError{Table: table, Reason: "filter with no tag name"}
			}
			clauses = append(clauses, predicateSQL(predicate))
		}
		groups = append(groups, strings.Join(clauses, group.separator))
	}

	switch len(groups) {
	case 0:
		return "", nil
	case 1:
		return groups[0], nil
	default:
		return "(" + strings.Join(groups, ") AND (") + ")", nil
	}
}

func predicateSQL(predicate rawdata.Predicate) string {
	expression := tagExpression(predicate.Tag)

	if predicate.IsPresenceTest() {
		return expression + " IS NOT NULL"
	}

	var scalars []string
	var clauses []string
	for _, value := range predicate.Values {
		if value.IsArray() {
			clauses = append(clauses, fmt.Sprintf("%s = ANY(%s)", expression, arrayLiteral(value.Array)))
			continue
		}
		scalars = append(scalars, pq.QuoteLiteral(value.Scalar))
	}

	switch len(scalars) {
	case 0:
	case 1:
		clauses = append([]string{fmt.Sprintf("%s = %s", expression, scalars[0])}, clauses...)
	default:
		clauses = append([]string{fmt.Sprintf("%s IN (%s)", expression, strings.Join(scalars, ", "))}, clauses...)
	}

	if len(clauses) == 1 {
		return clauses[0]
	}

	return "(" + strings.Join(clauses, " OR ") + ")"
}

func arrayLiteral(values []string) string {
	if len(values) == 0 {
		return "ARRAY[]::text[]"
	}

	var quoted []string
	for _, value := range values {
		quoted = append(quoted, pq.QuoteLiteral(value))
	}
	return "ARRAY[" + strings.Join(quoted, ", ") + "]"
}

func tagExpression(tag string) string {
	return "tags->>" + pq.QuoteLiteral(tag)
}

var fromTableRegexp = regexp.MustCompile(`(?i)\bFROM\s+(nodes|ways_line|ways_poly)\b`)

// UseViews replaces the table names after FROM with the names of their boundary views, e.g. nodes becomes nodes_view.
// Quoted literals are not changed.
func UseViews(sql string) string {
	return replaceUnquoted(sql, func(unquoted string) string {
		return fromTableRegexp.ReplaceAllStringFunc(unquoted, func(match string) string {
			return match + "_view"
		})
	})
}
