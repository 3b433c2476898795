package queryconfig

import (
	"fmt"
	"strings"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/tidwall/gjson"
)

const (
	jsonKeyGeometry   = "geometry"
	jsonKeyCentroid   = "centroid"
	jsonKeyFilters    = "filters"
	jsonKeyTags       = "tags"
	jsonKeyAttributes = "attributes"
)

// ParseJSON parses a JSON filter config, in the same schema as raw-data-api requests.
// Top level scalars that are not part of the query (fileName, outputType...) are kept in the model's Extra settings.
func (c *Compiler) ParseJSON(source interface{}) (*rawdata.QueryModel, errorsx.Error) {
	data, sourceName, err := c.readSource(source, sourceFormatJSON)
	if err != nil {
		return nil, err
	}

	data = trimBOM(data)
	if !gjson.ValidBytes(data) {
		return nil, errorsx.Wrap(&rawdata.ConfigFormatError{Source: sourceName, Reason: "invalid JSON"})
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, errorsx.Wrap(&rawdata.ConfigFormatError{Source: sourceName, Reason: "top level must be an object"})
	}

	p := &jsonParser{sourceName: sourceName, builder: rawdata.NewQueryModelBuilder()}
	err = p.parse(doc)
	if err != nil {
		return nil, err
	}

	return p.builder.Build(), nil
}

type jsonParser struct {
	sourceName string
	builder    *rawdata.QueryModelBuilder
}

// jsonLeaf is a value in the flattened config, with the object keys leading to it
type jsonLeaf struct {
	Path  []string
	Value gjson.Result
}

func (p *jsonParser) parse(doc gjson.Result) errorsx.Error {
	var err errorsx.Error
	doc.ForEach(func(key, value gjson.Result) bool {
		switch {
		case key.String() == jsonKeyGeometry:
			err = p.parseGeometry(value)
		case value.IsObject():
			for _, leaf := range flatten([]string{key.String()}, value) {
				err = p.parseLeaf(leaf)
				if err != nil {
					break
				}
			}
		case key.String() == jsonKeyCentroid:
			p.builder.SetCentroid(value.Bool())
			p.builder.SetExtra(key.String(), value.Value())
		default:
			p.builder.SetExtra(key.String(), value.Value())
		}
		return err == nil
	})
	if err != nil {
		return err
	}

	p.collapsePresenceTests()

	return nil
}

func (p *jsonParser) parseGeometry(value gjson.Result) errorsx.Error {
	if value.Type == gjson.Null {
		return nil
	}

	geometry, err := rawdata.GeometryFromGeoJSON([]byte(value.Raw))
	if err != nil {
		return errorsx.Wrap(&rawdata.ConfigFormatError{Source: p.sourceName, Reason: "invalid geometry", Err: err})
	}

	p.builder.SetGeometry(geometry)
	return nil
}

// parseLeaf dispatches on the shape of the path, e.g. filters:tags:point:join_or:building
func (p *jsonParser) parseLeaf(leaf jsonLeaf) errorsx.Error {
	if len(leaf.Path) < 3 || leaf.Path[0] != jsonKeyFilters {
		return nil
	}

	switch leaf.Path[1] {
	case jsonKeyAttributes:
		classes, err := p.geometryClasses(leaf.Path[2])
		if err != nil {
			return err
		}

		if len(leaf.Path) != 3 || !(leaf.Value.IsArray() || leaf.Value.Type == gjson.Null) {
			return p.formatError(fmt.Sprintf("%s must be a list of tag names", strings.Join(leaf.Path, ":")))
		}

		for _, gc := range classes {
			p.builder.AddTable(gc)
			p.builder.EnsureClass(gc)
			for _, name := range leaf.Value.Array() {
				p.builder.AddSelect(gc, rawdata.SelectItem{Name: name.String()})
			}
		}
		return nil
	case jsonKeyTags:
		classes, err := p.geometryClasses(leaf.Path[2])
		if err != nil {
			return err
		}

		for _, gc := range classes {
			p.builder.AddTable(gc)
			p.builder.EnsureClass(gc)
		}

		// an empty object only registers the geometry classes
		if leaf.Value.IsObject() && len(leaf.Path) <= 4 {
			return nil
		}
		if len(leaf.Path) == 3 {
			return p.formatError(fmt.Sprintf("%s must be an object", strings.Join(leaf.Path, ":")))
		}

		op := rawdata.JoinOr
		tagPath := leaf.Path[3:]
		parsedOp, isJoin, joinErr := rawdata.ParseJoinKey(leaf.Path[3])
		if joinErr != nil {
			return errorsx.Wrap(joinErr, "source", p.sourceName)
		}
		if isJoin {
			op = parsedOp
			tagPath = leaf.Path[4:]
		}

		if len(tagPath) != 1 {
			return p.formatError(fmt.Sprintf("unexpected tag filter path %q", strings.Join(leaf.Path, ":")))
		}

		values, err := p.filterValues(leaf.Value, tagPath[0])
		if err != nil {
			return err
		}

		for _, gc := range classes {
			p.builder.AddPredicate(gc, rawdata.Predicate{
				Tag:    tagPath[0],
				Values: values,
				Join:   op,
			})
		}
		return nil
	default:
		return nil
	}
}

func (p *jsonParser) geometryClasses(name string) ([]rawdata.GeometryClass, errorsx.Error) {
	classes, err := rawdata.GeometryClassesForRemoteType(name)
	if err != nil {
		return nil, errorsx.Wrap(err, "source", p.sourceName)
	}
	return classes, nil
}

func (p *jsonParser) filterValues(value gjson.Result, tag string) ([]rawdata.FilterValue, errorsx.Error) {
	values := []rawdata.FilterValue{}

	switch {
	case value.Type == gjson.Null:
		return values, nil
	case value.IsArray():
		for _, item := range value.Array() {
			switch {
			case item.Type == gjson.Null:
				continue
			case item.IsArray():
				var array []string
				for _, arrayItem := range item.Array() {
					array = append(array, jsonScalarText(arrayItem))
				}
				values = append(values, rawdata.NewArrayValue(array))
			case item.IsObject():
				return nil, p.formatError(fmt.Sprintf("unsupported value for tag %q", tag))
			default:
				values = append(values, rawdata.NewScalarValue(jsonScalarText(item)))
			}
		}
		return values, nil
	case value.IsObject():
		return nil, p.formatError(fmt.Sprintf("unsupported value for tag %q", tag))
	default:
		return append(values, rawdata.NewScalarValue(jsonScalarText(value))), nil
	}
}

// collapsePresenceTests merges presence tests of the same tag that appear in both join maps of a class.
// A presence test doesn't depend on the join, so it is kept once, as an "or" predicate.
func (p *jsonParser) collapsePresenceTests() {
	for _, gc := range rawdata.AllGeometryClasses {
		predicates := p.builder.Predicates(gc)

		orPresence := make(map[string]bool)
		for _, predicate := range predicates {
			if predicate.Join == rawdata.JoinOr && predicate.IsPresenceTest() {
				orPresence[predicate.Tag] = true
			}
		}

		if len(orPresence) == 0 {
			continue
		}

		var kept []rawdata.Predicate
		for _, predicate := range predicates {
			if predicate.Join == rawdata.JoinAnd && predicate.IsPresenceTest() && orPresence[predicate.Tag] {
				continue
			}
			kept = append(kept, predicate)
		}

		if len(kept) != len(predicates) {
			p.builder.ReplacePredicates(gc, kept)
		}
	}
}

func (p *jsonParser) formatError(reason string) errorsx.Error {
	return errorsx.Wrap(&rawdata.ConfigFormatError{Source: p.sourceName, Reason: reason})
}

// flatten walks nested objects in document order. Arrays and scalars are leaves, as are empty objects.
func flatten(path []string, value gjson.Result) []jsonLeaf {
	if !value.IsObject() {
		return []jsonLeaf{{Path: path, Value: value}}
	}

	var leaves []jsonLeaf
	value.ForEach(func(key, child gjson.Result) bool {
		childPath := append(append([]string{}, path...), key.String())
		leaves = append(leaves, flatten(childPath, child)...)
		return true
	})

	if len(leaves) == 0 {
		return []jsonLeaf{{Path: path, Value: value}}
	}

	return leaves
}

func jsonScalarText(value gjson.Result) string {
	switch value.Type {
	case gjson.True:
		return "yes"
	case gjson.False:
		return "no"
	case gjson.Number:
		return value.Raw
	default:
		return value.String()
	}
}
