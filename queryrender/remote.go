package queryrender

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RemoteRenderer builds raw-data-api request bodies
type RemoteRenderer struct{}

func NewRemoteRenderer() *RemoteRenderer {
	return &RemoteRenderer{}
}

// Render builds the JSON request body for a model.
// If boundary is nil, the model's own geometry is used.
// extraParams are merged in last, and replace any key of the same name.
func (r *RemoteRenderer) Render(model *rawdata.QueryModel, boundary orb.Geometry, extraParams map[string]interface{}) (string, errorsx.Error) {
	renderErrs := model.Inconsistencies()
	if len(renderErrs) > 0 {
		return "", renderErrs.ErrOrNil()
	}

	if boundary == nil {
		boundary = model.Geometry()
	}

	doc := &orderedObject{}

	if boundary == nil {
		doc.Set("geometry", nil)
	} else {
		doc.Set("geometry", geojson.NewGeometry(boundary))
	}

	var geometryTypes []rawdata.RemoteGeometryType
	for _, gc := range rawdata.AllGeometryClasses {
		if len(model.Select(gc)) > 0 || len(model.Where(gc)) > 0 {
			geometryTypes = append(geometryTypes, gc.RemoteGeometryType())
		}
	}
	if len(geometryTypes) == 0 {
		doc.Set("geometryType", nil)
	} else {
		doc.Set("geometryType", geometryTypes)
	}

	tagFilters := &orderedObject{}
	attributeFilters := &orderedObject{}
	for _, gc := range model.Tables() {
		tagFilters.Set(string(gc.RemoteGeometryType()), remoteTagFilters(model.Where(gc)))

		names := []string{}
		for _, item := range model.Select(gc) {
			names = append(names, item.Name)
		}
		attributeFilters.Set(string(gc.RemoteGeometryType()), names)
	}

	filters := &orderedObject{}
	filters.Set("tags", tagFilters)
	filters.Set("attributes", attributeFilters)
	doc.Set("filters", filters)

	attributes := []string{}
	seenAttributes := make(map[string]bool)
	for _, gc := range model.Tables() {
		for _, item := range model.Select(gc) {
			if seenAttributes[item.Name] {
				continue
			}
			seenAttributes[item.Name] = true
			attributes = append(attributes, item.Name)
		}
	}
	doc.Set("attributes", attributes)

	doc.Set("centroid", model.Centroid())

	modelExtra := model.Extra()
	for _, key := range sortedKeys(modelExtra) {
		if doc.Has(key) {
			continue
		}
		doc.Set(key, modelExtra[key])
	}

	for _, key := range sortedKeys(extraParams) {
		doc.Set(key, extraParams[key])
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", errorsx.Wrap(err)
	}

	return string(b), nil
}

// remoteTagFilters buckets the predicates of a table into the join_or and join_and maps.
// Presence tests don't depend on the join, so they go into both maps with an empty list.
func remoteTagFilters(predicates []rawdata.Predicate) *orderedObject {
	orGroup, andGroup := joinGroups(predicates)

	joinOr := &orderedObject{}
	joinAnd := &orderedObject{}

	type joinMapPair struct {
		predicates   []rawdata.Predicate
		joinMap      *orderedObject
		otherJoinMap *orderedObject
		presenceTags []string
	}

	pairs := []*joinMapPair{
		{predicates: foldPredicates(orGroup), joinMap: joinOr, otherJoinMap: joinAnd},
		{predicates: foldAndPredicates(andGroup), joinMap: joinAnd, otherJoinMap: joinOr},
	}

	for _, pair := range pairs {
		for _, predicate := range pair.predicates {
			if predicate.IsPresenceTest() {
				pair.joinMap.Set(predicate.Tag, []string{})
				pair.presenceTags = append(pair.presenceTags, predicate.Tag)
				continue
			}
			pair.joinMap.Set(predicate.Tag, predicate.Values)
		}
	}

	for _, pair := range pairs {
		for _, tag := range pair.presenceTags {
			if pair.otherJoinMap.Has(tag) {
				continue
			}
			pair.otherJoinMap.Set(tag, []string{})
		}
	}

	filters := &orderedObject{}
	filters.Set(rawdata.JoinOr.JoinKey(), joinOr)
	filters.Set(rawdata.JoinAnd.JoinKey(), joinAnd)
	return filters
}

func sortedKeys(m map[string]interface{}) []string {
	var keys []string
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// orderedObject is a JSON object that keeps its keys in insertion order
type orderedObject struct {
	keys   []string
	values map[string]interface{}
}

// Set adds a key, or replaces the value of an existing key without changing its position
func (o *orderedObject) Set(key string, value interface{}) {
	if o.values == nil {
		o.values = make(map[string]interface{})
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *orderedObject) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o *orderedObject) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBufferString("{")
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
