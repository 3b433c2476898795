package rawdata

import (
	"fmt"
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb"
)

// QueryModel is the normalized, format-independent query built from a filter config.
// A QueryModel is not changed after it has been built, all accessors return copies.
type QueryModel struct {
	tables   []GeometryClass
	selects  map[GeometryClass][]SelectItem
	wheres   map[GeometryClass][]Predicate
	keep     []string
	geometry orb.Geometry
	centroid bool
	extra    map[string]interface{}
}

// Tables returns the geometry classes the query covers, in the order they were first referenced
func (m *QueryModel) Tables() []GeometryClass {
	return append([]GeometryClass{}, m.tables...)
}

func (m *QueryModel) HasTable(gc GeometryClass) bool {
	for _, table := range m.tables {
		if table == gc {
			return true
		}
	}
	return false
}

// Select returns the tags to return for the given class
func (m *QueryModel) Select(gc GeometryClass) []SelectItem {
	var items []SelectItem
	for _, item := range m.selects[gc] {
		items = append(items, item.clone())
	}
	return items
}

// Where returns the predicates for the given class
func (m *QueryModel) Where(gc GeometryClass) []Predicate {
	var predicates []Predicate
	for _, predicate := range m.wheres[gc] {
		predicates = append(predicates, predicate.clone())
	}
	return predicates
}

func (m *QueryModel) Keep() []string {
	return append([]string{}, m.keep...)
}

// Geometry returns the area of interest carried by the config, or nil
func (m *QueryModel) Geometry() orb.Geometry {
	if m.geometry == nil {
		return nil
	}
	return orb.Clone(m.geometry)
}

func (m *QueryModel) Centroid() bool {
	return m.centroid
}

// Extra returns the top level settings of the config that are not part of the query
func (m *QueryModel) Extra() map[string]interface{} {
	extra := make(map[string]interface{}, len(m.extra))
	for k, v := range m.extra {
		extra[k] = v
	}
	return extra
}

// ExtraString returns an extra setting as a string. ok is false if the setting doesn't exist or isn't a string.
func (m *QueryModel) ExtraString(key string) (string, bool) {
	s, ok := m.extra[key].(string)
	return s, ok
}

// WithGeometry returns a copy of the model with the area of interest replaced
func (m *QueryModel) WithGeometry(geometry orb.Geometry) *QueryModel {
	b := m.toBuilder()
	b.SetGeometry(geometry)
	return b.Build()
}

func (m *QueryModel) WithCentroid(centroid bool) *QueryModel {
	b := m.toBuilder()
	b.SetCentroid(centroid)
	return b.Build()
}

// Validate checks that every table has both a select list and a where list,
// and that there are no select or where entries for tables the query doesn't cover.
func (m *QueryModel) Validate() errorsx.Error {
	return m.Inconsistencies().ErrOrNil()
}

// Inconsistencies lists the tables whose select and where entries don't match up
func (m *QueryModel) Inconsistencies() RenderErrors {
	var errs RenderErrors

	for _, table := range m.tables {
		if _, ok := m.selects[table]; !ok {
			errs = append(errs, &RenderError{Table: table, Reason: "no select entry"})
		}
		if _, ok := m.wheres[table]; !ok {
			errs = append(errs, &RenderError{Table: table, Reason: "no where entry"})
		}
	}

	for _, table := range sortedClasses(selectClasses(m.selects)) {
		if !m.HasTable(table) {
			errs = append(errs, &RenderError{Table: table, Reason: "select entry for a table not in the query"})
		}
	}
	for _, table := range sortedClasses(whereClasses(m.wheres)) {
		if !m.HasTable(table) {
			errs = append(errs, &RenderError{Table: table, Reason: "where entry for a table not in the query"})
		}
	}

	return errs
}

func (m *QueryModel) String() string {
	return fmt.Sprintf("QueryModel{tables: %v, keep: %v, centroid: %v, hasGeometry: %v}", m.tables, m.keep, m.centroid, m.geometry != nil)
}

func (m *QueryModel) toBuilder() *QueryModelBuilder {
	b := NewQueryModelBuilder()
	for _, table := range m.tables {
		b.AddTable(table)
	}
	for table, items := range m.selects {
		b.EnsureClass(table)
		b.selects[table] = append(b.selects[table], items...)
	}
	for table, predicates := range m.wheres {
		b.EnsureClass(table)
		b.wheres[table] = append(b.wheres[table], predicates...)
	}
	b.keep = append(b.keep, m.keep...)
	b.geometry = m.geometry
	b.centroid = m.centroid
	for k, v := range m.extra {
		b.extra[k] = v
	}
	return b
}

func selectClasses(m map[GeometryClass][]SelectItem) []GeometryClass {
	var classes []GeometryClass
	for gc := range m {
		classes = append(classes, gc)
	}
	return classes
}

func whereClasses(m map[GeometryClass][]Predicate) []GeometryClass {
	var classes []GeometryClass
	for gc := range m {
		classes = append(classes, gc)
	}
	return classes
}

func sortedClasses(classes []GeometryClass) []GeometryClass {
	sort.Slice(classes, func(i, j int) bool {
		return classes[i] < classes[j]
	})
	return classes
}

// QueryModelBuilder accumulates a QueryModel while a config is being parsed
type QueryModelBuilder struct {
	tables   []GeometryClass
	selects  map[GeometryClass][]SelectItem
	wheres   map[GeometryClass][]Predicate
	keep     []string
	geometry orb.Geometry
	centroid bool
	extra    map[string]interface{}
}

func NewQueryModelBuilder() *QueryModelBuilder {
	return &QueryModelBuilder{
		selects: make(map[GeometryClass][]SelectItem),
		wheres:  make(map[GeometryClass][]Predicate),
		extra:   make(map[string]interface{}),
	}
}

// AddTable registers a table. Registering a table more than once has no effect.
func (b *QueryModelBuilder) AddTable(gc GeometryClass) {
	for _, table := range b.tables {
		if table == gc {
			return
		}
	}
	b.tables = append(b.tables, gc)
}

func (b *QueryModelBuilder) HasTable(gc GeometryClass) bool {
	for _, table := range b.tables {
		if table == gc {
			return true
		}
	}
	return false
}

// EnsureClass creates an empty select and where list for the class, if it doesn't have one yet
func (b *QueryModelBuilder) EnsureClass(gc GeometryClass) {
	if _, ok := b.selects[gc]; !ok {
		b.selects[gc] = []SelectItem{}
	}
	if _, ok := b.wheres[gc]; !ok {
		b.wheres[gc] = []Predicate{}
	}
}

func (b *QueryModelBuilder) AddSelect(gc GeometryClass, item SelectItem) {
	b.EnsureClass(gc)
	b.selects[gc] = append(b.selects[gc], item)
}

// AddSelectIfMissing adds a select item, unless an item with the same name already exists for that class
func (b *QueryModelBuilder) AddSelectIfMissing(gc GeometryClass, name string) {
	b.EnsureClass(gc)
	for _, item := range b.selects[gc] {
		if item.Name == name {
			return
		}
	}
	b.selects[gc] = append(b.selects[gc], SelectItem{Name: name})
}

func (b *QueryModelBuilder) AddPredicate(gc GeometryClass, predicate Predicate) {
	b.EnsureClass(gc)
	b.wheres[gc] = append(b.wheres[gc], predicate)
}

// Predicates returns the predicates added so far for a class. The returned slice must not be modified.
func (b *QueryModelBuilder) Predicates(gc GeometryClass) []Predicate {
	return b.wheres[gc]
}

// ReplacePredicates replaces all the predicates of a class
func (b *QueryModelBuilder) ReplacePredicates(gc GeometryClass, predicates []Predicate) {
	b.EnsureClass(gc)
	b.wheres[gc] = predicates
}

// SetKeep sets the tags that are returned for every table. Duplicates are dropped.
func (b *QueryModelBuilder) SetKeep(keep []string) {
	b.keep = nil
	seen := make(map[string]bool)
	for _, tag := range keep {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		b.keep = append(b.keep, tag)
	}
}

func (b *QueryModelBuilder) SetGeometry(geometry orb.Geometry) {
	b.geometry = geometry
}

func (b *QueryModelBuilder) SetCentroid(centroid bool) {
	b.centroid = centroid
}

func (b *QueryModelBuilder) SetExtra(key string, value interface{}) {
	b.extra[key] = value
}

// Build returns a QueryModel. The builder can keep being used, changes to it won't affect the returned model.
func (b *QueryModelBuilder) Build() *QueryModel {
	m := &QueryModel{
		tables:   append([]GeometryClass{}, b.tables...),
		selects:  make(map[GeometryClass][]SelectItem, len(b.selects)),
		wheres:   make(map[GeometryClass][]Predicate, len(b.wheres)),
		keep:     append([]string{}, b.keep...),
		centroid: b.centroid,
		extra:    make(map[string]interface{}, len(b.extra)),
	}

	for table, items := range b.selects {
		cloned := make([]SelectItem, len(items))
		for i, item := range items {
			cloned[i] = item.clone()
		}
		m.selects[table] = cloned
	}

	for table, predicates := range b.wheres {
		cloned := make([]Predicate, len(predicates))
		for i, predicate := range predicates {
			cloned[i] = predicate.clone()
		}
		m.wheres[table] = cloned
	}

	if b.geometry != nil {
		m.geometry = orb.Clone(b.geometry)
	}

	for k, v := range b.extra {
		m.extra[k] = v
	}

	return m
}
