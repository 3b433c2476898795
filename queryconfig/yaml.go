package queryconfig

import (
	"fmt"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"gopkg.in/yaml.v3"
)

const (
	yamlKeyFrom   = "from"
	yamlKeySelect = "select"
	yamlKeyWhere  = "where"
	yamlKeyTags   = "tags"
	yamlKeyKeep   = "keep"
)

type yamlPair struct {
	Key   string
	Value *yaml.Node
}

// ParseYAML parses a YAML filter config, with the keys from, select, where.tags and keep
func (c *Compiler) ParseYAML(source interface{}) (*rawdata.QueryModel, errorsx.Error) {
	data, sourceName, err := c.readSource(source, sourceFormatYAML)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	unmarshalErr := yaml.Unmarshal(trimBOM(data), &doc)
	if unmarshalErr != nil {
		return nil, errorsx.Wrap(&rawdata.ConfigFormatError{Source: sourceName, Reason: "invalid YAML", Err: unmarshalErr})
	}

	p := &yamlParser{sourceName: sourceName, builder: rawdata.NewQueryModelBuilder()}
	err = p.parse(&doc)
	if err != nil {
		return nil, err
	}

	return p.builder.Build(), nil
}

type yamlParser struct {
	sourceName string
	builder    *rawdata.QueryModelBuilder
	tables     []rawdata.GeometryClass
}

func (p *yamlParser) parse(doc *yaml.Node) errorsx.Error {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return p.formatError("empty document")
	}

	top, err := p.mappingPairs(doc.Content[0], "top level")
	if err != nil {
		return err
	}

	sections := make(map[string]*yaml.Node)
	for _, pair := range top {
		sections[pair.Key] = pair.Value
	}

	err = p.parseFrom(sections[yamlKeyFrom])
	if err != nil {
		return err
	}

	err = p.parseWhere(sections[yamlKeyWhere])
	if err != nil {
		return err
	}

	keep, err := p.stringList(sections[yamlKeyKeep], yamlKeyKeep)
	if err != nil {
		return err
	}
	p.builder.SetKeep(keep)

	err = p.parseSelect(sections[yamlKeySelect])
	if err != nil {
		return err
	}

	for _, table := range p.tables {
		for _, tag := range keep {
			p.builder.AddSelectIfMissing(table, tag)
		}
	}

	return nil
}

func (p *yamlParser) parseFrom(node *yaml.Node) errorsx.Error {
	names, err := p.stringList(node, yamlKeyFrom)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		p.tables = append([]rawdata.GeometryClass{}, rawdata.AllGeometryClasses...)
	}

	for _, name := range names {
		gc, err := rawdata.ParseGeometryClass(name)
		if err != nil {
			return errorsx.Wrap(err, "source", p.sourceName)
		}
		p.tables = append(p.tables, gc)
	}

	for _, table := range p.tables {
		p.builder.AddTable(table)
		p.builder.EnsureClass(table)
	}

	return nil
}

func (p *yamlParser) parseWhere(node *yaml.Node) errorsx.Error {
	if isNull(node) {
		return nil
	}

	pairs, err := p.mappingPairs(node, yamlKeyWhere)
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		if pair.Key != yamlKeyTags {
			continue
		}

		if isNull(pair.Value) {
			continue
		}

		if pair.Value.Kind != yaml.SequenceNode {
			return p.formatError("where.tags must be a list")
		}

		for _, entry := range pair.Value.Content {
			predicates, err := p.parseWhereEntry(entry)
			if err != nil {
				return err
			}

			for _, table := range p.tables {
				for _, predicate := range predicates {
					p.builder.AddPredicate(table, predicate)
				}
			}
		}
	}

	return nil
}

// parseWhereEntry parses one item of where.tags. An item without a join_ key is an implicit join_or.
func (p *yamlParser) parseWhereEntry(entry *yaml.Node) ([]rawdata.Predicate, errorsx.Error) {
	pairs, err := p.mappingPairs(entry, "where.tags entry")
	if err != nil {
		return nil, err
	}

	var joinPairs, tagPairs int
	for _, pair := range pairs {
		_, isJoin, err := rawdata.ParseJoinKey(pair.Key)
		if err != nil {
			return nil, errorsx.Wrap(err, "source", p.sourceName)
		}
		if isJoin {
			joinPairs++
		} else {
			tagPairs++
		}
	}

	if joinPairs > 0 && tagPairs > 0 {
		return nil, p.formatError("a where.tags entry can't mix join keys and tag filters")
	}

	if tagPairs > 0 {
		return p.parseTagFilters(pairs, rawdata.JoinOr)
	}

	var predicates []rawdata.Predicate
	for _, pair := range pairs {
		op, _, _ := rawdata.ParseJoinKey(pair.Key)

		var members []*yaml.Node
		switch pair.Value.Kind {
		case yaml.SequenceNode:
			members = pair.Value.Content
		case yaml.MappingNode:
			members = []*yaml.Node{pair.Value}
		default:
			if isNull(pair.Value) {
				continue
			}
			return nil, p.formatError(fmt.Sprintf("%s must be a list of tag filters", pair.Key))
		}

		for _, member := range members {
			memberPairs, err := p.mappingPairs(member, pair.Key+" member")
			if err != nil {
				return nil, err
			}

			memberPredicates, err := p.parseTagFilters(memberPairs, op)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, memberPredicates...)
		}
	}

	return predicates, nil
}

func (p *yamlParser) parseTagFilters(pairs []yamlPair, op rawdata.JoinOperator) ([]rawdata.Predicate, errorsx.Error) {
	var predicates []rawdata.Predicate
	for _, pair := range pairs {
		values, err := p.filterValues(pair.Value, pair.Key)
		if err != nil {
			return nil, err
		}

		predicates = append(predicates, rawdata.Predicate{
			Tag:    pair.Key,
			Values: values,
			Join:   op,
		})
	}
	return predicates, nil
}

// filterValues normalizes a filter value: null is a presence test, a scalar becomes a one-item list
func (p *yamlParser) filterValues(node *yaml.Node, tag string) ([]rawdata.FilterValue, errorsx.Error) {
	if isNull(node) {
		return []rawdata.FilterValue{}, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return []rawdata.FilterValue{rawdata.NewScalarValue(scalarText(node))}, nil
	case yaml.SequenceNode:
		values := []rawdata.FilterValue{}
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				if isNull(item) {
					continue
				}
				values = append(values, rawdata.NewScalarValue(scalarText(item)))
			case yaml.SequenceNode:
				var array []string
				for _, arrayItem := range item.Content {
					if arrayItem.Kind != yaml.ScalarNode {
						return nil, p.formatError(fmt.Sprintf("nested values of tag %q must be scalars", tag))
					}
					array = append(array, scalarText(arrayItem))
				}
				values = append(values, rawdata.NewArrayValue(array))
			default:
				return nil, p.formatError(fmt.Sprintf("unsupported value for tag %q", tag))
			}
		}
		return values, nil
	default:
		return nil, p.formatError(fmt.Sprintf("unsupported value for tag %q", tag))
	}
}

func (p *yamlParser) parseSelect(node *yaml.Node) errorsx.Error {
	if isNull(node) {
		for _, table := range p.tables {
			for _, predicate := range p.builder.Predicates(table) {
				p.builder.AddSelectIfMissing(table, predicate.Tag)
			}
		}
		return nil
	}

	var items []rawdata.SelectItem
	switch node.Kind {
	case yaml.SequenceNode:
		for _, entry := range node.Content {
			entryItems, err := p.selectItems(entry)
			if err != nil {
				return err
			}
			items = append(items, entryItems...)
		}
	default:
		entryItems, err := p.selectItems(node)
		if err != nil {
			return err
		}
		items = entryItems
	}

	for _, table := range p.tables {
		for _, item := range items {
			p.builder.AddSelect(table, item)
		}
	}

	return nil
}

func (p *yamlParser) selectItems(node *yaml.Node) ([]rawdata.SelectItem, errorsx.Error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []rawdata.SelectItem{{Name: node.Value}}, nil
	case yaml.MappingNode:
		pairs, err := p.mappingPairs(node, yamlKeySelect)
		if err != nil {
			return nil, err
		}

		var items []rawdata.SelectItem
		for _, pair := range pairs {
			item := rawdata.SelectItem{Name: pair.Key}
			if pair.Value.Kind == yaml.MappingNode {
				transform := make(map[string]interface{})
				decodeErr := pair.Value.Decode(&transform)
				if decodeErr != nil {
					return nil, errorsx.Wrap(&rawdata.ConfigFormatError{Source: p.sourceName, Reason: "invalid select transform", Err: decodeErr})
				}
				item.Transform = transform
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, p.formatError("select entries must be tag names or mappings")
	}
}

func (p *yamlParser) stringList(node *yaml.Node, name string) ([]string, errorsx.Error) {
	if isNull(node) {
		return nil, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		var list []string
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, p.formatError(fmt.Sprintf("%s must be a list of strings", name))
			}
			list = append(list, item.Value)
		}
		return list, nil
	default:
		return nil, p.formatError(fmt.Sprintf("%s must be a list of strings", name))
	}
}

func (p *yamlParser) mappingPairs(node *yaml.Node, name string) ([]yamlPair, errorsx.Error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}

	if node.Kind != yaml.MappingNode {
		return nil, p.formatError(fmt.Sprintf("%s must be a mapping", name))
	}

	var pairs []yamlPair
	for i := 0; i+1 < len(node.Content); i += 2 {
		value := node.Content[i+1]
		if value.Kind == yaml.AliasNode {
			value = value.Alias
		}
		pairs = append(pairs, yamlPair{node.Content[i].Value, value})
	}
	return pairs, nil
}

func (p *yamlParser) formatError(reason string) errorsx.Error {
	return errorsx.Wrap(&rawdata.ConfigFormatError{Source: p.sourceName, Reason: reason})
}

func isNull(node *yaml.Node) bool {
	if node == nil {
		return true
	}
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// scalarText returns the text of a scalar. Booleans become the OSM "yes" and "no".
func scalarText(node *yaml.Node) string {
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err == nil {
			if b {
				return "yes"
			}
			return "no"
		}
	}
	return node.Value
}
