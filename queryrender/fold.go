package queryrender

import (
	"strings"

	"github.com/hotosm/osm-rawdata/rawdata"
)

// joinGroups splits the predicates of a table by join operator, keeping source order inside each group
func joinGroups(predicates []rawdata.Predicate) (orGroup, andGroup []rawdata.Predicate) {
	for _, predicate := range predicates {
		switch predicate.Join {
		case rawdata.JoinAnd:
			andGroup = append(andGroup, predicate)
		default:
			orGroup = append(orGroup, predicate)
		}
	}
	return orGroup, andGroup
}

// foldPredicates merges the predicates of an or-group on the same tag into one, in order of first appearance.
// Values are concatenated without duplicates, and a presence test absorbs any value tests on its tag.
func foldPredicates(predicates []rawdata.Predicate) []rawdata.Predicate {
	var folded []rawdata.Predicate
	indexByTag := make(map[string]int)
	seenValues := make(map[string]map[string]bool)

	for _, predicate := range predicates {
		idx, ok := indexByTag[predicate.Tag]
		if !ok {
			idx = len(folded)
			indexByTag[predicate.Tag] = idx
			seenValues[predicate.Tag] = make(map[string]bool)
			folded = append(folded, rawdata.Predicate{
				Tag:    predicate.Tag,
				Values: []rawdata.FilterValue{},
				Join:   predicate.Join,
			})
		}

		if folded[idx].IsPresenceTest() && ok {
			continue
		}

		if predicate.IsPresenceTest() {
			folded[idx].Values = []rawdata.FilterValue{}
			continue
		}

		for _, value := range predicate.Values {
			key := valueKey(value)
			if seenValues[predicate.Tag][key] {
				continue
			}
			seenValues[predicate.Tag][key] = true
			folded[idx].Values = append(folded[idx].Values, value)
		}
	}

	return folded
}

// foldAndPredicates merges the predicates of an and-group on the same tag into one, for documents keyed by tag.
// A value test on a tag already implies its presence, so presence tests are dropped when the tag also has value tests.
// Different values on the same tag are still concatenated, as a tag key can only appear once in the document.
func foldAndPredicates(predicates []rawdata.Predicate) []rawdata.Predicate {
	hasValueTest := make(map[string]bool)
	for _, predicate := range predicates {
		if !predicate.IsPresenceTest() {
			hasValueTest[predicate.Tag] = true
		}
	}

	var kept []rawdata.Predicate
	for _, predicate := range predicates {
		if predicate.IsPresenceTest() && hasValueTest[predicate.Tag] {
			continue
		}
		kept = append(kept, predicate)
	}

	return foldPredicates(kept)
}

func valueKey(value rawdata.FilterValue) string {
	if value.IsArray() {
		return "array:" + strings.Join(value.Array, "\x00")
	}
	return "scalar:" + value.Scalar
}
