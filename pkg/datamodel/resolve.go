package datamodel

import (
	"reflect"

	"github.com/evarc/evarc/pkg/event"
)

// ResolveCollectionName decides which collection a producer's records land
// in when written through the family with element type target.
//
// An untagged producer writes under its declared output type name. A
// tagged producer writes under its tag, but only when its runtime record
// type is exactly the family's element type: a producer of a derived type
// riding a base family keeps its declared output type name so the tag
// cannot collide with a genuine base-type variant.
//
// The function is pure; it never touches the store or the filter.
func ResolveCollectionName(p event.Producer, target reflect.Type) string {
	if p.Tag() == "" {
		return p.OutputTypeName()
	}
	if p.ObjectType() == target {
		return p.Tag()
	}
	return p.OutputTypeName()
}
