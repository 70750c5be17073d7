package datamodel

import (
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/eventstore"
)

// PutResult reports what a family dispatch did with a producer.
type PutResult int

const (
	// PutNotApplicable means the producer belongs to a different family.
	PutNotApplicable PutResult = iota
	// PutSkipped means the resolved collection is filtered out.
	PutSkipped
	// PutFailed means record preparation failed; the event continues
	// without this producer's records.
	PutFailed
	// PutWritten means the records were installed in the store.
	PutWritten
)

func (r PutResult) String() string {
	switch r {
	case PutNotApplicable:
		return "not_applicable"
	case PutSkipped:
		return "skipped"
	case PutFailed:
		return "failed"
	case PutWritten:
		return "written"
	default:
		return "unknown"
	}
}

// PutFunc materializes one producer's records into the store if the
// producer belongs to this entry's family.
type PutFunc func(p event.Producer, store *eventstore.Store, filter *config.CollectionFilter) (string, PutResult, error)

// AppendFunc appends prepared rows (a []R slice for the entry's row type)
// to an Arrow struct builder.
type AppendFunc func(b *array.StructBuilder, rows interface{}) error

// Entry describes one persistable family in the dispatch table.
type Entry struct {
	// Family is the declared type name, e.g. "Cluster".
	Family string

	// ElemType is the runtime record type of the family.
	ElemType reflect.Type

	// ArrowType is the struct layout of one stored row.
	ArrowType *arrow.StructType

	// Put materializes a producer into the store.
	Put PutFunc

	// AppendRows writes prepared rows into a column builder.
	AppendRows AppendFunc
}

// putFamily builds the Put function for a family. T is the record type,
// R the stored row type. records probes the producer for the family's
// source interface; prepare converts records to rows.
func putFamily[T any, R any](
	family string,
	records func(event.Producer) ([]*T, bool),
	prepare func([]*T) ([]R, error),
) PutFunc {
	target := reflect.TypeFor[T]()

	return func(p event.Producer, store *eventstore.Store, filter *config.CollectionFilter) (string, PutResult, error) {
		items, ok := records(p)
		if !ok {
			return "", PutNotApplicable, nil
		}

		name := ResolveCollectionName(p, target)
		if filter != nil && !filter.Allows(name) {
			return name, PutSkipped, nil
		}

		rows, err := prepare(items)
		if err != nil {
			return name, PutFailed, errors.Wrap(err, errors.ErrorTypeMaterialize, "failed to prepare records").
				WithDetail("collection", name).
				WithDetail("family", family)
		}

		vec := store.FindOrCreate(name, func() eventstore.DataVector {
			return eventstore.NewDataVector[R](name, family)
		})
		tv, ok := vec.(*eventstore.DataVectorT[R])
		if !ok {
			return name, PutFailed, errors.New(errors.ErrorTypeSchema, "collection bound to a different declared type").
				WithDetail("collection", name).
				WithDetail("declared_type", vec.TypeName()).
				WithDetail("family", family)
		}
		tv.Replace(rows)

		return name, PutWritten, nil
	}
}

// The closed dispatch table. Families are tried in this order; the first
// applicable entry claims the producer.
var manifest = []Entry{
	{
		Family:    FamilyEventHeader,
		ElemType:  reflect.TypeFor[EventHeader](),
		ArrowType: eventHeaderArrowType,
		Put: putFamily(FamilyEventHeader, func(p event.Producer) ([]*EventHeader, bool) {
			src, ok := p.(EventHeaderSource)
			if !ok {
				return nil, false
			}
			return src.EventHeaders(), true
		}, PrepareEventHeaderRows),
		AppendRows: appendEventHeaderRows,
	},
	{
		Family:    FamilyMCParticle,
		ElemType:  reflect.TypeFor[MCParticle](),
		ArrowType: mcParticleArrowType,
		Put: putFamily(FamilyMCParticle, func(p event.Producer) ([]*MCParticle, bool) {
			src, ok := p.(MCParticleSource)
			if !ok {
				return nil, false
			}
			return src.MCParticles(), true
		}, PrepareMCParticleRows),
		AppendRows: appendMCParticleRows,
	},
	{
		Family:    FamilyTrackerHit,
		ElemType:  reflect.TypeFor[TrackerHit](),
		ArrowType: trackerHitArrowType,
		Put: putFamily(FamilyTrackerHit, func(p event.Producer) ([]*TrackerHit, bool) {
			src, ok := p.(TrackerHitSource)
			if !ok {
				return nil, false
			}
			return src.TrackerHits(), true
		}, PrepareTrackerHitRows),
		AppendRows: appendTrackerHitRows,
	},
	{
		Family:    FamilyCalorimeterHit,
		ElemType:  reflect.TypeFor[CalorimeterHit](),
		ArrowType: calorimeterHitArrowType,
		Put: putFamily(FamilyCalorimeterHit, func(p event.Producer) ([]*CalorimeterHit, bool) {
			src, ok := p.(CalorimeterHitSource)
			if !ok {
				return nil, false
			}
			return src.CalorimeterHits(), true
		}, PrepareCalorimeterHitRows),
		AppendRows: appendCalorimeterHitRows,
	},
	{
		Family:    FamilyCluster,
		ElemType:  reflect.TypeFor[Cluster](),
		ArrowType: clusterArrowType,
		Put: putFamily(FamilyCluster, func(p event.Producer) ([]*Cluster, bool) {
			src, ok := p.(ClusterSource)
			if !ok {
				return nil, false
			}
			return src.Clusters(), true
		}, PrepareClusterRows),
		AppendRows: appendClusterRows,
	},
	{
		Family:    FamilyVertex,
		ElemType:  reflect.TypeFor[Vertex](),
		ArrowType: vertexArrowType,
		Put: putFamily(FamilyVertex, func(p event.Producer) ([]*Vertex, bool) {
			src, ok := p.(VertexSource)
			if !ok {
				return nil, false
			}
			return src.Vertices(), true
		}, PrepareVertexRows),
		AppendRows: appendVertexRows,
	},
}

var manifestByFamily = func() map[string]*Entry {
	m := make(map[string]*Entry, len(manifest))
	for i := range manifest {
		m[manifest[i].Family] = &manifest[i]
	}
	return m
}()

// Manifest returns the dispatch table in its fixed order.
func Manifest() []Entry {
	return manifest
}

// LookupFamily returns the dispatch entry for a declared family name.
func LookupFamily(family string) (*Entry, bool) {
	e, ok := manifestByFamily[family]
	return e, ok
}

// ApplyProducer runs one producer against the dispatch table. A producer
// that matches no family is left unmapped: the result is PutNotApplicable
// with an empty name and no error.
func ApplyProducer(p event.Producer, store *eventstore.Store, filter *config.CollectionFilter) (string, PutResult, error) {
	for i := range manifest {
		name, res, err := manifest[i].Put(p, store, filter)
		if res == PutNotApplicable && err == nil {
			continue
		}
		return name, res, err
	}
	return "", PutNotApplicable, nil
}
