package datamodel

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/eventstore"
)

// opaqueProducer matches no source interface, so the dispatch table must
// leave it unmapped.
type opaqueProducer struct{}

func (opaqueProducer) Name() string             { return "opaque" }
func (opaqueProducer) OutputTypeName() string   { return "Opaque" }
func (opaqueProducer) Tag() string              { return "" }
func (opaqueProducer) ObjectType() reflect.Type { return reflect.TypeFor[int]() }
func (opaqueProducer) Count() int               { return 0 }

func someClusters() []*Cluster {
	return []*Cluster{
		{Energy: 2.5, NHits: 3, Position: Vector3f{X: 1}},
		{Energy: 4.25, NHits: 7, Position: Vector3f{Y: 2}},
	}
}

func TestResolveCollectionName(t *testing.T) {
	clusterType := reflect.TypeFor[Cluster]()

	tests := []struct {
		name     string
		producer event.Producer
		target   reflect.Type
		want     string
	}{
		{
			name:     "untagged producer uses declared output type",
			producer: NewClusterProducer("finder", someClusters()),
			target:   clusterType,
			want:     "Cluster",
		},
		{
			name:     "tagged producer of the exact type uses the tag",
			producer: NewClusterProducer("merger", someClusters()).WithTag("merged"),
			target:   clusterType,
			want:     "merged",
		},
		{
			name:     "tagged producer of a derived type keeps its output name",
			producer: NewSpecialClusterProducer("special", nil).WithTag("merged"),
			target:   clusterType,
			want:     "SpecialCluster",
		},
		{
			name:     "custom output name wins when untagged",
			producer: NewTrackerHitProducer("debug", nil).WithOutputName("DebugHits"),
			target:   reflect.TypeFor[TrackerHit](),
			want:     "DebugHits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCollectionName(tt.producer, tt.target))
		})
	}
}

func TestApplyProducerWritesRows(t *testing.T) {
	store := eventstore.NewStore()
	p := NewClusterProducer("finder", someClusters())

	name, res, err := ApplyProducer(p, store, nil)
	require.NoError(t, err)
	assert.Equal(t, PutWritten, res)
	assert.Equal(t, "Cluster", name)

	vec, ok := store.Get("Cluster")
	require.True(t, ok)
	assert.Equal(t, FamilyCluster, vec.TypeName())
	assert.Equal(t, 2, vec.Len())

	rows := vec.Rows().([]ClusterRow)
	assert.Equal(t, float32(2.5), rows[0].Energy)
	assert.Equal(t, int32(7), rows[1].NHits)
	assert.Equal(t, float32(2), rows[1].Y)
}

func TestApplyProducerReplacesNotAppends(t *testing.T) {
	store := eventstore.NewStore()
	p := NewClusterProducer("finder", someClusters())

	_, _, err := ApplyProducer(p, store, nil)
	require.NoError(t, err)
	_, _, err = ApplyProducer(p, store, nil)
	require.NoError(t, err)

	vec, _ := store.Get("Cluster")
	assert.Equal(t, 2, vec.Len())
}

func TestApplyProducerDerivedRidesBaseFamily(t *testing.T) {
	store := eventstore.NewStore()
	specials := []*SpecialCluster{
		{Cluster: Cluster{Energy: 9, NHits: 1}, Seed: 42},
	}
	p := NewSpecialClusterProducer("special", specials).WithTag("merged")

	name, res, err := ApplyProducer(p, store, nil)
	require.NoError(t, err)
	assert.Equal(t, PutWritten, res)
	assert.Equal(t, "SpecialCluster", name)

	vec, ok := store.Get("SpecialCluster")
	require.True(t, ok)
	assert.Equal(t, FamilyCluster, vec.TypeName())

	rows := vec.Rows().([]ClusterRow)
	require.Len(t, rows, 1)
	assert.Equal(t, float32(9), rows[0].Energy)
}

func TestApplyProducerExcluded(t *testing.T) {
	store := eventstore.NewStore()
	filter := config.ParseFilter("", "DebugHits")
	p := NewTrackerHitProducer("debug", []*TrackerHit{{CellID: 1}}).WithOutputName("DebugHits")

	name, res, err := ApplyProducer(p, store, &filter)
	require.NoError(t, err)
	assert.Equal(t, PutSkipped, res)
	assert.Equal(t, "DebugHits", name)
	assert.Equal(t, 0, store.Len())
}

func TestApplyProducerIncludeRestricts(t *testing.T) {
	filter := config.ParseFilter("Cluster", "")

	store := eventstore.NewStore()
	_, res, err := ApplyProducer(NewClusterProducer("finder", someClusters()), store, &filter)
	require.NoError(t, err)
	assert.Equal(t, PutWritten, res)

	_, res, err = ApplyProducer(NewTrackerHitProducer("tracker", []*TrackerHit{{CellID: 1}}), store, &filter)
	require.NoError(t, err)
	assert.Equal(t, PutSkipped, res)
	assert.Equal(t, 1, store.Len())
}

func TestApplyProducerExcludeWinsOverInclude(t *testing.T) {
	filter := config.ParseFilter("Cluster", "Cluster")

	store := eventstore.NewStore()
	_, res, err := ApplyProducer(NewClusterProducer("finder", someClusters()), store, &filter)
	require.NoError(t, err)
	assert.Equal(t, PutSkipped, res)
	assert.Equal(t, 0, store.Len())
}

func TestApplyProducerUnmapped(t *testing.T) {
	store := eventstore.NewStore()

	name, res, err := ApplyProducer(opaqueProducer{}, store, nil)
	require.NoError(t, err)
	assert.Equal(t, PutNotApplicable, res)
	assert.Empty(t, name)
	assert.Equal(t, 0, store.Len())
}

func TestApplyProducerPrepareFailure(t *testing.T) {
	store := eventstore.NewStore()
	bad := []*Cluster{{Energy: float32(math.NaN()), NHits: 1}}
	p := NewClusterProducer("finder", bad)

	name, res, err := ApplyProducer(p, store, nil)
	require.Error(t, err)
	assert.Equal(t, PutFailed, res)
	assert.Equal(t, "Cluster", name)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMaterialize))
	assert.Equal(t, 0, store.Len())
}

func TestApplyProducerNameBoundToOtherFamily(t *testing.T) {
	store := eventstore.NewStore()

	_, res, err := ApplyProducer(NewClusterProducer("a", someClusters()).WithOutputName("Shared"), store, nil)
	require.NoError(t, err)
	require.Equal(t, PutWritten, res)

	_, res, err = ApplyProducer(NewTrackerHitProducer("b", []*TrackerHit{{CellID: 1}}).WithOutputName("Shared"), store, nil)
	require.Error(t, err)
	assert.Equal(t, PutFailed, res)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestManifestLookup(t *testing.T) {
	entry, ok := LookupFamily(FamilyCluster)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[Cluster](), entry.ElemType)
	assert.NotNil(t, entry.ArrowType)
	assert.Equal(t, 7, entry.ArrowType.NumFields())

	_, ok = LookupFamily("NoSuchFamily")
	assert.False(t, ok)

	// Every entry is complete.
	for _, e := range Manifest() {
		assert.NotEmpty(t, e.Family)
		assert.NotNil(t, e.ArrowType, e.Family)
		assert.NotNil(t, e.Put, e.Family)
		assert.NotNil(t, e.AppendRows, e.Family)
	}
}

func TestPrepareClusterRowsValidation(t *testing.T) {
	_, err := PrepareClusterRows([]*Cluster{nil})
	assert.Error(t, err)

	_, err = PrepareClusterRows([]*Cluster{{Energy: 1, NHits: -1}})
	assert.Error(t, err)

	rows, err := PrepareClusterRows(someClusters())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPrepareMCParticleRowsFlattens(t *testing.T) {
	particles := []*MCParticle{{
		PDG:      11,
		Mass:     0.000511,
		Vertex:   Vector3d{X: 0.1, Y: 0.2, Z: 0.3},
		Momentum: Vector3f{X: 1, Y: 2, Z: 3},
	}}

	rows, err := PrepareMCParticleRows(particles)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.1, rows[0].VX)
	assert.Equal(t, float32(3), rows[0].PZ)

	_, err = PrepareMCParticleRows([]*MCParticle{{Mass: math.Inf(1)}})
	assert.Error(t, err)
}

func TestCollectionTypeName(t *testing.T) {
	assert.Equal(t, "ClusterCollection", CollectionTypeName(FamilyCluster))
	assert.Equal(t, "TrackerHitCollection", CollectionTypeName(FamilyTrackerHit))
}
