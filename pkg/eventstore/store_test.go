package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evarc/evarc/pkg/errors"
)

type hit struct {
	ID     int32
	Charge float64
}

type cluster struct {
	Energy float64
}

func TestVectorReplaceAndReset(t *testing.T) {
	v := NewDataVector[hit]("TrackerHits", "TrackerHit")
	assert.Equal(t, "TrackerHits", v.Name())
	assert.Equal(t, "TrackerHit", v.TypeName())
	assert.Equal(t, 0, v.Len())

	v.Replace([]hit{{ID: 1}, {ID: 2}})
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []hit{{ID: 1}, {ID: 2}}, v.Records())

	// Replace is a full overwrite, not an append.
	v.Replace([]hit{{ID: 9}})
	assert.Equal(t, 1, v.Len())
	assert.Equal(t, int32(9), v.Records()[0].ID)

	v.Reset()
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, "TrackerHit", v.TypeName())
}

func TestVectorSwapSameType(t *testing.T) {
	a := NewDataVector[hit]("TrackerHits", "TrackerHit")
	b := NewDataVector[hit]("TrackerHits", "TrackerHit")
	a.Replace([]hit{{ID: 1}})

	require.NoError(t, a.Swap(b))
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, b.Len())

	// Identity stays with the receiver.
	assert.Equal(t, "TrackerHits", a.Name())
	assert.Equal(t, "TrackerHits", b.Name())
}

func TestVectorSwapTypeMismatch(t *testing.T) {
	a := NewDataVector[hit]("TrackerHits", "TrackerHit")
	c := NewDataVector[cluster]("Clusters", "Cluster")

	err := a.Swap(c)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	// Same element type but different declared type also refuses.
	d := NewDataVector[hit]("RawHits", "RawTrackerHit")
	err = a.Swap(d)
	require.Error(t, err)
}

func TestStoreFindOrCreate(t *testing.T) {
	s := NewStore()

	created := 0
	make1 := func() DataVector {
		created++
		return NewDataVector[cluster]("Clusters", "Cluster")
	}

	v1 := s.FindOrCreate("Clusters", make1)
	v2 := s.FindOrCreate("Clusters", make1)
	assert.Same(t, v1, v2)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, s.Len())
}

func TestStoreStableOrder(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(NewDataVector[cluster]("Clusters", "Cluster")))
	require.NoError(t, s.Add(NewDataVector[hit]("TrackerHits", "TrackerHit")))
	require.NoError(t, s.Add(NewDataVector[hit]("RawHits", "TrackerHit")))

	assert.Equal(t, []string{"Clusters", "TrackerHits", "RawHits"}, s.Names())

	// Reset keeps the layout, so a reused store walks identically.
	s.Reset()
	assert.Equal(t, []string{"Clusters", "TrackerHits", "RawHits"}, s.Names())

	for i := 0; i < s.Len(); i++ {
		assert.Equal(t, 0, s.At(i).Len())
	}
}

func TestStoreDuplicateAdd(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(NewDataVector[cluster]("Clusters", "Cluster")))

	err := s.Add(NewDataVector[cluster]("Clusters", "Cluster"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestStoreSwap(t *testing.T) {
	filled := NewStore()
	v := NewDataVector[hit]("TrackerHits", "TrackerHit")
	v.Replace([]hit{{ID: 4}})
	require.NoError(t, filled.Add(v))

	empty := NewStore()
	filled.Swap(empty)

	assert.Equal(t, 0, filled.Len())
	assert.Equal(t, 1, empty.Len())

	got, ok := empty.Get("TrackerHits")
	require.True(t, ok)
	assert.Equal(t, 1, got.Len())
}
