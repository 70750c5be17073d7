package writer

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/eventstore"
	"github.com/evarc/evarc/pkg/json"
	"github.com/evarc/evarc/pkg/registry"
	"github.com/evarc/evarc/pkg/rowtable"
)

type fakeFill struct {
	cells map[string]interface{}
	meta  string
}

type fakeTable struct {
	columns   map[string]string
	order     []string
	createdAt map[string]int64
	bindings  map[string]interface{}
	fills     []fakeFill
	metadata  map[string]string
	rows      int64
	finalized bool
	closed    bool

	createErr error
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		columns:   make(map[string]string),
		createdAt: make(map[string]int64),
		bindings:  make(map[string]interface{}),
		metadata:  make(map[string]string),
	}
}

func (f *fakeTable) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

func (f *fakeTable) ColumnType(name string) (string, bool) {
	t, ok := f.columns[name]
	return t, ok
}

func (f *fakeTable) CreateColumn(name, typeName string) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.columns[name] = typeName
	f.order = append(f.order, name)
	f.createdAt[name] = f.rows
	return f.rows, nil
}

func (f *fakeTable) Bind(name string, rows interface{}) error {
	f.bindings[name] = rows
	return nil
}

func (f *fakeTable) FillRow(meta []byte) error {
	cells := make(map[string]interface{}, len(f.bindings))
	for k, v := range f.bindings {
		cells[k] = v
	}
	f.bindings = make(map[string]interface{})
	f.fills = append(f.fills, fakeFill{cells: cells, meta: string(meta)})
	f.rows++
	return nil
}

func (f *fakeTable) Rows() int64 {
	return f.rows
}

func (f *fakeTable) ColumnNames() []string {
	return f.order
}

func (f *fakeTable) SetMetadata(key, value string) {
	f.metadata[key] = value
}

func (f *fakeTable) Finalize(ctx context.Context) (rowtable.FinalizeStats, error) {
	f.finalized = true
	return rowtable.FinalizeStats{Rows: f.rows, Columns: len(f.order), BytesWritten: 1}, nil
}

func (f *fakeTable) Close() error {
	f.closed = true
	return nil
}

func newTestWriter(t *testing.T, cfg *config.Config) (*Writer, *fakeTable) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if cfg.Output.Path == config.DefaultOutputPath {
		cfg.Output.Path = filepath.Join(t.TempDir(), "out.parquet")
	}

	w, err := New(cfg, nil)
	require.NoError(t, err)

	ft := newFakeTable()
	w.newTable = func(rowtable.Options) (rowtable.Table, error) { return ft, nil }
	t.Cleanup(func() { w.Close() })
	return w, ft
}

func someClusters() []*datamodel.Cluster {
	return []*datamodel.Cluster{
		{Energy: 2.5, NHits: 3, Position: datamodel.Vector3f{X: 1}},
		{Energy: 4.25, NHits: 7, Position: datamodel.Vector3f{Y: 2}},
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)

	assert.Equal(t, StateUninitialized, w.State())

	err := w.Process(ctx, event.New(0))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))

	require.NoError(t, w.Open(ctx))
	assert.Equal(t, StateOpen, w.State())

	err = w.Open(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))

	evt := event.New(0)
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
	require.NoError(t, w.Process(ctx, evt))
	assert.Equal(t, StateProcessing, w.State())
	assert.EqualValues(t, 1, w.EventsWritten())

	require.NoError(t, w.Finalize(ctx))
	assert.Equal(t, StateClosed, w.State())
	assert.True(t, ft.finalized)
	assert.True(t, ft.closed)

	err = w.Finalize(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))

	assert.NoError(t, w.Close())
}

func TestProcessWritesCollections(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	evt := event.New(3)
	evt.Run = 12
	evt.SetParam("trigger", "minbias")
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()).WithTag("EcalClusters"))
	evt.AddProducer(datamodel.NewVertexProducer("vertexer", []*datamodel.Vertex{{NDF: 4}}))

	require.NoError(t, w.Process(ctx, evt))

	require.Len(t, ft.fills, 1)
	fill := ft.fills[0]

	rows, ok := fill.cells["EcalClusters"].([]datamodel.ClusterRow)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, float32(2.5), rows[0].Energy)

	vtx, ok := fill.cells["Vertex"].([]datamodel.VertexRow)
	require.True(t, ok)
	assert.Len(t, vtx, 1)

	assert.Contains(t, fill.meta, `"seq":3`)
	assert.Contains(t, fill.meta, `"run":12`)
	assert.Contains(t, fill.meta, `"trigger":"minbias"`)

	assert.Equal(t, "Cluster", ft.columns["EcalClusters"])
	assert.Equal(t, "Vertex", ft.columns["Vertex"])
}

func TestMaterializeFailureDoesNotFailEvent(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	bad := []*datamodel.Cluster{{Energy: float32(math.NaN())}}
	evt := event.New(0)
	evt.AddProducer(datamodel.NewClusterProducer("badclusterizer", bad).WithTag("BadClusters"))
	evt.AddProducer(datamodel.NewVertexProducer("vertexer", []*datamodel.Vertex{{NDF: 1}}))

	require.NoError(t, w.Process(ctx, evt))

	require.Len(t, ft.fills, 1)
	assert.False(t, ft.HasColumn("BadClusters"))
	assert.True(t, ft.HasColumn("Vertex"))
}

func TestEmptyProducerCreatesNoColumn(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	evt := event.New(0)
	evt.AddProducer(datamodel.NewClusterProducer("idle", nil))
	evt.AddProducer(datamodel.NewVertexProducer("vertexer", []*datamodel.Vertex{{NDF: 2}}))
	require.NoError(t, w.Process(ctx, evt))

	assert.False(t, ft.HasColumn("Cluster"), "a producer with no records contributes nothing")
	assert.True(t, ft.HasColumn("Vertex"))
	assert.EqualValues(t, 1, ft.rows)
}

// stallingClusterProducer parks inside Clusters until released, and
// reports when materialization has actually started.
type stallingClusterProducer struct {
	started chan struct{}
	release chan struct{}
	items   []*datamodel.Cluster
}

func (p *stallingClusterProducer) Name() string           { return "staller" }
func (p *stallingClusterProducer) OutputTypeName() string { return "SlowClusters" }
func (p *stallingClusterProducer) Tag() string            { return "" }
func (p *stallingClusterProducer) ObjectType() reflect.Type {
	return reflect.TypeFor[datamodel.Cluster]()
}
func (p *stallingClusterProducer) Count() int { return len(p.items) }
func (p *stallingClusterProducer) Clusters() []*datamodel.Cluster {
	close(p.started)
	<-p.release
	return p.items
}

func TestConcurrentMaterializationDoesNotSerialize(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	slow := &stallingClusterProducer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		items:   someClusters(),
	}
	done := make(chan error, 1)
	go func() {
		evt := event.New(0)
		evt.AddProducer(slow)
		done <- w.Process(ctx, evt)
	}()

	// Once the slow event is mid-materialization, a second event must
	// still be able to run all the way through sync and fill.
	<-slow.started
	fast := event.New(1)
	fast.AddProducer(datamodel.NewVertexProducer("vertexer", []*datamodel.Vertex{{NDF: 1}}))
	require.NoError(t, w.Process(ctx, fast))
	assert.EqualValues(t, 1, ft.Rows())

	close(slow.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 2, ft.Rows())
	assert.True(t, ft.HasColumn("SlowClusters"))
	assert.True(t, ft.HasColumn("Vertex"))
}

func TestExcludedCollectionNeverGetsColumn(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewDefaultConfig()
	cfg.Filter.ExcludeCollections = "DebugHits"
	w, ft := newTestWriter(t, cfg)
	require.NoError(t, w.Open(ctx))

	for seq := uint64(0); seq < 3; seq++ {
		evt := event.New(seq)
		evt.AddProducer(datamodel.NewTrackerHitProducer("debug", []*datamodel.TrackerHit{{CellID: 1}}).WithTag("DebugHits"))
		evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
		require.NoError(t, w.Process(ctx, evt))
	}

	assert.False(t, ft.HasColumn("DebugHits"))
	assert.True(t, ft.HasColumn("Cluster"))
	assert.EqualValues(t, 3, ft.rows)

	_, registered := w.CollectionIDs()["DebugHits"]
	assert.False(t, registered)
}

func TestIncludeRestrictsAndExcludeWins(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewDefaultConfig()
	cfg.Filter.IncludeCollections = "EcalClusters,Vertex"
	cfg.Filter.ExcludeCollections = "Vertex"
	w, ft := newTestWriter(t, cfg)
	require.NoError(t, w.Open(ctx))

	evt := event.New(0)
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()).WithTag("EcalClusters"))
	evt.AddProducer(datamodel.NewVertexProducer("vertexer", []*datamodel.Vertex{{NDF: 1}}))
	evt.AddProducer(datamodel.NewTrackerHitProducer("tracker", []*datamodel.TrackerHit{{CellID: 9}}))
	require.NoError(t, w.Process(ctx, evt))

	assert.True(t, ft.HasColumn("EcalClusters"))
	assert.False(t, ft.HasColumn("Vertex"), "excluded name must lose even when included")
	assert.False(t, ft.HasColumn("TrackerHit"), "names outside a non-empty include list are dropped")
}

func TestLateColumnBackfillsExistingRows(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	for seq := uint64(0); seq < 5; seq++ {
		evt := event.New(seq)
		evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
		require.NoError(t, w.Process(ctx, evt))
	}

	late := event.New(5)
	late.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
	late.AddProducer(datamodel.NewTrackerHitProducer("tracker", []*datamodel.TrackerHit{{CellID: 7}}).WithTag("LateHits"))
	require.NoError(t, w.Process(ctx, late))

	assert.EqualValues(t, 5, ft.createdAt["LateHits"], "column born at event 5 backfills five rows")
	assert.EqualValues(t, 6, ft.rows)

	_, hasLate := ft.fills[4].cells["LateHits"]
	assert.False(t, hasLate)
	_, hasLate = ft.fills[5].cells["LateHits"]
	assert.True(t, hasLate)
}

func TestPrepopulatedStoreVectorsAreWritten(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	vec := eventstore.NewDataVector[datamodel.ClusterRow]("Direct", "Cluster")
	vec.Replace([]datamodel.ClusterRow{{Energy: 9}})

	evt := event.New(0)
	require.NoError(t, evt.Store.Add(vec))
	require.NoError(t, w.Process(ctx, evt))

	rows, ok := ft.fills[0].cells["Direct"].([]datamodel.ClusterRow)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, float32(9), rows[0].Energy)
}

func TestStoreReturnedIntact(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	evt := event.New(0)
	st := evt.Store
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
	require.NoError(t, w.Process(ctx, evt))

	require.Same(t, st, evt.Store)
	vec, ok := evt.Store.Get("Cluster")
	require.True(t, ok, "materialized buffers ride back to the caller")
	assert.Equal(t, 2, vec.Len())
}

func TestReprocessingIdenticalInputYieldsIdenticalRows(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	for seq := uint64(0); seq < 2; seq++ {
		evt := event.New(seq)
		evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()).WithTag("EcalClusters"))
		require.NoError(t, w.Process(ctx, evt))
	}

	first := ft.fills[0].cells["EcalClusters"].([]datamodel.ClusterRow)
	second := ft.fills[1].cells["EcalClusters"].([]datamodel.ClusterRow)
	assert.Equal(t, first, second)
}

func TestRegistryAssignsStableIDs(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	reg.Register("Warmup")

	cfg := config.NewDefaultConfig()
	cfg.Output.Path = filepath.Join(t.TempDir(), "out.parquet")
	w, err := New(cfg, reg)
	require.NoError(t, err)
	ft := newFakeTable()
	w.newTable = func(rowtable.Options) (rowtable.Table, error) { return ft, nil }
	defer w.Close()

	require.NoError(t, w.Open(ctx))
	for seq := uint64(0); seq < 2; seq++ {
		evt := event.New(seq)
		evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
		evt.AddProducer(datamodel.NewVertexProducer("vertexer", []*datamodel.Vertex{{NDF: 1}}))
		require.NoError(t, w.Process(ctx, evt))
	}

	ids := w.CollectionIDs()
	assert.Equal(t, int32(1), ids["Warmup"])
	assert.Equal(t, int32(2), ids["Cluster"])
	assert.Equal(t, int32(3), ids["Vertex"])
}

func TestCollectionTypeChangeFailsLoud(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	evt := event.New(0)
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()).WithTag("Shared"))
	require.NoError(t, w.Process(ctx, evt))

	vec := eventstore.NewDataVector[datamodel.VertexRow]("Shared", "Vertex")
	vec.Replace([]datamodel.VertexRow{{NDF: 2}})
	conflict := event.New(1)
	require.NoError(t, conflict.Store.Add(vec))

	err := w.Process(ctx, conflict)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestFinalizeStampsMetadataAndManifest(t *testing.T) {
	ctx := context.Background()
	w, ft := newTestWriter(t, nil)
	require.NoError(t, w.Open(ctx))

	evt := event.New(0)
	evt.Run = 7
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()))
	require.NoError(t, w.Process(ctx, evt))

	w.SetBuildInfo(BuildInfo{Version: "1.2.3", Commit: "abc123"})
	w.SetRunParam(7, "beam", "AuAu")
	w.SetCollectionParam("Cluster", "algorithm", "island")

	require.NoError(t, w.Finalize(ctx))

	require.Contains(t, ft.metadata, MetaKeyBuildInfo)
	require.Contains(t, ft.metadata, MetaKeyCollections)
	require.Contains(t, ft.metadata, MetaKeyRunParams)
	require.Contains(t, ft.metadata, MetaKeyCollParams)

	var cols []CollectionInfo
	require.NoError(t, json.Unmarshal([]byte(ft.metadata[MetaKeyCollections]), &cols))
	require.Len(t, cols, 1)
	assert.Equal(t, "Cluster", cols[0].Name)
	assert.Equal(t, int32(1), cols[0].ID)
	assert.Equal(t, "ClusterCollection", cols[0].Type)
	assert.False(t, cols[0].IsSubset)

	manifestPath := w.Path() + ".manifest.json"
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "1.2.3", m["build_info"].(map[string]interface{})["version"])
	assert.EqualValues(t, 1, m["rows"])
}

func TestDefaultPathSentinel(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Output.Path = config.OutputPathDefaultSentinel

	w, err := New(cfg, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, config.DefaultOutputPath, w.Path())
}

func TestNilEventRejected(t *testing.T) {
	w, _ := newTestWriter(t, nil)
	require.NoError(t, w.Open(context.Background()))

	err := w.Process(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
