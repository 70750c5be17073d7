package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/json"
	"github.com/evarc/evarc/pkg/rowtable"
)

func TestWriterEndToEndParquet(t *testing.T) {
	ctx := context.Background()
	copyDir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Output.Path = filepath.Join(t.TempDir(), "run.parquet")
	cfg.Output.CopyTo = copyDir
	cfg.Filter.ExcludeCollections = "DebugHits"

	w, err := New(cfg, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Open(ctx))

	for seq := uint64(0); seq < 5; seq++ {
		evt := event.New(seq)
		evt.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()).WithTag("EcalClusters"))
		evt.AddProducer(datamodel.NewTrackerHitProducer("debug", []*datamodel.TrackerHit{{CellID: seq}}).WithTag("DebugHits"))
		require.NoError(t, w.Process(ctx, evt))
	}

	// A collection appearing for the first time at event five; the five
	// earlier rows get placeholder cells.
	late := event.New(5)
	late.AddProducer(datamodel.NewClusterProducer("clusterizer", someClusters()).WithTag("EcalClusters"))
	late.AddProducer(datamodel.NewCalorimeterHitProducer("calo", []*datamodel.CalorimeterHit{{CellID: 5, Energy: 1.5}}).WithTag("LateHits"))
	require.NoError(t, w.Process(ctx, late))

	w.SetRunParam(0, "beam_energy", 18.0)
	require.NoError(t, w.Finalize(ctx))

	summary, err := rowtable.Inspect(cfg.Output.Path)
	require.NoError(t, err)
	assert.EqualValues(t, 6, summary.Rows)

	names := make([]string, 0, len(summary.Columns))
	for _, c := range summary.Columns {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "EcalClusters")
	assert.Contains(t, names, "LateHits")
	assert.Contains(t, names, rowtable.MetadataColumn)
	assert.NotContains(t, names, "DebugHits")

	var cols []CollectionInfo
	require.NoError(t, json.Unmarshal([]byte(summary.Metadata[MetaKeyCollections]), &cols))
	require.Len(t, cols, 2)
	assert.Equal(t, "EcalClusters", cols[0].Name)
	assert.Equal(t, int32(1), cols[0].ID)
	assert.Equal(t, "ClusterCollection", cols[0].Type)
	assert.Equal(t, "LateHits", cols[1].Name)
	assert.Equal(t, int32(2), cols[1].ID)
	assert.Equal(t, "CalorimeterHitCollection", cols[1].Type)

	assert.Contains(t, summary.Metadata, MetaKeyBuildInfo)
	assert.Contains(t, summary.Metadata, MetaKeyRunParams)

	_, err = os.Stat(filepath.Join(copyDir, "run.parquet"))
	assert.NoError(t, err, "finalize copies the archive to the configured destination")
	_, err = os.Stat(cfg.Output.Path + ".manifest.json")
	assert.NoError(t, err)
}

func TestWriterEndToEndArrow(t *testing.T) {
	ctx := context.Background()

	cfg := config.NewDefaultConfig()
	cfg.Output.Path = filepath.Join(t.TempDir(), "run.arrow")
	cfg.Output.Format = config.FormatArrow

	w, err := New(cfg, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Open(ctx))
	for seq := uint64(0); seq < 2; seq++ {
		evt := event.New(seq)
		evt.AddProducer(datamodel.NewMCParticleProducer("generator", []*datamodel.MCParticle{{PDG: 11, Mass: 0.000511}}))
		require.NoError(t, w.Process(ctx, evt))
	}
	require.NoError(t, w.Finalize(ctx))

	summary, err := rowtable.Inspect(cfg.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, rowtable.FormatArrow, summary.Format)
	assert.EqualValues(t, 2, summary.Rows)
}
