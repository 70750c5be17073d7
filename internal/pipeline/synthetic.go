package pipeline

import (
	"context"
	"math/rand"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/event"
)

// SyntheticSource generates deterministic pseudo-physics events. The
// same seed always yields the same stream, independent of worker
// scheduling, because every event derives its own generator from the
// seed and its sequence number.
type SyntheticSource struct {
	cfg config.SourceConfig
}

// NewSyntheticSource creates a synthetic source.
func NewSyntheticSource(cfg config.SourceConfig) *SyntheticSource {
	return &SyntheticSource{cfg: cfg}
}

func (s *SyntheticSource) Name() string {
	return "synthetic"
}

func (s *SyntheticSource) Events(ctx context.Context) (<-chan *event.Event, <-chan error) {
	events := make(chan *event.Event, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		total := s.cfg.Events
		if total <= 0 {
			total = 1000
		}
		for seq := int64(0); seq < total; seq++ {
			select {
			case events <- s.generate(uint64(seq)):
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}

var syntheticPDGs = []int32{11, -11, 13, -13, 22, 211, -211, 2212, 2112}

func (s *SyntheticSource) generate(seq uint64) *event.Event {
	rng := rand.New(rand.NewSource(s.cfg.Seed + int64(seq)))
	count := func() int {
		max := s.cfg.RecordsPerEvent
		if max <= 0 {
			max = 16
		}
		return 1 + rng.Intn(max)
	}

	evt := event.New(seq)
	evt.Run = 1
	evt.SetParam("generator", "synthetic")

	evt.AddProducer(datamodel.NewEventHeaderProducer("header", []*datamodel.EventHeader{{
		EventNumber: int32(seq),
		RunNumber:   1,
		TimeStamp:   seq * 1000,
		Weight:      1,
	}}))

	particles := make([]*datamodel.MCParticle, count())
	for i := range particles {
		particles[i] = &datamodel.MCParticle{
			PDG:             syntheticPDGs[rng.Intn(len(syntheticPDGs))],
			GeneratorStatus: 1,
			Charge:          float32(rng.Intn(3) - 1),
			Mass:            rng.Float64(),
			Vertex:          datamodel.Vector3d{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64() * 10},
			Momentum:        datamodel.Vector3f{X: float32(rng.NormFloat64()), Y: float32(rng.NormFloat64()), Z: float32(rng.NormFloat64() * 5)},
		}
	}
	evt.AddProducer(datamodel.NewMCParticleProducer("generator", particles))

	hits := make([]*datamodel.TrackerHit, count())
	for i := range hits {
		hits[i] = &datamodel.TrackerHit{
			CellID:   rng.Uint64(),
			Position: datamodel.Vector3d{X: rng.NormFloat64() * 100, Y: rng.NormFloat64() * 100, Z: rng.NormFloat64() * 200},
			Time:     float32(rng.Float64() * 25),
			EDep:     float32(rng.Float64() * 0.001),
		}
	}
	evt.AddProducer(datamodel.NewTrackerHitProducer("tracker", hits).WithTag("BarrelHits"))

	calo := make([]*datamodel.CalorimeterHit, count())
	for i := range calo {
		calo[i] = &datamodel.CalorimeterHit{
			CellID:      rng.Uint64(),
			Energy:      float32(rng.Float64() * 10),
			EnergyError: float32(rng.Float64() * 0.1),
			Time:        float32(rng.Float64() * 25),
			Position:    datamodel.Vector3f{X: float32(rng.NormFloat64() * 150), Y: float32(rng.NormFloat64() * 150), Z: float32(rng.NormFloat64() * 300)},
		}
	}
	evt.AddProducer(datamodel.NewCalorimeterHitProducer("ecal", calo).WithTag("EcalHits"))

	clusters := make([]*datamodel.Cluster, 1+rng.Intn(4))
	for i := range clusters {
		clusters[i] = &datamodel.Cluster{
			Energy:   float32(rng.Float64() * 50),
			Time:     float32(rng.Float64() * 25),
			NHits:    int32(1 + rng.Intn(20)),
			Position: datamodel.Vector3f{X: float32(rng.NormFloat64() * 150), Y: float32(rng.NormFloat64() * 150), Z: float32(rng.NormFloat64() * 300)},
		}
	}
	evt.AddProducer(datamodel.NewClusterProducer("clusterizer", clusters).WithTag("EcalClusters"))

	// Every third event carries no vertices, leaving empty cells in the
	// vertex column.
	if seq%3 != 2 {
		verts := make([]*datamodel.Vertex, 1+rng.Intn(2))
		for i := range verts {
			verts[i] = &datamodel.Vertex{
				Chi2:     float32(rng.Float64() * 5),
				NDF:      int32(1 + rng.Intn(10)),
				Position: datamodel.Vector3f{Z: float32(rng.NormFloat64() * 10)},
			}
		}
		evt.AddProducer(datamodel.NewVertexProducer("vertexer", verts))
	}

	if s.cfg.LateCollectionStart > 0 && int64(seq) >= s.cfg.LateCollectionStart {
		specials := []*datamodel.SpecialCluster{{
			Cluster:      datamodel.Cluster{Energy: float32(rng.Float64() * 80), NHits: int32(5 + rng.Intn(30))},
			Seed:         int32(rng.Intn(1000)),
			Significance: float32(rng.Float64() * 12),
		}}
		evt.AddProducer(datamodel.NewSpecialClusterProducer("merger", specials).WithOutputName("MergedClusters"))
	}

	return evt
}
