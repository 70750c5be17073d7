package datamodel

import (
	"reflect"

	"github.com/evarc/evarc/pkg/event"
)

// Family type names as they appear in collection metadata and column
// declarations.
const (
	FamilyEventHeader    = "EventHeader"
	FamilyMCParticle     = "MCParticle"
	FamilyTrackerHit     = "TrackerHit"
	FamilyCalorimeterHit = "CalorimeterHit"
	FamilyCluster        = "Cluster"
	FamilyVertex         = "Vertex"
)

type producerBase struct {
	name       string
	outputType string
	tag        string
}

func (b *producerBase) Name() string           { return b.name }
func (b *producerBase) OutputTypeName() string { return b.outputType }
func (b *producerBase) Tag() string            { return b.tag }

// EventHeaderProducer holds event header records for one event.
type EventHeaderProducer struct {
	producerBase
	items []*EventHeader
}

// NewEventHeaderProducer creates a producer named name holding items. The
// declared output type defaults to the family name.
func NewEventHeaderProducer(name string, items []*EventHeader) *EventHeaderProducer {
	return &EventHeaderProducer{producerBase{name: name, outputType: FamilyEventHeader}, items}
}

// WithTag sets the variant tag and returns the producer.
func (p *EventHeaderProducer) WithTag(tag string) *EventHeaderProducer {
	p.tag = tag
	return p
}

// WithOutputName overrides the declared output type name.
func (p *EventHeaderProducer) WithOutputName(output string) *EventHeaderProducer {
	p.outputType = output
	return p
}

func (p *EventHeaderProducer) ObjectType() reflect.Type     { return reflect.TypeFor[EventHeader]() }
func (p *EventHeaderProducer) Count() int                   { return len(p.items) }
func (p *EventHeaderProducer) EventHeaders() []*EventHeader { return p.items }

// MCParticleProducer holds particle records for one event.
type MCParticleProducer struct {
	producerBase
	items []*MCParticle
}

func NewMCParticleProducer(name string, items []*MCParticle) *MCParticleProducer {
	return &MCParticleProducer{producerBase{name: name, outputType: FamilyMCParticle}, items}
}

func (p *MCParticleProducer) WithTag(tag string) *MCParticleProducer {
	p.tag = tag
	return p
}

func (p *MCParticleProducer) WithOutputName(output string) *MCParticleProducer {
	p.outputType = output
	return p
}

func (p *MCParticleProducer) ObjectType() reflect.Type   { return reflect.TypeFor[MCParticle]() }
func (p *MCParticleProducer) Count() int                 { return len(p.items) }
func (p *MCParticleProducer) MCParticles() []*MCParticle { return p.items }

// TrackerHitProducer holds tracker hit records for one event.
type TrackerHitProducer struct {
	producerBase
	items []*TrackerHit
}

func NewTrackerHitProducer(name string, items []*TrackerHit) *TrackerHitProducer {
	return &TrackerHitProducer{producerBase{name: name, outputType: FamilyTrackerHit}, items}
}

func (p *TrackerHitProducer) WithTag(tag string) *TrackerHitProducer {
	p.tag = tag
	return p
}

func (p *TrackerHitProducer) WithOutputName(output string) *TrackerHitProducer {
	p.outputType = output
	return p
}

func (p *TrackerHitProducer) ObjectType() reflect.Type   { return reflect.TypeFor[TrackerHit]() }
func (p *TrackerHitProducer) Count() int                 { return len(p.items) }
func (p *TrackerHitProducer) TrackerHits() []*TrackerHit { return p.items }

// CalorimeterHitProducer holds calorimeter hit records for one event.
type CalorimeterHitProducer struct {
	producerBase
	items []*CalorimeterHit
}

func NewCalorimeterHitProducer(name string, items []*CalorimeterHit) *CalorimeterHitProducer {
	return &CalorimeterHitProducer{producerBase{name: name, outputType: FamilyCalorimeterHit}, items}
}

func (p *CalorimeterHitProducer) WithTag(tag string) *CalorimeterHitProducer {
	p.tag = tag
	return p
}

func (p *CalorimeterHitProducer) WithOutputName(output string) *CalorimeterHitProducer {
	p.outputType = output
	return p
}

func (p *CalorimeterHitProducer) ObjectType() reflect.Type { return reflect.TypeFor[CalorimeterHit]() }
func (p *CalorimeterHitProducer) Count() int               { return len(p.items) }
func (p *CalorimeterHitProducer) CalorimeterHits() []*CalorimeterHit {
	return p.items
}

// ClusterProducer holds cluster records for one event.
type ClusterProducer struct {
	producerBase
	items []*Cluster
}

func NewClusterProducer(name string, items []*Cluster) *ClusterProducer {
	return &ClusterProducer{producerBase{name: name, outputType: FamilyCluster}, items}
}

func (p *ClusterProducer) WithTag(tag string) *ClusterProducer {
	p.tag = tag
	return p
}

func (p *ClusterProducer) WithOutputName(output string) *ClusterProducer {
	p.outputType = output
	return p
}

func (p *ClusterProducer) ObjectType() reflect.Type { return reflect.TypeFor[Cluster]() }
func (p *ClusterProducer) Count() int               { return len(p.items) }
func (p *ClusterProducer) Clusters() []*Cluster     { return p.items }

// SpecialClusterProducer holds derived cluster records. It satisfies
// ClusterSource with base views, so its records are persisted through the
// Cluster family while the producer keeps its own runtime type.
type SpecialClusterProducer struct {
	producerBase
	items []*SpecialCluster
}

func NewSpecialClusterProducer(name string, items []*SpecialCluster) *SpecialClusterProducer {
	return &SpecialClusterProducer{producerBase{name: name, outputType: "SpecialCluster"}, items}
}

func (p *SpecialClusterProducer) WithTag(tag string) *SpecialClusterProducer {
	p.tag = tag
	return p
}

func (p *SpecialClusterProducer) WithOutputName(output string) *SpecialClusterProducer {
	p.outputType = output
	return p
}

func (p *SpecialClusterProducer) ObjectType() reflect.Type {
	return reflect.TypeFor[SpecialCluster]()
}

func (p *SpecialClusterProducer) Count() int { return len(p.items) }

// Clusters returns base views of the derived records.
func (p *SpecialClusterProducer) Clusters() []*Cluster {
	out := make([]*Cluster, len(p.items))
	for i, s := range p.items {
		out[i] = s.AsCluster()
	}
	return out
}

// SpecialClusters returns the derived records themselves.
func (p *SpecialClusterProducer) SpecialClusters() []*SpecialCluster { return p.items }

// VertexProducer holds vertex records for one event.
type VertexProducer struct {
	producerBase
	items []*Vertex
}

func NewVertexProducer(name string, items []*Vertex) *VertexProducer {
	return &VertexProducer{producerBase{name: name, outputType: FamilyVertex}, items}
}

func (p *VertexProducer) WithTag(tag string) *VertexProducer {
	p.tag = tag
	return p
}

func (p *VertexProducer) WithOutputName(output string) *VertexProducer {
	p.outputType = output
	return p
}

func (p *VertexProducer) ObjectType() reflect.Type { return reflect.TypeFor[Vertex]() }
func (p *VertexProducer) Count() int               { return len(p.items) }
func (p *VertexProducer) Vertices() []*Vertex      { return p.items }

// compile-time checks that producers satisfy the event contract
var (
	_ event.Producer = (*EventHeaderProducer)(nil)
	_ event.Producer = (*MCParticleProducer)(nil)
	_ event.Producer = (*TrackerHitProducer)(nil)
	_ event.Producer = (*CalorimeterHitProducer)(nil)
	_ event.Producer = (*ClusterProducer)(nil)
	_ event.Producer = (*SpecialClusterProducer)(nil)
	_ event.Producer = (*VertexProducer)(nil)

	_ ClusterSource = (*SpecialClusterProducer)(nil)
)
