// Package datamodel defines the event record types evarc persists and the
// closed dispatch table that maps producers onto collection columns.
//
// Each persistable family pairs a record type (the in-memory form
// producers hand over) with a flat row type (the native form stored in
// the archive). PrepareRows functions convert between the two and are the
// single place conversion can fail.
package datamodel

import (
	"fmt"
	"math"
)

// Vector3f is a three-component float32 vector.
type Vector3f struct {
	X, Y, Z float32
}

// Vector3d is a three-component float64 vector.
type Vector3d struct {
	X, Y, Z float64
}

// EventHeader carries the bookkeeping record of one event.
type EventHeader struct {
	EventNumber int32
	RunNumber   int32
	TimeStamp   uint64
	Weight      float32
}

// MCParticle is a generated or simulated particle.
type MCParticle struct {
	PDG             int32
	GeneratorStatus int32
	SimulatorStatus int32
	Charge          float32
	Time            float32
	Mass            float64
	Vertex          Vector3d
	Momentum        Vector3f
}

// TrackerHit is a position measurement in a tracking detector.
type TrackerHit struct {
	CellID   uint64
	Position Vector3d
	Time     float32
	EDep     float32
}

// CalorimeterHit is an energy deposit in a calorimeter cell.
type CalorimeterHit struct {
	CellID      uint64
	Energy      float32
	EnergyError float32
	Time        float32
	Position    Vector3f
}

// Cluster is a group of calorimeter hits reconstructed as one shower.
type Cluster struct {
	Energy      float32
	EnergyError float32
	Time        float32
	NHits       int32
	Position    Vector3f
}

// SpecialCluster is a cluster with seed bookkeeping attached. It is
// persisted through the Cluster family: only the embedded base record
// reaches the archive.
type SpecialCluster struct {
	Cluster
	Seed         int32
	Significance float32
}

// AsCluster returns the embedded base record.
func (s *SpecialCluster) AsCluster() *Cluster {
	return &s.Cluster
}

// Vertex is a fitted interaction or decay point.
type Vertex struct {
	Chi2     float32
	NDF      int32
	Position Vector3f
}

// Flat row forms. These are what the archive actually stores; vectors in
// the event store hold them after preparation.

// EventHeaderRow is the stored form of EventHeader.
type EventHeaderRow struct {
	EventNumber int32
	RunNumber   int32
	TimeStamp   uint64
	Weight      float32
}

// MCParticleRow is the stored form of MCParticle.
type MCParticleRow struct {
	PDG             int32
	GeneratorStatus int32
	SimulatorStatus int32
	Charge          float32
	Time            float32
	Mass            float64
	VX, VY, VZ      float64
	PX, PY, PZ      float32
}

// TrackerHitRow is the stored form of TrackerHit.
type TrackerHitRow struct {
	CellID  uint64
	X, Y, Z float64
	Time    float32
	EDep    float32
}

// CalorimeterHitRow is the stored form of CalorimeterHit.
type CalorimeterHitRow struct {
	CellID      uint64
	Energy      float32
	EnergyError float32
	Time        float32
	X, Y, Z     float32
}

// ClusterRow is the stored form of Cluster.
type ClusterRow struct {
	Energy      float32
	EnergyError float32
	Time        float32
	NHits       int32
	X, Y, Z     float32
}

// VertexRow is the stored form of Vertex.
type VertexRow struct {
	Chi2    float32
	NDF     int32
	X, Y, Z float32
}

// Source interfaces. A producer exposes its records through the interface
// of the family it belongs to; the dispatch table probes for these. A
// producer of a derived type exposes base views, which is how derived
// records ride an existing family.

// EventHeaderSource yields event header records.
type EventHeaderSource interface {
	EventHeaders() []*EventHeader
}

// MCParticleSource yields particle records.
type MCParticleSource interface {
	MCParticles() []*MCParticle
}

// TrackerHitSource yields tracker hit records.
type TrackerHitSource interface {
	TrackerHits() []*TrackerHit
}

// CalorimeterHitSource yields calorimeter hit records.
type CalorimeterHitSource interface {
	CalorimeterHits() []*CalorimeterHit
}

// ClusterSource yields cluster records.
type ClusterSource interface {
	Clusters() []*Cluster
}

// VertexSource yields vertex records.
type VertexSource interface {
	Vertices() []*Vertex
}

// CollectionTypeName returns the collection type label recorded in the
// archive metadata for a family, e.g. "ClusterCollection" for "Cluster".
func CollectionTypeName(family string) string {
	return family + "Collection"
}

// PrepareEventHeaderRows converts header records to their stored form.
func PrepareEventHeaderRows(items []*EventHeader) ([]EventHeaderRow, error) {
	rows := make([]EventHeaderRow, 0, len(items))
	for i, h := range items {
		if h == nil {
			return nil, fmt.Errorf("nil event header at index %d", i)
		}
		rows = append(rows, EventHeaderRow{
			EventNumber: h.EventNumber,
			RunNumber:   h.RunNumber,
			TimeStamp:   h.TimeStamp,
			Weight:      h.Weight,
		})
	}
	return rows, nil
}

// PrepareMCParticleRows converts particle records to their stored form.
// Particles with a non-finite mass are rejected.
func PrepareMCParticleRows(items []*MCParticle) ([]MCParticleRow, error) {
	rows := make([]MCParticleRow, 0, len(items))
	for i, p := range items {
		if p == nil {
			return nil, fmt.Errorf("nil particle at index %d", i)
		}
		if math.IsNaN(p.Mass) || math.IsInf(p.Mass, 0) {
			return nil, fmt.Errorf("particle at index %d has non-finite mass %v", i, p.Mass)
		}
		rows = append(rows, MCParticleRow{
			PDG:             p.PDG,
			GeneratorStatus: p.GeneratorStatus,
			SimulatorStatus: p.SimulatorStatus,
			Charge:          p.Charge,
			Time:            p.Time,
			Mass:            p.Mass,
			VX:              p.Vertex.X,
			VY:              p.Vertex.Y,
			VZ:              p.Vertex.Z,
			PX:              p.Momentum.X,
			PY:              p.Momentum.Y,
			PZ:              p.Momentum.Z,
		})
	}
	return rows, nil
}

// PrepareTrackerHitRows converts tracker hit records to their stored form.
func PrepareTrackerHitRows(items []*TrackerHit) ([]TrackerHitRow, error) {
	rows := make([]TrackerHitRow, 0, len(items))
	for i, h := range items {
		if h == nil {
			return nil, fmt.Errorf("nil tracker hit at index %d", i)
		}
		rows = append(rows, TrackerHitRow{
			CellID: h.CellID,
			X:      h.Position.X,
			Y:      h.Position.Y,
			Z:      h.Position.Z,
			Time:   h.Time,
			EDep:   h.EDep,
		})
	}
	return rows, nil
}

// PrepareCalorimeterHitRows converts calorimeter hit records to their
// stored form. Hits with non-finite energy are rejected.
func PrepareCalorimeterHitRows(items []*CalorimeterHit) ([]CalorimeterHitRow, error) {
	rows := make([]CalorimeterHitRow, 0, len(items))
	for i, h := range items {
		if h == nil {
			return nil, fmt.Errorf("nil calorimeter hit at index %d", i)
		}
		if !finite32(h.Energy) {
			return nil, fmt.Errorf("calorimeter hit at index %d has non-finite energy %v", i, h.Energy)
		}
		rows = append(rows, CalorimeterHitRow{
			CellID:      h.CellID,
			Energy:      h.Energy,
			EnergyError: h.EnergyError,
			Time:        h.Time,
			X:           h.Position.X,
			Y:           h.Position.Y,
			Z:           h.Position.Z,
		})
	}
	return rows, nil
}

// PrepareClusterRows converts cluster records to their stored form.
// Clusters with non-finite energy or a negative hit count are rejected.
func PrepareClusterRows(items []*Cluster) ([]ClusterRow, error) {
	rows := make([]ClusterRow, 0, len(items))
	for i, c := range items {
		if c == nil {
			return nil, fmt.Errorf("nil cluster at index %d", i)
		}
		if !finite32(c.Energy) {
			return nil, fmt.Errorf("cluster at index %d has non-finite energy %v", i, c.Energy)
		}
		if c.NHits < 0 {
			return nil, fmt.Errorf("cluster at index %d has negative hit count %d", i, c.NHits)
		}
		rows = append(rows, ClusterRow{
			Energy:      c.Energy,
			EnergyError: c.EnergyError,
			Time:        c.Time,
			NHits:       c.NHits,
			X:           c.Position.X,
			Y:           c.Position.Y,
			Z:           c.Position.Z,
		})
	}
	return rows, nil
}

// PrepareVertexRows converts vertex records to their stored form.
func PrepareVertexRows(items []*Vertex) ([]VertexRow, error) {
	rows := make([]VertexRow, 0, len(items))
	for i, v := range items {
		if v == nil {
			return nil, fmt.Errorf("nil vertex at index %d", i)
		}
		rows = append(rows, VertexRow{
			Chi2: v.Chi2,
			NDF:  v.NDF,
			X:    v.Position.X,
			Y:    v.Position.Y,
			Z:    v.Position.Z,
		})
	}
	return rows, nil
}

func finite32(f float32) bool {
	f64 := float64(f)
	return !math.IsNaN(f64) && !math.IsInf(f64, 0)
}
