package datamodel

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/evarc/evarc/pkg/errors"
)

// Arrow layouts of the stored row forms. Field order must match the
// corresponding append function below.

var eventHeaderArrowType = arrow.StructOf(
	arrow.Field{Name: "event_number", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "run_number", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "time_stamp", Type: arrow.PrimitiveTypes.Uint64},
	arrow.Field{Name: "weight", Type: arrow.PrimitiveTypes.Float32},
)

var mcParticleArrowType = arrow.StructOf(
	arrow.Field{Name: "pdg", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "generator_status", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "simulator_status", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "charge", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "time", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "mass", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "vx", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "vy", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "vz", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "px", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "py", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "pz", Type: arrow.PrimitiveTypes.Float32},
)

var trackerHitArrowType = arrow.StructOf(
	arrow.Field{Name: "cell_id", Type: arrow.PrimitiveTypes.Uint64},
	arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "z", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "time", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "e_dep", Type: arrow.PrimitiveTypes.Float32},
)

var calorimeterHitArrowType = arrow.StructOf(
	arrow.Field{Name: "cell_id", Type: arrow.PrimitiveTypes.Uint64},
	arrow.Field{Name: "energy", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "energy_error", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "time", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "z", Type: arrow.PrimitiveTypes.Float32},
)

var clusterArrowType = arrow.StructOf(
	arrow.Field{Name: "energy", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "energy_error", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "time", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "n_hits", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "z", Type: arrow.PrimitiveTypes.Float32},
)

var vertexArrowType = arrow.StructOf(
	arrow.Field{Name: "chi2", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "ndf", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Float32},
	arrow.Field{Name: "z", Type: arrow.PrimitiveTypes.Float32},
)

func rowTypeError(family string) error {
	return errors.New(errors.ErrorTypeSchema, "rows do not match the declared family").
		WithDetail("family", family)
}

func appendEventHeaderRows(b *array.StructBuilder, rows interface{}) error {
	rs, ok := rows.([]EventHeaderRow)
	if !ok {
		return rowTypeError(FamilyEventHeader)
	}
	for _, r := range rs {
		b.Append(true)
		b.FieldBuilder(0).(*array.Int32Builder).Append(r.EventNumber)
		b.FieldBuilder(1).(*array.Int32Builder).Append(r.RunNumber)
		b.FieldBuilder(2).(*array.Uint64Builder).Append(r.TimeStamp)
		b.FieldBuilder(3).(*array.Float32Builder).Append(r.Weight)
	}
	return nil
}

func appendMCParticleRows(b *array.StructBuilder, rows interface{}) error {
	rs, ok := rows.([]MCParticleRow)
	if !ok {
		return rowTypeError(FamilyMCParticle)
	}
	for _, r := range rs {
		b.Append(true)
		b.FieldBuilder(0).(*array.Int32Builder).Append(r.PDG)
		b.FieldBuilder(1).(*array.Int32Builder).Append(r.GeneratorStatus)
		b.FieldBuilder(2).(*array.Int32Builder).Append(r.SimulatorStatus)
		b.FieldBuilder(3).(*array.Float32Builder).Append(r.Charge)
		b.FieldBuilder(4).(*array.Float32Builder).Append(r.Time)
		b.FieldBuilder(5).(*array.Float64Builder).Append(r.Mass)
		b.FieldBuilder(6).(*array.Float64Builder).Append(r.VX)
		b.FieldBuilder(7).(*array.Float64Builder).Append(r.VY)
		b.FieldBuilder(8).(*array.Float64Builder).Append(r.VZ)
		b.FieldBuilder(9).(*array.Float32Builder).Append(r.PX)
		b.FieldBuilder(10).(*array.Float32Builder).Append(r.PY)
		b.FieldBuilder(11).(*array.Float32Builder).Append(r.PZ)
	}
	return nil
}

func appendTrackerHitRows(b *array.StructBuilder, rows interface{}) error {
	rs, ok := rows.([]TrackerHitRow)
	if !ok {
		return rowTypeError(FamilyTrackerHit)
	}
	for _, r := range rs {
		b.Append(true)
		b.FieldBuilder(0).(*array.Uint64Builder).Append(r.CellID)
		b.FieldBuilder(1).(*array.Float64Builder).Append(r.X)
		b.FieldBuilder(2).(*array.Float64Builder).Append(r.Y)
		b.FieldBuilder(3).(*array.Float64Builder).Append(r.Z)
		b.FieldBuilder(4).(*array.Float32Builder).Append(r.Time)
		b.FieldBuilder(5).(*array.Float32Builder).Append(r.EDep)
	}
	return nil
}

func appendCalorimeterHitRows(b *array.StructBuilder, rows interface{}) error {
	rs, ok := rows.([]CalorimeterHitRow)
	if !ok {
		return rowTypeError(FamilyCalorimeterHit)
	}
	for _, r := range rs {
		b.Append(true)
		b.FieldBuilder(0).(*array.Uint64Builder).Append(r.CellID)
		b.FieldBuilder(1).(*array.Float32Builder).Append(r.Energy)
		b.FieldBuilder(2).(*array.Float32Builder).Append(r.EnergyError)
		b.FieldBuilder(3).(*array.Float32Builder).Append(r.Time)
		b.FieldBuilder(4).(*array.Float32Builder).Append(r.X)
		b.FieldBuilder(5).(*array.Float32Builder).Append(r.Y)
		b.FieldBuilder(6).(*array.Float32Builder).Append(r.Z)
	}
	return nil
}

func appendClusterRows(b *array.StructBuilder, rows interface{}) error {
	rs, ok := rows.([]ClusterRow)
	if !ok {
		return rowTypeError(FamilyCluster)
	}
	for _, r := range rs {
		b.Append(true)
		b.FieldBuilder(0).(*array.Float32Builder).Append(r.Energy)
		b.FieldBuilder(1).(*array.Float32Builder).Append(r.EnergyError)
		b.FieldBuilder(2).(*array.Float32Builder).Append(r.Time)
		b.FieldBuilder(3).(*array.Int32Builder).Append(r.NHits)
		b.FieldBuilder(4).(*array.Float32Builder).Append(r.X)
		b.FieldBuilder(5).(*array.Float32Builder).Append(r.Y)
		b.FieldBuilder(6).(*array.Float32Builder).Append(r.Z)
	}
	return nil
}

func appendVertexRows(b *array.StructBuilder, rows interface{}) error {
	rs, ok := rows.([]VertexRow)
	if !ok {
		return rowTypeError(FamilyVertex)
	}
	for _, r := range rs {
		b.Append(true)
		b.FieldBuilder(0).(*array.Float32Builder).Append(r.Chi2)
		b.FieldBuilder(1).(*array.Int32Builder).Append(r.NDF)
		b.FieldBuilder(2).(*array.Float32Builder).Append(r.X)
		b.FieldBuilder(3).(*array.Float32Builder).Append(r.Y)
		b.FieldBuilder(4).(*array.Float32Builder).Append(r.Z)
	}
	return nil
}
