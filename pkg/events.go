package simflow

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// EventBatch is one columnar slice of the event tree. The jagged columns
// hold one row per event with one entry per hit; the scalar columns hold
// one value per event.
type EventBatch struct {
	Energy [][]float64
	MageID [][]int32
	IsOff  [][]bool
	IsAC   [][]bool

	NpeTot        []float64
	NpeTotPoisson []float64
	Mul           []int32
	MulGood       []int32

	HasNpeTot bool
}

func (b *EventBatch) Len() int {
	return len(b.Energy)
}

// FlattenMageIDs returns all hit ids of the batch in event order.
func (b *EventBatch) FlattenMageIDs() []int32 {
	ids := make([]int32, 0)
	for _, row := range b.MageID {
		ids = append(ids, row...)
	}
	return ids
}

// AddPoissonColumn samples one Poisson variate per event with the total
// photo-electron count as mean. Means of zero or below sample to zero.
// Batches without the photo-electron column are left untouched.
func (b *EventBatch) AddPoissonColumn(src rand.Source) {
	if !b.HasNpeTot {
		return
	}
	b.NpeTotPoisson = make([]float64, len(b.NpeTot))
	for i, mean := range b.NpeTot {
		if mean <= 0 {
			b.NpeTotPoisson[i] = 0
			continue
		}
		poisson := distuv.Poisson{Lambda: mean, Src: src}
		b.NpeTotPoisson[i] = poisson.Rand()
	}
}

// Clean runs the in-place cleaning pipeline: threshold cut, off-detector
// hit removal, empty-event removal, multiplicity computation and, when
// requested, removal of events with anti-coincidence hits.
func (b *EventBatch) Clean(threshold float64, removeACHits bool) {
	b.ApplyEnergyThreshold(threshold)
	b.RemoveOffHits()
	b.RemoveEmptyEvents()
	b.ComputeMultiplicity()
	if removeACHits {
		b.RemoveACEvents()
	}
}

// ApplyEnergyThreshold drops hits at or below the threshold from every
// jagged column.
func (b *EventBatch) ApplyEnergyThreshold(threshold float64) {
	for i := range b.Energy {
		n := 0
		for j, energy := range b.Energy[i] {
			if energy > threshold {
				b.Energy[i][n] = energy
				b.MageID[i][n] = b.MageID[i][j]
				b.IsOff[i][n] = b.IsOff[i][j]
				b.IsAC[i][n] = b.IsAC[i][j]
				n++
			}
		}
		b.Energy[i] = b.Energy[i][:n]
		b.MageID[i] = b.MageID[i][:n]
		b.IsOff[i] = b.IsOff[i][:n]
		b.IsAC[i] = b.IsAC[i][:n]
	}
}

// RemoveOffHits drops hits in detectors flagged off.
func (b *EventBatch) RemoveOffHits() {
	for i := range b.IsOff {
		n := 0
		for j, off := range b.IsOff[i] {
			if !off {
				b.Energy[i][n] = b.Energy[i][j]
				b.MageID[i][n] = b.MageID[i][j]
				b.IsAC[i][n] = b.IsAC[i][j]
				b.IsOff[i][n] = false
				n++
			}
		}
		b.Energy[i] = b.Energy[i][:n]
		b.MageID[i] = b.MageID[i][:n]
		b.IsAC[i] = b.IsAC[i][:n]
		b.IsOff[i] = b.IsOff[i][:n]
	}
}

// RemoveEmptyEvents drops events left without hits.
func (b *EventBatch) RemoveEmptyEvents() {
	keep := make([]bool, len(b.Energy))
	for i := range b.Energy {
		keep[i] = len(b.Energy[i]) > 0
	}
	b.filterEvents(keep)
}

// ComputeMultiplicity fills Mul and MulGood from the hit lists.
func (b *EventBatch) ComputeMultiplicity() {
	b.Mul = make([]int32, len(b.Energy))
	b.MulGood = make([]int32, len(b.Energy))
	for i := range b.Energy {
		b.Mul[i] = int32(len(b.Energy[i]))
		good := int32(0)
		for _, ac := range b.IsAC[i] {
			if !ac {
				good++
			}
		}
		b.MulGood[i] = good
	}
}

// RemoveACEvents drops events with at least one hit in an anti-coincidence
// channel.
func (b *EventBatch) RemoveACEvents() {
	keep := make([]bool, len(b.IsAC))
	for i, row := range b.IsAC {
		keep[i] = true
		for _, ac := range row {
			if ac {
				keep[i] = false
				break
			}
		}
	}
	b.filterEvents(keep)
}

// Select returns a new batch holding the events where keep is true. Hit
// rows are shared with the receiver.
func (b *EventBatch) Select(keep []bool) *EventBatch {
	out := &EventBatch{HasNpeTot: b.HasNpeTot}
	for i, k := range keep {
		if !k {
			continue
		}
		out.Energy = append(out.Energy, b.Energy[i])
		out.MageID = append(out.MageID, b.MageID[i])
		out.IsOff = append(out.IsOff, b.IsOff[i])
		out.IsAC = append(out.IsAC, b.IsAC[i])
		if b.NpeTot != nil {
			out.NpeTot = append(out.NpeTot, b.NpeTot[i])
		}
		if b.NpeTotPoisson != nil {
			out.NpeTotPoisson = append(out.NpeTotPoisson, b.NpeTotPoisson[i])
		}
		if b.Mul != nil {
			out.Mul = append(out.Mul, b.Mul[i])
		}
		if b.MulGood != nil {
			out.MulGood = append(out.MulGood, b.MulGood[i])
		}
	}
	return out
}

func (b *EventBatch) filterEvents(keep []bool) {
	n := 0
	for i, k := range keep {
		if !k {
			continue
		}
		b.Energy[n] = b.Energy[i]
		b.MageID[n] = b.MageID[i]
		b.IsOff[n] = b.IsOff[i]
		b.IsAC[n] = b.IsAC[i]
		if b.NpeTot != nil {
			b.NpeTot[n] = b.NpeTot[i]
		}
		if b.NpeTotPoisson != nil {
			b.NpeTotPoisson[n] = b.NpeTotPoisson[i]
		}
		if b.Mul != nil {
			b.Mul[n] = b.Mul[i]
		}
		if b.MulGood != nil {
			b.MulGood[n] = b.MulGood[i]
		}
		n++
	}
	b.Energy = b.Energy[:n]
	b.MageID = b.MageID[:n]
	b.IsOff = b.IsOff[:n]
	b.IsAC = b.IsAC[:n]
	if b.NpeTot != nil {
		b.NpeTot = b.NpeTot[:n]
	}
	if b.NpeTotPoisson != nil {
		b.NpeTotPoisson = b.NpeTotPoisson[:n]
	}
	if b.Mul != nil {
		b.Mul = b.Mul[:n]
	}
	if b.MulGood != nil {
		b.MulGood = b.MulGood[:n]
	}
}
