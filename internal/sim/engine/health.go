package engine

import (
	"math"

	"ecosim/internal/sim/catalog"
)

// HealthReport is a derived view of one stats snapshot for operators:
// how populated the world is, how many species persist, how evenly the
// population is spread (Shannon diversity in nats), and a composite
// 0..100 score with a coarse status label.
type HealthReport struct {
	Tick       uint64
	Live       int
	Empty      int
	Species    int
	Diversity  float64
	MeanEnergy float64
	Dominant   string

	// GreenCoverage is the share of all slots held by the GREEN type,
	// zero when the catalog has no such type.
	GreenCoverage float64
	// Predators counts live cells whose type has a non-empty diet.
	Predators int
	// DiseasePressure is the expected number of decay deaths per
	// thousand live cells on the next tick.
	DiseasePressure float64
	Score           int
	Status          string
}

func Health(snap StatsSnapshot, cat *catalog.Catalog) HealthReport {
	rep := HealthReport{Tick: snap.Tick, Empty: snap.EmptyCount()}
	dominantCount := 0
	decayWeight := 0
	for id, n := range snap.Counts {
		tid := catalog.TypeID(id)
		if tid == catalog.Empty || n == 0 {
			continue
		}
		rep.Live += n
		rep.Species++
		if n > dominantCount {
			dominantCount = n
			if int(tid) < len(cat.Palette) {
				rep.Dominant = cat.Palette[tid]
			}
		}
		if int(tid) < len(cat.Types) {
			ct := cat.Types[tid]
			if ct.Diet != 0 {
				rep.Predators += n
			}
			decayWeight += n * ct.DecayPermille
		}
	}
	total := rep.Live + rep.Empty
	if green, ok := cat.Lookup("GREEN"); ok && total > 0 && int(green) < len(snap.Counts) {
		rep.GreenCoverage = float64(snap.Counts[green]) / float64(total)
	}
	if rep.Live > 0 {
		rep.MeanEnergy = float64(snap.TotalEnergy) / float64(rep.Live)
		rep.DiseasePressure = float64(decayWeight) / float64(rep.Live)
		for id, n := range snap.Counts {
			if catalog.TypeID(id) == catalog.Empty || n == 0 {
				continue
			}
			p := float64(n) / float64(rep.Live)
			rep.Diversity -= p * math.Log(p)
		}
	}
	rep.Score = healthScore(rep, total)
	rep.Status = healthStatus(rep)
	return rep
}

// healthScore folds occupancy, evenness, disease pressure and the
// predator load into a single 0..100 number. Full marks for occupancy
// come at a quarter of the grid; predator share is penalised only past
// one in two live cells.
func healthScore(rep HealthReport, total int) int {
	if rep.Live == 0 || total == 0 {
		return 0
	}
	occupancy := math.Min(1, 4*float64(rep.Live)/float64(total))
	evenness := 0.0
	if rep.Species > 1 {
		evenness = rep.Diversity / math.Log(float64(rep.Species))
	}
	disease := 1 - math.Min(1, rep.DiseasePressure/250)
	balance := 1.0
	if share := float64(rep.Predators) / float64(rep.Live); share > 0.5 {
		balance = math.Max(0, 1-(share-0.5)*2)
	}
	s := 100 * (0.35*occupancy + 0.25*evenness + 0.25*disease + 0.15*balance)
	return int(math.Round(s))
}

func healthStatus(rep HealthReport) string {
	switch {
	case rep.Live == 0:
		return "dead"
	case rep.Score >= 75:
		return "thriving"
	case rep.Score >= 50:
		return "stable"
	case rep.Score >= 25:
		return "stressed"
	default:
		return "collapsing"
	}
}
