package engine

import (
	"math"

	"ecosim/internal/sim/catalog"
)

// Moore neighborhood in fixed scan order. Every tie-break in the rule system
// resolves by this order, which makes the transition function a pure function
// of the committed generation.
var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Dietless types draw a fixed trickle of energy from the substrate each
// survived tick; everything else only gains by consuming prey.
const substrateGain = 1

// Drifters relocate on roughly a quarter of their ticks, roamers every tick.
const drifterMovePermille = 250

type actionKind uint8

const (
	actStay actionKind = iota
	actDie
	actEat
	actRepro
	actMove
)

type action struct {
	kind   actionKind
	tx, ty int
}

// RuleSet decides the next state of one cell from its own committed state and
// its 8-connected neighborhood, read strictly from the previous generation.
// Interactions that span two slots (predation, reproduction, movement) are
// resolved symmetrically: both slots recompute the same deterministic decision
// from the frozen generation, so no evaluation task ever writes outside its
// own chunk.
type RuleSet struct {
	types []catalog.CellType
	seed  int64
}

func NewRuleSet(cat *catalog.Catalog, seed int64) *RuleSet {
	return &RuleSet{types: cat.Types, seed: seed}
}

// describe panics on an out-of-range id. A corrupted type reference means the
// grid and catalog disagree; masking it would hide version mismatches.
func (r *RuleSet) describe(id catalog.TypeID) catalog.CellType {
	if int(id) >= len(r.types) {
		panic(unknownTypeError{id: id})
	}
	return r.types[id]
}

func (r *RuleSet) gainFor(ct catalog.CellType) int {
	if ct.Diet == 0 {
		return substrateGain
	}
	return 0
}

// survivorEnergy is the energy a cell carries into the next generation when
// it survives in place: committed energy plus gain minus upkeep, clamped.
func (r *RuleSet) survivorEnergy(c Cell, ct catalog.CellType, gain int) int {
	e := int(c.Energy) + gain - ct.UpkeepEnergy
	if e > math.MaxInt16 {
		e = math.MaxInt16
	}
	return e
}

// preyTarget picks the highest-energy diet-eligible neighbor, ties broken by
// scan order.
func (r *RuleSet) preyTarget(g *Grid, x, y int, ct catalog.CellType) (int, int, bool) {
	bestX, bestY := 0, 0
	bestEnergy := -1
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(x, y, d[0], d[1])
		if !ok || n.Empty() || !ct.Diet.Has(n.Type) {
			continue
		}
		if int(n.Energy) > bestEnergy {
			bestEnergy = int(n.Energy)
			bestX, bestY = wrapCoord(g, x+d[0], y+d[1])
		}
	}
	if bestEnergy < 0 {
		return 0, 0, false
	}
	return bestX, bestY, true
}

func wrapCoord(g *Grid, x, y int) (int, int) {
	if g.wrap {
		return mod(x, g.w), mod(y, g.h)
	}
	return x, y
}

// baseIntent evaluates the first four priority rules for the cell at (x, y):
// starvation, age death, predation, reproduction. It reads only committed
// cells and never recurses, so it is safe to evaluate for any slot from any
// other slot's resolution.
func (r *RuleSet) baseIntent(g *Grid, x, y int) action {
	c := g.at(x, y)
	if c.Empty() {
		return action{kind: actStay}
	}
	ct := r.describe(c.Type)
	if c.Energy <= 0 {
		return action{kind: actDie}
	}
	if ct.MaxLifespan > 0 && int(c.Age) >= ct.MaxLifespan {
		return action{kind: actDie}
	}
	if ct.Diet != 0 {
		if tx, ty, ok := r.preyTarget(g, x, y, ct); ok {
			return action{kind: actEat, tx: tx, ty: ty}
		}
	}
	if int(c.Energy) >= ct.ReproThreshold {
		// Both parent and offspring must come out with positive energy.
		if e := r.survivorEnergy(c, ct, r.gainFor(ct)); e >= 2 {
			if tx, ty, ok := r.firstEmptyNeighbor(g, x, y); ok {
				return action{kind: actRepro, tx: tx, ty: ty}
			}
		}
	}
	return action{kind: actStay}
}

func (r *RuleSet) firstEmptyNeighbor(g *Grid, x, y int) (int, int, bool) {
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(x, y, d[0], d[1])
		if ok && n.Empty() {
			nx, ny := wrapCoord(g, x+d[0], y+d[1])
			return nx, ny, true
		}
	}
	return 0, 0, false
}

// eatenBy reports whether any live neighbor's predation rule selects (x, y)
// as its prey this tick. Attacker liveness is judged by baseIntent, so an
// attacker that is itself consumed this tick still completes its strike.
func (r *RuleSet) eatenBy(g *Grid, x, y int) bool {
	c := g.at(x, y)
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(x, y, d[0], d[1])
		if !ok || n.Empty() {
			continue
		}
		nct := r.describe(n.Type)
		if !nct.Diet.Has(c.Type) {
			continue
		}
		nx, ny := wrapCoord(g, x+d[0], y+d[1])
		if bi := r.baseIntent(g, nx, ny); bi.kind == actEat && bi.tx == x && bi.ty == y {
			return true
		}
	}
	return false
}

// claimsRepro reports whether the cell at (px, py) reproduces into slot
// (sx, sy) this tick. A parent consumed this tick does not spawn.
func (r *RuleSet) claimsRepro(g *Grid, px, py, sx, sy int) bool {
	bi := r.baseIntent(g, px, py)
	if bi.kind != actRepro || bi.tx != sx || bi.ty != sy {
		return false
	}
	return !r.eatenBy(g, px, py)
}

// hasReproClaimant reports whether any neighbor of the empty slot (sx, sy)
// reproduces into it. Movers never contest a slot claimed for reproduction.
func (r *RuleSet) hasReproClaimant(g *Grid, sx, sy int) bool {
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(sx, sy, d[0], d[1])
		if !ok || n.Empty() {
			continue
		}
		px, py := wrapCoord(g, sx+d[0], sy+d[1])
		if r.claimsRepro(g, px, py, sx, sy) {
			return true
		}
	}
	return false
}

// fullIntent extends baseIntent with the remaining priority rules: same-tick
// consumption, decay, movement.
func (r *RuleSet) fullIntent(g *Grid, x, y int, tick uint64) action {
	bi := r.baseIntent(g, x, y)
	if bi.kind == actDie {
		return bi
	}
	c := g.at(x, y)
	if c.Empty() {
		return action{kind: actStay}
	}
	if r.eatenBy(g, x, y) {
		return action{kind: actDie}
	}
	if bi.kind != actStay {
		return bi
	}
	ct := r.describe(c.Type)
	if ct.DecayPermille > 0 && hash3(r.seed^saltDecay, x, y, tick)%1000 < uint64(ct.DecayPermille) {
		return action{kind: actDie}
	}
	if r.survivorEnergy(c, ct, r.gainFor(ct)) <= 0 {
		// Will not survive the tick either way; do not contest a slot.
		return action{kind: actStay}
	}
	switch ct.Mobility {
	case catalog.MobilityRoamer:
	case catalog.MobilityDrifter:
		if hash3(r.seed^saltMove, x, y, tick)%1000 >= drifterMovePermille {
			return action{kind: actStay}
		}
	default:
		return action{kind: actStay}
	}
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(x, y, d[0], d[1])
		if !ok || !n.Empty() {
			continue
		}
		sx, sy := wrapCoord(g, x+d[0], y+d[1])
		if r.hasReproClaimant(g, sx, sy) {
			continue
		}
		return action{kind: actMove, tx: sx, ty: sy}
	}
	return action{kind: actStay}
}

// reproWinner resolves which neighbor spawns into the empty slot (sx, sy):
// the first claimant in the slot's scan order.
func (r *RuleSet) reproWinner(g *Grid, sx, sy int) (int, int, bool) {
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(sx, sy, d[0], d[1])
		if !ok || n.Empty() {
			continue
		}
		px, py := wrapCoord(g, sx+d[0], sy+d[1])
		if r.claimsRepro(g, px, py, sx, sy) {
			return px, py, true
		}
	}
	return 0, 0, false
}

// moveWinner resolves which neighbor relocates into the empty slot (sx, sy):
// the first mover in the slot's scan order targeting it.
func (r *RuleSet) moveWinner(g *Grid, sx, sy int, tick uint64) (int, int, bool) {
	for _, d := range neighborOffsets {
		n, ok := g.neighbor(sx, sy, d[0], d[1])
		if !ok || n.Empty() {
			continue
		}
		px, py := wrapCoord(g, sx+d[0], sy+d[1])
		if fi := r.fullIntent(g, px, py, tick); fi.kind == actMove && fi.tx == sx && fi.ty == sy {
			return px, py, true
		}
	}
	return 0, 0, false
}

// survive produces the cell's next state when it stays in its slot.
func (r *RuleSet) survive(c Cell, ct catalog.CellType, gain int, reproduced bool) Cell {
	e := r.survivorEnergy(c, ct, gain)
	if reproduced {
		e -= e / 2
	}
	if e <= 0 {
		return Cell{}
	}
	return Cell{Type: c.Type, Energy: int16(e), Age: c.Age + 1}
}

// Next computes the committed cell at (x, y) for generation tick+1. Pure with
// respect to the committed generation: identical inputs yield identical
// outputs regardless of chunk-dispatch or thread order.
func (r *RuleSet) Next(g *Grid, x, y int, tick uint64) Cell {
	c := g.at(x, y)
	if c.Empty() {
		if px, py, ok := r.reproWinner(g, x, y); ok {
			parent := g.at(px, py)
			pct := r.describe(parent.Type)
			e := r.survivorEnergy(parent, pct, r.gainFor(pct))
			return Cell{Type: parent.Type, Energy: int16(e / 2), Flags: FlagNewborn}
		}
		if px, py, ok := r.moveWinner(g, x, y, tick); ok {
			mover := g.at(px, py)
			mct := r.describe(mover.Type)
			e := r.survivorEnergy(mover, mct, r.gainFor(mct))
			return Cell{Type: mover.Type, Energy: int16(e), Age: mover.Age + 1, Flags: FlagMoved}
		}
		return Cell{}
	}

	ct := r.describe(c.Type)
	switch act := r.fullIntent(g, x, y, tick); act.kind {
	case actDie:
		return Cell{}
	case actEat:
		prey := g.at(act.tx, act.ty)
		return r.survive(c, ct, int(prey.Energy), false)
	case actRepro:
		// The slot resolves contested claims; only the winner pays the split.
		if px, py, ok := r.reproWinner(g, act.tx, act.ty); ok && px == x && py == y {
			return r.survive(c, ct, r.gainFor(ct), true)
		}
		return r.survive(c, ct, r.gainFor(ct), false)
	case actMove:
		if px, py, ok := r.moveWinner(g, act.tx, act.ty, tick); ok && px == x && py == y {
			return Cell{}
		}
		return r.survive(c, ct, r.gainFor(ct), false)
	default:
		return r.survive(c, ct, r.gainFor(ct), false)
	}
}
