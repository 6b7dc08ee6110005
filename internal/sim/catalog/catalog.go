package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// TypeID indexes a cell type inside the palette. The palette is fixed at
// startup, so a TypeID is stable for the lifetime of the process.
type TypeID uint8

// Empty is the reserved palette slot for an unoccupied grid cell.
const Empty TypeID = 0

// EmptyName is the palette id of the empty slot; it must exist in the defs
// file and is always forced to palette index 0.
const EmptyName = "EMPTY"

// ErrUnknownType is returned when a TypeID has no registered descriptor.
var ErrUnknownType = errors.New("unknown cell type")

type MobilityClass uint8

const (
	MobilityStatic MobilityClass = iota
	MobilityDrifter
	MobilityRoamer
)

func (m MobilityClass) String() string {
	switch m {
	case MobilityStatic:
		return "STATIC"
	case MobilityDrifter:
		return "DRIFTER"
	case MobilityRoamer:
		return "ROAMER"
	}
	return fmt.Sprintf("MOBILITY(%d)", uint8(m))
}

// DietMask is a bitset over TypeID. Bit i set means the type may consume
// cells of palette id i.
type DietMask uint64

func (m DietMask) Has(id TypeID) bool { return m&(1<<uint64(id)) != 0 }

// CellType is the immutable descriptor for one palette entry. Values are
// shared read-only across all evaluation goroutines.
type CellType struct {
	ID             TypeID
	Name           string
	BaseEnergy     int
	Diet           DietMask
	ReproThreshold int
	MaxLifespan    int // 0 = no age death
	UpkeepEnergy   int
	DecayPermille  int
	Mobility       MobilityClass
}

// Def is the on-disk shape of one entry in cell_types.json.
type Def struct {
	ID             string   `json:"id"`
	BaseEnergy     int      `json:"base_energy"`
	Diet           []string `json:"diet,omitempty"`
	ReproThreshold int      `json:"repro_threshold"`
	MaxLifespan    int      `json:"max_lifespan,omitempty"`
	UpkeepEnergy   int      `json:"upkeep_energy,omitempty"`
	DecayPermille  int      `json:"decay_permille,omitempty"`
	Mobility       string   `json:"mobility"`
}

// Catalog is the immutable cell-type table. Built once at startup, safe to
// share across goroutines without synchronization.
type Catalog struct {
	Palette       []string
	Index         map[string]TypeID
	Types         []CellType // indexed by TypeID
	PaletteDigest string
	DefsDigest    string
}

// Load reads cell_types.json from configDir and builds the catalog.
func Load(configDir string) (*Catalog, error) {
	path := filepath.Join(configDir, "cell_types.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var defs []Def
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("cell_types.json: %w", err)
	}
	c, err := FromDefs(defs)
	if err != nil {
		return nil, fmt.Errorf("cell_types.json: %w", err)
	}
	c.DefsDigest = sha256Hex(raw)
	return c, nil
}

// FromDefs builds a catalog from in-memory defs. Tests use this to declare
// small closed type sets without a config directory.
func FromDefs(defs []Def) (*Catalog, error) {
	byID := make(map[string]Def, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("empty id")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate id %s", d.ID)
		}
		byID[d.ID] = d
	}
	if _, ok := byID[EmptyName]; !ok {
		return nil, fmt.Errorf("missing %s", EmptyName)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		if id == EmptyName {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	// EMPTY is always palette id 0.
	ids = append([]string{EmptyName}, ids...)
	if len(ids) > 64 {
		return nil, fmt.Errorf("palette too large: %d entries (diet mask holds 64)", len(ids))
	}

	c := &Catalog{
		Palette: ids,
		Index:   make(map[string]TypeID, len(ids)),
		Types:   make([]CellType, len(ids)),
	}
	for i, id := range ids {
		c.Index[id] = TypeID(i)
	}
	for i, id := range ids {
		d := byID[id]
		mob, err := parseMobility(d.Mobility)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", id, err)
		}
		var diet DietMask
		for _, prey := range d.Diet {
			pid, ok := c.Index[prey]
			if !ok {
				return nil, fmt.Errorf("type %s: diet references unknown type %s", id, prey)
			}
			diet |= 1 << uint64(pid)
		}
		c.Types[i] = CellType{
			ID:             TypeID(i),
			Name:           id,
			BaseEnergy:     d.BaseEnergy,
			Diet:           diet,
			ReproThreshold: d.ReproThreshold,
			MaxLifespan:    d.MaxLifespan,
			UpkeepEnergy:   d.UpkeepEnergy,
			DecayPermille:  d.DecayPermille,
			Mobility:       mob,
		}
	}

	palJSON, _ := json.Marshal(ids)
	c.PaletteDigest = sha256Hex(palJSON)
	return c, nil
}

// Describe returns the descriptor for id. Unregistered ids report
// ErrUnknownType; callers on the tick path treat that as fatal for the tick.
func (c *Catalog) Describe(id TypeID) (CellType, error) {
	if int(id) >= len(c.Types) {
		return CellType{}, fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
	return c.Types[id], nil
}

// Lookup resolves a palette name to its TypeID.
func (c *Catalog) Lookup(name string) (TypeID, bool) {
	id, ok := c.Index[name]
	return id, ok
}

// Len reports the number of palette entries, including the empty slot.
func (c *Catalog) Len() int { return len(c.Types) }

func parseMobility(s string) (MobilityClass, error) {
	switch s {
	case "", "STATIC":
		return MobilityStatic, nil
	case "DRIFTER":
		return MobilityDrifter, nil
	case "ROAMER":
		return MobilityRoamer, nil
	}
	return 0, fmt.Errorf("bad mobility %q", s)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
