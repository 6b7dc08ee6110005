// Package preset builds initial grid configurations from named seeding
// recipes. A recipe assigns each cell type a permille share of the grid;
// the remainder stays empty.
package preset

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrUnknownPreset = errors.New("unknown preset")

type Preset struct {
	Name        string
	Description string
	Densities   map[string]int
}

// Library is an immutable set of presets keyed by name.
type Library struct {
	presets map[string]Preset
}

func (l *Library) Lookup(name string) (Preset, error) {
	p, ok := l.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

func (l *Library) Names() []string {
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fileDoc struct {
	Presets map[string]filePreset `yaml:"presets"`
}

type filePreset struct {
	Description string         `yaml:"description"`
	Densities   map[string]int `yaml:"densities"`
}

// Load reads a preset library from a YAML file.
func Load(path string) (*Library, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(doc.Presets) == 0 {
		return nil, errors.New("preset file declares no presets")
	}
	lib := &Library{presets: make(map[string]Preset, len(doc.Presets))}
	for name, fp := range doc.Presets {
		p := Preset{Name: name, Description: fp.Description, Densities: fp.Densities}
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		lib.presets[name] = p
	}
	return lib, nil
}

func validate(p Preset) error {
	if len(p.Densities) == 0 {
		return errors.New("no density entries")
	}
	sum := 0
	for name, d := range p.Densities {
		if d < 0 || d > 1000 {
			return fmt.Errorf("density %q = %d outside [0,1000]", name, d)
		}
		sum += d
	}
	if sum > 1000 {
		return fmt.Errorf("densities sum to %d permille, above 1000", sum)
	}
	return nil
}

// Builtin returns the compiled-in library, used when no preset file is
// given. Mirrors configs/presets.yaml.
func Builtin() *Library {
	lib := &Library{presets: map[string]Preset{}}
	add := func(name, desc string, densities map[string]int) {
		lib.presets[name] = Preset{Name: name, Description: desc, Densities: densities}
	}
	add("balanced", "even mix of flora, grazers and predators", map[string]int{
		"GREEN": 180, "ORANGE": 60, "CYAN": 40, "BROWN": 50, "TAN": 30,
		"PINK": 20, "CRIMSON": 15, "RED": 10, "PURPLE": 20, "GRAY": 10,
	})
	add("dense_forest", "flora-dominated world with sparse grazers", map[string]int{
		"GREEN": 350, "ORANGE": 120, "CYAN": 80, "LIME": 60, "PEACH": 40,
		"BROWN": 30, "TAN": 20,
	})
	add("plague_outbreak", "heavy decay pressure across all kinds", map[string]int{
		"GREEN": 150, "YELLOW": 80, "OLIVE": 60, "SMOKE": 50, "GLINT": 40,
		"GRAY": 40, "BROWN": 40, "CRIMSON": 20,
	})
	add("predator_heavy", "predators outnumber their prey", map[string]int{
		"CRIMSON": 80, "MAROON": 40, "SHADE": 40, "CORAL": 30, "BROWN": 60,
		"TAN": 40, "GREEN": 120, "ORANGE": 40,
	})
	add("scarce_resources", "thin flora cover, starvation likely", map[string]int{
		"GREEN": 40, "SLATE": 30, "BROWN": 40, "TAN": 30, "CRIMSON": 15,
	})
	add("recovery", "aftermath world reseeded from survivors", map[string]int{
		"GREEN": 100, "GRAY": 120, "RUST": 60, "KHAKI": 40, "MINT": 40,
		"GOLD": 30, "BROWN": 20,
	})
	add("sparse_genesis", "near-empty world with a few founders", map[string]int{
		"GREEN": 25, "CYAN": 10, "BROWN": 8, "CRIMSON": 3,
	})
	return lib
}
