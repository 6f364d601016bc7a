package config

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/flyingphish/intune-os-checker/catalog"
	"github.com/flyingphish/intune-os-checker/inventory"
)

// OSFamily binds one OS family to its endoflife.date product, the inventory
// OS cells it claims and the extra output columns it gets.
type OSFamily struct {
	Family  catalog.Family `yaml:"family"`
	Product string         `yaml:"product"`
	Aliases []string       `yaml:"aliases"`
	Extras  []string       `yaml:"extras"`
}

// MatchOS reports whether an inventory OS cell belongs to this family.
func (f OSFamily) MatchOS(osCell string) bool {
	osCell = strings.ToLower(osCell)
	return lo.SomeBy(f.Aliases, func(alias string) bool {
		return strings.Contains(osCell, strings.ToLower(alias))
	})
}

// Default returns the built-in family table.
func Default() []OSFamily {
	return []OSFamily{
		{
			Family:  catalog.Windows,
			Product: "windows",
			Aliases: []string{"windows"},
		},
		{
			Family:  catalog.Android,
			Product: "android",
			Aliases: []string{"android"},
			Extras:  []string{inventory.ColCodename},
		},
		{
			Family:  catalog.IOS,
			Product: "ios",
			Aliases: []string{"ios", "ipados"},
			Extras:  []string{inventory.ColLatest},
		},
		{
			Family:  catalog.MacOS,
			Product: "macos",
			Aliases: []string{"macos", "mac os"},
			Extras:  []string{inventory.ColLatest},
		},
	}
}

// Load returns the family table from a YAML file, or the built-in table when
// path is empty.
func Load(appFs afero.Fs, path string) ([]OSFamily, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := afero.ReadFile(appFs, path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read family config: %w", err)
	}

	var families []OSFamily
	if err := yaml.Unmarshal(b, &families); err != nil {
		return nil, xerrors.Errorf("unable to parse family config: %w", err)
	}
	if len(families) == 0 {
		return nil, xerrors.New("family config lists no families")
	}

	for i, f := range families {
		if !f.Family.Known() {
			return nil, xerrors.Errorf("unknown OS family %q", f.Family)
		}
		if f.Product == "" {
			return nil, xerrors.Errorf("family %s: product must be set", f.Family)
		}
		if len(f.Aliases) == 0 {
			families[i].Aliases = []string{strings.ToLower(string(f.Family))}
		}
		for _, extra := range f.Extras {
			if extra != inventory.ColCodename && extra != inventory.ColLatest {
				return nil, xerrors.Errorf("family %s: unknown extra column %q", f.Family, extra)
			}
		}
	}
	return families, nil
}
