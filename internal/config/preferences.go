// Package config reads the Sal client preferences.
package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPreferencesPath is where the Sal client keeps its preferences.
	DefaultPreferencesPath = "/etc/sal/preferences.yaml"
	// ManagedItemsKey enables reporting of Puppet managed items.
	ManagedItemsKey = "PuppetManagedItems"
)

// Preferences holds the host's preference values.
type Preferences struct {
	values map[string]any
}

// Load reads the preferences file at path. A missing file yields empty
// preferences, so every lookup returns its default.
func Load(fs afero.Fs, path string) (*Preferences, error) {
	p := &Preferences{values: make(map[string]any)}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, errors.Wrapf(err, "read preferences %s", path)
	}

	if err := yaml.Unmarshal(data, &p.values); err != nil {
		return nil, errors.Wrapf(err, "parse preferences %s", path)
	}
	if p.values == nil {
		p.values = make(map[string]any)
	}
	return p, nil
}

// Bool returns the named preference as a bool. Unset values and values that
// cannot be read as a bool return def.
func (p *Preferences) Bool(name string, def bool) bool {
	v, ok := p.values[name]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}
