package kll

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a keymap fails validation.
var ErrInvalid = errors.New("kll: invalid keymap")

// File is the on-disk keymap description.
type File struct {
	Name       string          `yaml:"name" toml:"name"`
	Layers     []LayerFile     `yaml:"layers" toml:"layers"`
	Animations []AnimationFile `yaml:"animations" toml:"animations"`
}

// AnimationFile declares a pixel animation the keymap can start.
type AnimationFile struct {
	Name   string `yaml:"name" toml:"name"`
	Frames int    `yaml:"frames" toml:"frames"`
	Loop   bool   `yaml:"loop" toml:"loop"`
}

// LayerFile describes one layer.
type LayerFile struct {
	Name  string `yaml:"name" toml:"name"`
	First *uint8 `yaml:"first" toml:"first"`
	Last  *uint8 `yaml:"last" toml:"last"`
	// Map holds the trigger -> result bindings of this layer.
	Map []BindingFile `yaml:"map" toml:"map"`
}

// BindingFile is a single trigger -> result binding.
type BindingFile struct {
	Name      string `yaml:"name" toml:"name"`
	Trigger   string `yaml:"trigger" toml:"trigger"`
	Result    string `yaml:"result" toml:"result"`
	Scheduled bool   `yaml:"scheduled" toml:"scheduled"`
}

// Load reads a keymap from path. The format is chosen by extension:
// .yaml/.yml or .toml.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("kll: unsupported keymap format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("kll: parse %s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Compile(f)
}

// Compile turns a keymap description into the tables used by the engines.
// Identical result expressions share one ResultMacro.
func Compile(f File) (*Map, error) {
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalid)
	}
	m := &Map{Name: f.Name}
	results := make(map[string]ResultIndex)

	for ai, af := range f.Animations {
		a := Animation{Name: af.Name, Frames: af.Frames, Loop: af.Loop}
		if a.Name == "" {
			a.Name = fmt.Sprintf("animation%d", ai)
		}
		m.Animations = append(m.Animations, a)
	}

	for li, lf := range f.Layers {
		layer := Layer{
			Name:     lf.Name,
			First:    0x00,
			Last:     0xFF,
			Triggers: make(map[TriggerKey][]TriggerIndex),
		}
		if layer.Name == "" {
			layer.Name = fmt.Sprintf("layer%d", li)
		}
		if lf.First != nil {
			layer.First = *lf.First
		}
		if lf.Last != nil {
			layer.Last = *lf.Last
		}

		for bi, b := range lf.Map {
			combos, err := ParseTrigger(b.Trigger)
			if err != nil {
				return nil, fmt.Errorf("layer %d binding %d (%s): %w", li, bi, b.Trigger, err)
			}
			resKey := fmt.Sprintf("%t|%s", b.Scheduled, b.Result)
			ri, ok := results[resKey]
			if !ok {
				rc, err := ParseResult(b.Result)
				if err != nil {
					return nil, fmt.Errorf("layer %d binding %d (%s): %w", li, bi, b.Result, err)
				}
				ri = ResultIndex(len(m.Results))
				m.Results = append(m.Results, ResultMacro{Name: b.Result, Guide: rc, Scheduled: b.Scheduled})
				results[resKey] = ri
			}

			name := b.Name
			if name == "" {
				name = fmt.Sprintf("%s : %s", b.Trigger, b.Result)
			}
			ti := TriggerIndex(len(m.Triggers))
			m.Triggers = append(m.Triggers, TriggerMacro{Name: name, Guide: combos, Result: ri})

			seen := make(map[TriggerKey]bool)
			for _, c := range combos {
				for _, g := range c {
					k := g.Key()
					if seen[k] {
						continue
					}
					seen[k] = true
					layer.Triggers[k] = append(layer.Triggers[k], ti)
				}
			}
		}
		m.Layers = append(m.Layers, layer)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks cross references between the tables.
func (m *Map) Validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalid)
	}
	if len(m.Layers) > 0xFF {
		return fmt.Errorf("%w: %d layers, at most 255 supported", ErrInvalid, len(m.Layers))
	}
	for i, t := range m.Triggers {
		if len(t.Guide) == 0 {
			return fmt.Errorf("%w: trigger %d (%s) has no combos", ErrInvalid, i, t.Name)
		}
		for ci, c := range t.Guide {
			if len(c) == 0 {
				return fmt.Errorf("%w: trigger %d (%s) combo %d is empty", ErrInvalid, i, t.Name, ci)
			}
		}
		if int(t.Result) >= len(m.Results) {
			return fmt.Errorf("%w: trigger %d (%s) references result %d", ErrInvalid, i, t.Name, t.Result)
		}
	}
	for i, r := range m.Results {
		if len(r.Guide) == 0 {
			return fmt.Errorf("%w: result %d (%s) has no combos", ErrInvalid, i, r.Name)
		}
		for _, c := range r.Guide {
			for _, cp := range c {
				if l, ok := capabilityLayer(cp); ok && int(l) >= len(m.Layers) {
					return fmt.Errorf("%w: result %d (%s) references layer %d", ErrInvalid, i, r.Name, l)
				}
				if a, ok := cp.(AnimationCap); ok && int(a.Index) >= len(m.Animations) {
					return fmt.Errorf("%w: result %d (%s) references animation %d", ErrInvalid, i, r.Name, a.Index)
				}
			}
		}
	}
	for i, a := range m.Animations {
		if a.Frames <= 0 {
			return fmt.Errorf("%w: animation %d (%s) has no frames", ErrInvalid, i, a.Name)
		}
	}
	for i, l := range m.Layers {
		if l.First > l.Last {
			return fmt.Errorf("%w: layer %d (%s) first 0x%02x > last 0x%02x", ErrInvalid, i, l.Name, l.First, l.Last)
		}
		for k, list := range l.Triggers {
			for _, ti := range list {
				if int(ti) >= len(m.Triggers) {
					return fmt.Errorf("%w: layer %d key %v references trigger %d", ErrInvalid, i, k, ti)
				}
			}
		}
	}
	return nil
}

func capabilityLayer(c Capability) (LayerIndex, bool) {
	switch v := c.(type) {
	case LayerShiftCap:
		return v.Layer, true
	case LayerLatchCap:
		return v.Layer, true
	case LayerLockCap:
		return v.Layer, true
	case LayerStateCap:
		return v.Layer, true
	}
	return 0, false
}
