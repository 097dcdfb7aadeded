package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiibohd/controller/macro"
	"github.com/kiibohd/controller/macro/kll"
	"github.com/kiibohd/controller/macro/output"
	"github.com/kiibohd/controller/macro/pixel"
)

// Simulate runs a keymap against a scripted sequence of switch transitions
// and prints every HID report change.
type Simulate struct {
	Keymap string        `arg:"" help:"Keymap file (.yaml or .toml)" type:"existingfile"`
	Script string        `arg:"" help:"Event script (.yaml)" type:"existingfile"`
	Period time.Duration `help:"Scan period used when the script does not set one" default:"1ms" env:"KIIBOHD_SCAN_PERIOD"`
	All    bool          `help:"Print every cycle, not only report changes"`
}

// Script is a scripted scan session.
type Script struct {
	Period time.Duration `yaml:"period"`
	Steps  []ScriptStep  `yaml:"steps"`
}

// ScriptStep is one scan cycle. Keys are written like trigger elements
// (S0x04, S2:0x10). Idle repeats the step's holds for that many extra
// cycles.
type ScriptStep struct {
	Press   []string `yaml:"press"`
	Release []string `yaml:"release"`
	Idle    int      `yaml:"idle"`
}

// LoadScript reads an event script.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

func parseKey(s string) (kll.TriggerKey, error) {
	combos, err := kll.ParseTrigger(s)
	if err != nil {
		return kll.TriggerKey{}, err
	}
	if len(combos) != 1 || len(combos[0]) != 1 {
		return kll.TriggerKey{}, fmt.Errorf("%q is not a single key", s)
	}
	return combos[0][0].Key(), nil
}

// Run is called by Kong when the simulate command is executed.
func (c *Simulate) Run(logger *slog.Logger) error {
	m, err := kll.Load(c.Keymap)
	if err != nil {
		return err
	}
	script, err := LoadScript(c.Script)
	if err != nil {
		return err
	}
	if script.Period <= 0 {
		script.Period = c.Period
	}
	logger.Info("Simulating keymap", "keymap", m.Name, "layers", len(m.Layers), "triggers", len(m.Triggers), "steps", len(script.Steps))

	sim := NewSimulation(m, script.Period, logger)
	return sim.Play(script, os.Stdout, c.All)
}

// Simulation drives an engine with a virtual clock.
type Simulation struct {
	Engine *macro.Engine
	Matrix *macro.Matrix
	now    time.Time
	period time.Duration
}

// NewSimulation returns a simulation of m stepping the clock by period.
func NewSimulation(m *kll.Map, period time.Duration, logger *slog.Logger) *Simulation {
	s := &Simulation{
		Matrix: macro.NewMatrix(),
		now:    time.Unix(0, 0),
		period: period,
	}
	s.Engine = macro.New(m, macro.Options{
		Clock: func() time.Time { return s.now },
		Pixel: pixel.ControllerFunc(func(index uint16, frame int) {
			logger.Debug("animation frame", "animation", index, "frame", frame)
		}),
		FlashMode: func() { logger.Info("flash mode requested") },
		Logger:    logger,
	})
	return s
}

// Step runs one cycle with the given transitions.
func (s *Simulation) Step(press, release []kll.TriggerKey) (output.Reports, bool) {
	var events []kll.TriggerEvent
	fresh := make(map[kll.TriggerKey]bool)
	for _, k := range release {
		if ev, ok := s.Matrix.Release(k); ok {
			events = append(events, ev)
		}
	}
	for _, k := range press {
		if ev, ok := s.Matrix.Press(k); ok {
			events = append(events, ev)
			fresh[k] = true
		}
	}
	events = append(events, s.Matrix.Holds(fresh)...)

	r, changed := s.Engine.Cycle(events)
	s.Engine.Pixels.Tick()
	s.now = s.now.Add(s.period)
	return r, changed
}

// Play runs every step of script and writes report changes to w.
func (s *Simulation) Play(script Script, w io.Writer, all bool) error {
	cycle := 0
	for i, st := range script.Steps {
		press, err := parseKeys(st.Press)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		release, err := parseKeys(st.Release)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		for n := 0; n <= st.Idle; n++ {
			var r output.Reports
			var changed bool
			if n == 0 {
				r, changed = s.Step(press, release)
			} else {
				r, changed = s.Step(nil, nil)
			}
			if changed || all {
				_, _ = fmt.Fprintf(w, "%6d keyboard=%s consumer=%s system=%s\n",
					cycle, hex.EncodeToString(r.Keyboard), hex.EncodeToString(r.Consumer), hex.EncodeToString(r.System))
			}
			cycle++
		}
	}
	return nil
}

func parseKeys(in []string) ([]kll.TriggerKey, error) {
	out := make([]kll.TriggerKey, 0, len(in))
	for _, s := range in {
		k, err := parseKey(s)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
