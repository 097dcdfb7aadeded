package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kiibohd/controller/macro/kll"
	"github.com/kiibohd/controller/macro/result"
)

// Capabilities lists the capabilities known to the engine, or the ones a
// keymap uses.
type Capabilities struct {
	Keymap string `arg:"" optional:"" help:"Keymap file; lists its capabilities instead of all of them" type:"existingfile"`
	Debug  bool   `help:"Also invoke every capability in debug state, which logs its name"`
}

// Run is called by Kong when the capabilities command is executed.
func (c *Capabilities) Run(logger *slog.Logger) error {
	m := &kll.Map{}
	caps := kll.Capabilities()
	if c.Keymap != "" {
		var err error
		if m, err = kll.Load(c.Keymap); err != nil {
			return err
		}
		caps = used(m)
	}
	engine := result.New(m, result.Handlers{}, result.Options{Logger: logger})

	for i, cp := range caps {
		fmt.Fprintf(os.Stdout, "%3d %s %s\n", i, result.Describe(cp), cp)
		if c.Debug {
			engine.Invoke(cp, result.Invocation{State: kll.CapabilityDebug})
		}
	}
	return nil
}

// used returns the distinct capabilities referenced by the results of m, in
// first-use order.
func used(m *kll.Map) []kll.Capability {
	seen := make(map[kll.Capability]bool)
	var out []kll.Capability
	for _, r := range m.Results {
		for _, combo := range r.Guide {
			for _, cp := range combo {
				if seen[cp] {
					continue
				}
				seen[cp] = true
				out = append(out, cp)
			}
		}
	}
	return out
}
