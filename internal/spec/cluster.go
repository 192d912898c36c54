package spec

// ClusterSpec is the ordered set of machines described by one
// invocation. It is always non-empty: an empty argument list means one
// machine with all defaults.
type ClusterSpec struct {
	Machines []MachineSpec `json:"machines" yaml:"machines"`
}

// Names returns the machine names in cluster order.
func (c *ClusterSpec) Names() []string {
	names := make([]string, len(c.Machines))
	for i, m := range c.Machines {
		names[i] = m.Name
	}
	return names
}

// Machine returns the machine with the given name, if present.
func (c *ClusterSpec) Machine(name string) (MachineSpec, bool) {
	for _, m := range c.Machines {
		if m.Name == name {
			return m, true
		}
	}
	return MachineSpec{}, false
}

// run accumulates the tokens for one machine while splitting.
type run struct {
	name   string
	tokens []positioned
}

// Parse turns the full argument list into a ClusterSpec.
//
// The list is split into per-machine runs at every group separator and
// at every name marker. A marker names the run it starts; when the
// current run is fresh (nothing in it yet, no name) the marker names it
// in place, so ":a 2G -- :b 4G" and ":a 2G :b 4G" both mean two
// machines. Tokens within a run are order-independent. An empty run, a
// stray separator, or no arguments at all produce a machine with all
// defaults.
func Parse(args []string) (*ClusterSpec, error) {
	runs := []run{{}}
	for i, arg := range args {
		tok := Classify(arg)
		pos := i + 1
		switch tok.Kind {
		case KindGroupSeparator:
			runs = append(runs, run{})
		case KindNameMarker:
			// A marker names a fresh run in place: the implicit
			// first run, or the one a separator just opened. In any
			// other position it closes the current run and starts
			// the next.
			last := &runs[len(runs)-1]
			if last.name == "" && len(last.tokens) == 0 {
				last.name = tok.Name
				continue
			}
			runs = append(runs, run{name: tok.Name})
		default:
			last := &runs[len(runs)-1]
			last.tokens = append(last.tokens, positioned{tok: tok, pos: pos})
		}
	}

	cluster := &ClusterSpec{Machines: make([]MachineSpec, 0, len(runs))}
	seen := make(map[string]struct{}, len(runs))
	for i, r := range runs {
		m, err := buildMachine(r.name, i, r.tokens)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[m.Name]; dup {
			return nil, newDuplicateMachineName(m.Name)
		}
		seen[m.Name] = struct{}{}
		cluster.Machines = append(cluster.Machines, m)
	}
	return cluster, nil
}
