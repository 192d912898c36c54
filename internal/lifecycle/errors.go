package lifecycle

import (
	"fmt"
	"strings"
)

// ResolutionErrorKind classifies why a machine name could not be
// resolved against the cluster record.
type ResolutionErrorKind int

const (
	// UnknownMachine means the name (or the directory) has no record.
	UnknownMachine ResolutionErrorKind = iota
	// AmbiguousTarget means the name was omitted but the cluster has
	// more than one machine.
	AmbiguousTarget
)

// ResolutionError reports a machine name that could not be resolved.
// Candidates, when set, lists the names that do exist.
type ResolutionError struct {
	Kind       ResolutionErrorKind
	Name       string
	Candidates []string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case AmbiguousTarget:
		return fmt.Sprintf("multiple machines recorded (%s), specify one", strings.Join(e.Candidates, ", "))
	default:
		if e.Name == "" {
			return "no machines recorded for this directory"
		}
		if len(e.Candidates) > 0 {
			return fmt.Sprintf("unknown machine %q, known machines: %s", e.Name, strings.Join(e.Candidates, ", "))
		}
		return fmt.Sprintf("unknown machine %q", e.Name)
	}
}

// BackendError wraps a hypervisor operation failure with the machine
// and operation it belongs to, so aggregated batch errors stay
// readable.
type BackendError struct {
	Op      string
	Machine string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Machine, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
