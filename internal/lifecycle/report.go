package lifecycle

import (
	"go.uber.org/multierr"
)

// Action is what happened to one machine during a batch operation.
type Action string

const (
	// ActionCreated means the machine was created and is running.
	ActionCreated Action = "created"
	// ActionUnchanged means the machine was already running.
	ActionUnchanged Action = "unchanged"
	// ActionDestroyed means the machine's domain and volumes were
	// removed.
	ActionDestroyed Action = "destroyed"
	// ActionRemoved means only the record entry was dropped; there was
	// no domain to destroy.
	ActionRemoved Action = "removed"
	// ActionFailed means the backend operation failed and the record
	// was rolled back to the machine's previous stable state.
	ActionFailed Action = "failed"
	// ActionTimedOut means the operation did not finish within the
	// deadline. The machine keeps its transient state and is
	// reconciled on the next invocation.
	ActionTimedOut Action = "timed out"
)

// Outcome is the result of a batch operation for one machine.
type Outcome struct {
	Machine string
	Action  Action
	Err     error
}

// Report collects per-machine outcomes of an Up or Destroy batch.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Err aggregates the per-machine errors, or returns nil if every
// machine succeeded.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			err = multierr.Append(err, o.Err)
		}
	}
	return err
}
