package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"spinup/internal/config"
	"spinup/internal/logging"
	"spinup/internal/spec"
	"spinup/internal/state"
	"spinup/internal/vm"
)

// addressPollInterval is how often Address re-queries the DHCP lease
// table while waiting for a guest to show up.
const addressPollInterval = 2 * time.Second

// backend is the per-machine hypervisor surface the controller drives.
type backend interface {
	// Create provisions one machine and starts it.
	Create(ctx context.Context, machine spec.MachineSpec) (*vm.CreateResult, error)
	// Destroy stops one machine and removes its domain and volumes.
	Destroy(ctx context.Context, name string) error
	// Query reports whether the machine's domain exists and runs.
	Query(ctx context.Context, name string) (vm.Status, error)
	// Address returns the machine's IPv4 address from the lease table,
	// or "" when no lease exists yet.
	Address(ctx context.Context, name string) (string, error)
	// List returns the domains owned by this cluster.
	List(ctx context.Context) ([]vm.Info, error)
}

// Controller executes cluster operations against the backend while
// keeping the cluster record truthful at every step.
type Controller struct {
	backend backend
	store   *state.Store
	ident   state.Identity
	cfg     *config.Config
	log     *zap.Logger

	// mu serializes record mutation and saving while a batch fans out
	// across workers.
	mu sync.Mutex

	pollInterval time.Duration
}

// NewController wires a controller for the given cluster identity.
func NewController(b backend, store *state.Store, ident state.Identity, cfg *config.Config) *Controller {
	return &Controller{
		backend:      b,
		store:        store,
		ident:        ident,
		cfg:          cfg,
		log:          logging.Logger().Named("lifecycle"),
		pollInterval: addressPollInterval,
	}
}

// Up brings the cluster to the desired spec: every machine in the spec
// ends up running, machines already running are left alone. Creates
// run concurrently. The returned report carries one outcome per
// machine from the spec; the error aggregates the failures.
func (c *Controller) Up(ctx context.Context, cluster *spec.ClusterSpec) (*Report, error) {
	unlock, err := c.store.Acquire(ctx, c.ident.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		rec = state.NewClusterRecord(c.ident)
	}

	if err := c.reconcile(ctx, rec); err != nil {
		return nil, err
	}

	report := &Report{}

	// A machine still marked Creating after reconciliation has an
	// inactive half-built domain behind it; tear that down before
	// creating it again.
	type target struct {
		machine      spec.MachineSpec
		destroyFirst bool
	}
	var targets []target
	for _, name := range cluster.Names() {
		m, _ := cluster.Machine(name)
		existing, ok := rec.Machine(name)
		if ok && existing.State == state.StateRunning {
			report.add(Outcome{Machine: name, Action: ActionUnchanged})
			continue
		}
		destroyFirst := ok && existing.State == state.StateCreating
		fresh := state.NewMachineRecord(m)
		c.setState(fresh, state.StateCreating)
		rec.Upsert(fresh)
		targets = append(targets, target{machine: m, destroyFirst: destroyFirst})
	}
	if len(targets) == 0 {
		return report, nil
	}

	// Persist the Creating marks before touching the hypervisor so an
	// interrupted run leaves evidence.
	if err := c.store.Save(rec); err != nil {
		return nil, err
	}

	pool := pond.NewPool(c.workers(len(targets)))
	for _, t := range targets {
		pool.Submit(func() {
			o := c.createOne(ctx, rec, t.machine, t.destroyFirst)
			c.mu.Lock()
			report.add(o)
			c.mu.Unlock()
		})
	}
	pool.StopAndWait()

	return report, report.Err()
}

// createOne runs a single machine create under the operation deadline
// and records the resulting state. The hypervisor calls cannot be
// interrupted mid-flight, so on timeout the machine stays Creating for
// the next invocation to reconcile.
func (c *Controller) createOne(ctx context.Context, rec *state.ClusterRecord, machine spec.MachineSpec, destroyFirst bool) Outcome {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	type result struct {
		res *vm.CreateResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		if destroyFirst {
			if err := c.backend.Destroy(opCtx, machine.Name); err != nil && !errors.Is(err, vm.ErrNotFound) {
				done <- result{err: fmt.Errorf("failed to remove leftover domain: %w", err)}
				return
			}
		}
		res, err := c.backend.Create(opCtx, machine)
		done <- result{res: res, err: err}
	}()

	select {
	case <-opCtx.Done():
		c.log.Warn("create timed out",
			zap.String("machine", machine.Name),
			zap.Duration("timeout", c.cfg.OpTimeout))
		return Outcome{
			Machine: machine.Name,
			Action:  ActionTimedOut,
			Err:     &BackendError{Op: "create", Machine: machine.Name, Err: opCtx.Err()},
		}
	case r := <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		mrec, ok := rec.Machine(machine.Name)
		if !ok {
			// Cannot happen: the entry was upserted before dispatch.
			return Outcome{
				Machine: machine.Name,
				Action:  ActionFailed,
				Err:     &BackendError{Op: "create", Machine: machine.Name, Err: errors.New("record entry disappeared")},
			}
		}
		if r.err != nil {
			c.setState(mrec, state.StateAbsent)
			c.saveLocked(rec)
			return Outcome{
				Machine: machine.Name,
				Action:  ActionFailed,
				Err:     &BackendError{Op: "create", Machine: machine.Name, Err: r.err},
			}
		}
		mrec.UUID = r.res.UUID
		mrec.MACs = r.res.MACs
		mrec.Address = mrec.StaticAddress()
		c.setState(mrec, state.StateRunning)
		c.saveLocked(rec)
		c.log.Info("machine created",
			zap.String("machine", machine.Name),
			zap.String("uuid", r.res.UUID))
		return Outcome{Machine: machine.Name, Action: ActionCreated}
	}
}

// Destroy removes the named machine, or every recorded machine when
// name is empty. Machines whose destroy fails keep their record entry;
// the rest are still attempted. When the last machine is gone the
// cluster record itself is removed.
func (c *Controller) Destroy(ctx context.Context, name string) (*Report, error) {
	unlock, err := c.store.Acquire(ctx, c.ident.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		if name == "" {
			// Nothing recorded, nothing to do.
			return &Report{}, nil
		}
		return nil, &ResolutionError{Kind: UnknownMachine, Name: name}
	}

	// Resolve against the record as it was saved; reconciliation may
	// drop entries whose destroy already finished, and those should
	// report as removed rather than unknown.
	var targets []string
	if name != "" {
		if _, ok := rec.Machine(name); !ok {
			return nil, &ResolutionError{Kind: UnknownMachine, Name: name, Candidates: rec.Names()}
		}
		targets = []string{name}
	} else {
		targets = rec.Names()
	}

	if err := c.reconcile(ctx, rec); err != nil {
		return nil, err
	}

	report := &Report{}

	// Entries without a domain behind them only need the record entry
	// dropped.
	var live []string
	for _, n := range targets {
		mrec, ok := rec.Machine(n)
		if !ok {
			report.add(Outcome{Machine: n, Action: ActionRemoved})
			continue
		}
		if mrec.State == state.StateAbsent {
			rec.Remove(n)
			report.add(Outcome{Machine: n, Action: ActionRemoved})
			continue
		}
		c.setState(mrec, state.StateDestroying)
		live = append(live, n)
	}
	if err := c.store.Save(rec); err != nil {
		return nil, err
	}

	if len(live) > 0 {
		pool := pond.NewPool(c.workers(len(live)))
		for _, n := range live {
			pool.Submit(func() {
				o := c.destroyOne(ctx, rec, n)
				c.mu.Lock()
				report.add(o)
				c.mu.Unlock()
			})
		}
		pool.StopAndWait()
	}

	if rec.Empty() {
		if err := c.store.Remove(c.ident.ID); err != nil {
			return report, multierr.Append(report.Err(), err)
		}
		c.log.Info("cluster record removed", zap.String("cluster", c.ident.ID))
	}
	return report, report.Err()
}

// destroyOne runs a single machine destroy under the operation
// deadline. A domain that is already gone counts as destroyed; any
// other failure rolls the record back to Running so the machine stays
// targetable.
func (c *Controller) destroyOne(ctx context.Context, rec *state.ClusterRecord, name string) Outcome {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.backend.Destroy(opCtx, name) }()

	select {
	case <-opCtx.Done():
		c.log.Warn("destroy timed out",
			zap.String("machine", name),
			zap.Duration("timeout", c.cfg.OpTimeout))
		return Outcome{
			Machine: name,
			Action:  ActionTimedOut,
			Err:     &BackendError{Op: "destroy", Machine: name, Err: opCtx.Err()},
		}
	case err := <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil && !errors.Is(err, vm.ErrNotFound) {
			if mrec, ok := rec.Machine(name); ok {
				c.setState(mrec, state.StateRunning)
			}
			c.saveLocked(rec)
			return Outcome{
				Machine: name,
				Action:  ActionFailed,
				Err:     &BackendError{Op: "destroy", Machine: name, Err: err},
			}
		}
		rec.Remove(name)
		c.saveLocked(rec)
		c.log.Info("machine destroyed", zap.String("machine", name))
		return Outcome{Machine: name, Action: ActionDestroyed}
	}
}

// reconcile resolves transient states left by an interrupted or timed
// out invocation by asking the hypervisor what actually exists. A
// machine marked Creating whose domain runs becomes Running; one whose
// domain is gone becomes Absent. A machine marked Destroying whose
// domain is gone loses its entry; one whose domain survives goes back
// to Running.
func (c *Controller) reconcile(ctx context.Context, rec *state.ClusterRecord) error {
	changed := false
	for _, name := range rec.Names() {
		mrec, ok := rec.Machine(name)
		if !ok || !mrec.State.Transitioning() {
			continue
		}
		status, err := c.backend.Query(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to reconcile %q: %w", name, err)
		}
		from := mrec.State
		switch mrec.State {
		case state.StateCreating:
			switch status {
			case vm.StatusActive:
				c.setState(mrec, state.StateRunning)
				changed = true
			case vm.StatusNotFound, vm.StatusForeign:
				c.setState(mrec, state.StateAbsent)
				changed = true
			case vm.StatusInactive:
				// Half-built domain; Up tears it down and recreates.
			}
		case state.StateDestroying:
			if status == vm.StatusNotFound || status == vm.StatusForeign {
				rec.Remove(name)
			} else {
				c.setState(mrec, state.StateRunning)
			}
			changed = true
		}
		c.log.Debug("reconciled machine",
			zap.String("machine", name),
			zap.String("from", string(from)),
			zap.String("status", status.String()))
	}
	if changed {
		return c.store.Save(rec)
	}
	return nil
}

// Resolve maps an optional machine name to a concrete recorded
// machine. An empty name resolves only when the cluster has exactly
// one machine.
func (c *Controller) Resolve(name string) (string, error) {
	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &ResolutionError{Kind: UnknownMachine, Name: name}
	}
	if name != "" {
		if _, ok := rec.Machine(name); !ok {
			return "", &ResolutionError{Kind: UnknownMachine, Name: name, Candidates: rec.Names()}
		}
		return name, nil
	}
	names := rec.Names()
	switch len(names) {
	case 0:
		return "", &ResolutionError{Kind: UnknownMachine}
	case 1:
		return names[0], nil
	default:
		return "", &ResolutionError{Kind: AmbiguousTarget, Candidates: names}
	}
}

// Machine returns the named machine's record entry.
func (c *Controller) Machine(name string) (*state.MachineRecord, error) {
	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ResolutionError{Kind: UnknownMachine, Name: name}
	}
	mrec, ok := rec.Machine(name)
	if !ok {
		return nil, &ResolutionError{Kind: UnknownMachine, Name: name, Candidates: rec.Names()}
	}
	return mrec, nil
}

// Address returns the machine's reachable IPv4 address: the static
// address from the record when it has one, otherwise the DHCP lease,
// polling until the guest obtains one or ctx expires.
func (c *Controller) Address(ctx context.Context, name string) (string, error) {
	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &ResolutionError{Kind: UnknownMachine, Name: name}
	}
	mrec, ok := rec.Machine(name)
	if !ok {
		return "", &ResolutionError{Kind: UnknownMachine, Name: name, Candidates: rec.Names()}
	}
	if addr := mrec.StaticAddress(); addr != "" {
		return addr, nil
	}

	for {
		addr, err := c.backend.Address(ctx, name)
		if err != nil {
			return "", &BackendError{Op: "address", Machine: name, Err: err}
		}
		if addr != "" {
			return addr, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %q to obtain an address: %w", name, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// MachineStatus pairs a machine's record entry with the hypervisor's
// live view of its domain.
type MachineStatus struct {
	Record *state.MachineRecord
	// Live is the domain state as the hypervisor reports it, or ""
	// when no owned domain exists.
	Live string
}

// ClusterStatus is the full picture of one cluster: the record plus
// the live state of each machine.
type ClusterStatus struct {
	Record   *state.ClusterRecord
	Machines []MachineStatus
}

// Status reports the cluster record annotated with the hypervisor's
// live view. Returns nil when the directory has no record. A backend
// that cannot be reached degrades to record-only output.
func (c *Controller) Status(ctx context.Context) (*ClusterStatus, error) {
	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	live := make(map[string]vm.Info)
	infos, err := c.backend.List(ctx)
	if err != nil {
		c.log.Warn("failed to list live domains", zap.Error(err))
	}
	for _, info := range infos {
		live[info.Name] = info
	}

	status := &ClusterStatus{Record: rec}
	for _, name := range rec.Names() {
		mrec, _ := rec.Machine(name)
		ms := MachineStatus{Record: mrec}
		if info, ok := live[name]; ok {
			ms.Live = info.State
			if mrec.Address == "" && info.State == "running" {
				// Fill the DHCP address for display; the record is not
				// rewritten here.
				if addr, err := c.backend.Address(ctx, name); err == nil {
					mrec.Address = addr
				}
			}
		}
		status.Machines = append(status.Machines, ms)
	}
	return status, nil
}

// setState applies a lifecycle transition, logging any move the state
// machine does not allow.
func (c *Controller) setState(m *state.MachineRecord, next state.MachineState) {
	if m.State != next && !m.State.CanTransition(next) {
		c.log.Warn("irregular state transition",
			zap.String("machine", m.Name),
			zap.String("from", string(m.State)),
			zap.String("to", string(next)))
	}
	m.SetState(next)
}

// saveLocked persists the record mid-batch. Callers hold c.mu; a
// failed save is logged rather than propagated because sibling
// operations are still in flight.
func (c *Controller) saveLocked(rec *state.ClusterRecord) {
	if err := c.store.Save(rec); err != nil {
		c.log.Error("failed to save cluster record", zap.Error(err))
	}
}

func (c *Controller) workers(n int) int {
	w := min(c.cfg.Workers, n)
	if w < 1 {
		w = 1
	}
	return w
}
