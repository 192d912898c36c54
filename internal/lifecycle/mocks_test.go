package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"spinup/internal/config"
	"spinup/internal/spec"
	"spinup/internal/state"
	"spinup/internal/vm"
)

var testIdentity = state.Identity{
	ID:  "3f29ab4c87d1",
	Dir: "/home/dev/project",
}

// mockBackend is a mock implementation of the backend interface for
// testing.
type mockBackend struct {
	mu sync.Mutex

	// Configurable behavior
	createFunc  func(ctx context.Context, machine spec.MachineSpec) (*vm.CreateResult, error)
	destroyFunc func(ctx context.Context, name string) error
	queryFunc   func(ctx context.Context, name string) (vm.Status, error)
	addressFunc func(ctx context.Context, name string) (string, error)
	listFunc    func(ctx context.Context) ([]vm.Info, error)

	// Call tracking
	createCalls  []string
	destroyCalls []string
	queryCalls   []string
	addressCalls []string
	listCalls    int
}

func newMockBackend() *mockBackend {
	return &mockBackend{}
}

// defaultCreateResult is what Create returns when no createFunc is
// configured; overrides reuse it for their success paths.
func defaultCreateResult(machine spec.MachineSpec) *vm.CreateResult {
	return &vm.CreateResult{
		UUID: fmt.Sprintf("00000000-0000-4000-8000-%012x", len(machine.Name)),
		MACs: []string{"be:ef:0a:00:00:01"},
	}
}

func (m *mockBackend) Create(ctx context.Context, machine spec.MachineSpec) (*vm.CreateResult, error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, machine.Name)
	fn := m.createFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, machine)
	}
	return defaultCreateResult(machine), nil
}

func (m *mockBackend) Destroy(ctx context.Context, name string) error {
	m.mu.Lock()
	m.destroyCalls = append(m.destroyCalls, name)
	fn := m.destroyFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, name)
	}
	return nil
}

func (m *mockBackend) Query(ctx context.Context, name string) (vm.Status, error) {
	m.mu.Lock()
	m.queryCalls = append(m.queryCalls, name)
	fn := m.queryFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, name)
	}
	return vm.StatusNotFound, nil
}

func (m *mockBackend) Address(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.addressCalls = append(m.addressCalls, name)
	fn := m.addressFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, name)
	}
	return "192.168.122.50", nil
}

func (m *mockBackend) List(ctx context.Context) ([]vm.Info, error) {
	m.mu.Lock()
	m.listCalls++
	fn := m.listFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil, nil
}

// newTestController wires a controller to a mock backend and a real
// store in a temp directory.
func newTestController(t *testing.T) (*Controller, *mockBackend) {
	t.Helper()

	st, err := state.NewStore(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	mb := newMockBackend()
	cfg := &config.Config{
		Workers:   4,
		OpTimeout: 5 * time.Second,
	}
	c := NewController(mb, st, testIdentity, cfg)
	c.log = zap.NewNop()
	c.pollInterval = 10 * time.Millisecond
	return c, mb
}

// parseCluster builds a cluster spec from CLI tokens, failing the test
// on parse errors.
func parseCluster(t *testing.T, args ...string) *spec.ClusterSpec {
	t.Helper()
	cs, err := spec.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cs
}

// machineEntry builds a record entry with defaults in the given state.
func machineEntry(name string, st state.MachineState) *state.MachineRecord {
	m := state.NewMachineRecord(spec.MachineSpec{
		Name:        name,
		MemoryBytes: spec.DefaultMemoryBytes,
		CPUCount:    spec.DefaultCPUCount,
		DiskBytes:   spec.DefaultDiskBytes,
		Variant:     spec.DefaultVariant,
	})
	m.State = st
	if st == state.StateRunning {
		m.UUID = fmt.Sprintf("00000000-0000-4000-8000-%012x", len(name))
		m.MACs = []string{"be:ef:0a:00:00:01"}
	}
	return m
}

// seedRecord saves a cluster record holding the given entries.
func seedRecord(t *testing.T, c *Controller, entries ...*state.MachineRecord) {
	t.Helper()
	rec := state.NewClusterRecord(c.ident)
	for _, m := range entries {
		rec.Upsert(m)
	}
	if err := c.store.Save(rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

// loadRecord reads the cluster record back from the store.
func loadRecord(t *testing.T, c *Controller) (*state.ClusterRecord, bool) {
	t.Helper()
	rec, found, err := c.store.Load(c.ident.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return rec, found
}

// outcomeFor finds the report outcome for one machine; batch outcomes
// arrive in worker completion order.
func outcomeFor(t *testing.T, report *Report, machine string) Outcome {
	t.Helper()
	for _, o := range report.Outcomes {
		if o.Machine == machine {
			return o
		}
	}
	t.Fatalf("no outcome for machine %q in %+v", machine, report.Outcomes)
	return Outcome{}
}
