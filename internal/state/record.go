package state

import (
	"time"

	"spinup/internal/spec"
)

// MachineState is one machine's position in its lifecycle.
//
// Absent and Running are stable. Creating and Destroying are transient:
// they exist so an interrupted invocation leaves evidence behind, and
// they are reconciled against the hypervisor on the next invocation
// rather than trusted.
type MachineState string

const (
	// StateAbsent means no machine resource exists (or should exist).
	StateAbsent MachineState = "absent"
	// StateCreating means a create was started but not confirmed.
	StateCreating MachineState = "creating"
	// StateRunning means the machine was created successfully.
	StateRunning MachineState = "running"
	// StateDestroying means a destroy was started but not confirmed.
	StateDestroying MachineState = "destroying"
)

// Transitioning reports whether the state is transient.
func (s MachineState) Transitioning() bool {
	return s == StateCreating || s == StateDestroying
}

// CanTransition reports whether moving to next is a legal lifecycle
// step: Absent → Creating → Running → Destroying → Absent, plus the
// reconciliation exits out of the transient states.
func (s MachineState) CanTransition(next MachineState) bool {
	switch s {
	case StateAbsent:
		return next == StateCreating
	case StateCreating:
		return next == StateRunning || next == StateAbsent
	case StateRunning:
		return next == StateDestroying
	case StateDestroying:
		return next == StateAbsent || next == StateRunning
	}
	return false
}

// MachineRecord is one machine's entry in a cluster record: the spec
// it was created from, its lifecycle state and the backend handle
// needed to target it later.
type MachineRecord struct {
	Name        string                      `json:"name"`
	UUID        string                      `json:"uuid,omitempty"`
	State       MachineState                `json:"state"`
	Variant     string                      `json:"variant"`
	MemoryBytes uint64                      `json:"memory_bytes"`
	CPUCount    int                         `json:"cpu_count"`
	DiskBytes   uint64                      `json:"disk_bytes"`
	Interfaces  []spec.NetworkInterfaceSpec `json:"interfaces,omitempty"`
	MACs        []string                    `json:"macs,omitempty"`
	Address     string                      `json:"address,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// NewMachineRecord seeds a record entry from a machine spec, in state
// Absent.
func NewMachineRecord(m spec.MachineSpec) *MachineRecord {
	now := time.Now().UTC()
	return &MachineRecord{
		Name:        m.Name,
		State:       StateAbsent,
		Variant:     m.Variant,
		MemoryBytes: m.MemoryBytes,
		CPUCount:    m.CPUCount,
		DiskBytes:   m.DiskBytes,
		Interfaces:  m.Interfaces,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetState moves the machine to next and bumps the update time.
// Transition legality is the controller's business, via CanTransition.
func (m *MachineRecord) SetState(next MachineState) {
	m.State = next
	m.UpdatedAt = time.Now().UTC()
}

// StaticAddress returns the machine's first static interface address,
// or "".
func (m *MachineRecord) StaticAddress() string {
	for _, nic := range m.Interfaces {
		if nic.Mode == spec.ModeStatic {
			return nic.Address
		}
	}
	return ""
}

// ClusterRecord is the durable record of one directory's cluster.
// Machines keep their creation order.
type ClusterRecord struct {
	ID        string           `json:"id"`
	Directory string           `json:"directory"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Machines  []*MachineRecord `json:"machines"`
}

// NewClusterRecord creates an empty record for the given identity.
func NewClusterRecord(ident Identity) *ClusterRecord {
	now := time.Now().UTC()
	return &ClusterRecord{
		ID:        ident.ID,
		Directory: ident.Dir,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Machine returns the entry with the given name, if present.
func (r *ClusterRecord) Machine(name string) (*MachineRecord, bool) {
	for _, m := range r.Machines {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Upsert replaces the entry with the same name or appends a new one.
func (r *ClusterRecord) Upsert(m *MachineRecord) {
	for i, existing := range r.Machines {
		if existing.Name == m.Name {
			r.Machines[i] = m
			return
		}
	}
	r.Machines = append(r.Machines, m)
}

// Remove drops the entry with the given name, reporting whether it was
// present.
func (r *ClusterRecord) Remove(name string) bool {
	for i, m := range r.Machines {
		if m.Name == name {
			r.Machines = append(r.Machines[:i], r.Machines[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the machine names in record order.
func (r *ClusterRecord) Names() []string {
	names := make([]string, len(r.Machines))
	for i, m := range r.Machines {
		names[i] = m.Name
	}
	return names
}

// Empty reports whether no machines remain.
func (r *ClusterRecord) Empty() bool {
	return len(r.Machines) == 0
}
