// Package lifecycle drives clusters between their recorded state and
// the hypervisor's actual state.
//
// The Controller owns the cluster record: it acquires the record lock,
// reconciles transient states left behind by interrupted invocations,
// fans machine operations out to the backend, and persists every state
// transition so a crash at any point leaves evidence rather than a
// lie. The backend (normally vm.Backend) is only ever asked to act on
// one machine at a time.
package lifecycle
