// Package vm implements the hypervisor backend for machines.
//
// The Backend orchestrates the low-level components (storage,
// cloud-init, libvirt, metadata) into per-machine operations:
//
//   - Create: build volumes and a cloud-init seed, define and start a domain
//   - Destroy: gracefully stop a domain, undefine it and remove its volumes
//   - Query: report a single domain's status on the hypervisor
//   - Address: report a machine's first IPv4 address from its DHCP lease
//   - List: enumerate the domains owned by one cluster
//
// Every domain a Backend creates carries an ownership tag in its
// metadata element. Destructive operations check the tag first, so a
// domain that merely shares a machine name with ours is never touched.
//
// Error Handling:
//
// Create uses best-effort cleanup on failure: partially created
// volumes and domains are removed before the error is returned.
// Cleanup errors are logged but do not mask the original failure.
package vm
