package vm

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"spinup/internal/metadata"
)

// ipAddrTypeIPv4 is libvirt's VIR_IP_ADDR_TYPE_IPV4.
const ipAddrTypeIPv4 = 0

// Status is what the hypervisor knows about one machine name.
type Status int

const (
	// StatusNotFound means no domain with this name exists.
	StatusNotFound Status = iota
	// StatusForeign means a domain exists but belongs to someone else.
	StatusForeign
	// StatusInactive means the cluster's domain is defined but not running.
	StatusInactive
	// StatusActive means the cluster's domain is running.
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not found"
	case StatusForeign:
		return "foreign"
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Query reports a machine's status on the hypervisor. A failed name
// lookup is reported as not found, matching how libvirt signals a
// missing domain.
func (b *Backend) Query(ctx context.Context, machine string) (Status, error) {
	dom, err := b.lv.DomainLookupByName(machine)
	if err != nil {
		return StatusNotFound, nil
	}

	if !metadata.Owned(b.lv, dom, b.cluster) {
		return StatusForeign, nil
	}

	state, _, err := b.lv.DomainGetState(dom, 0)
	if err != nil {
		return StatusNotFound, fmt.Errorf("failed to get domain state: %w", err)
	}
	if state == domainStateRunning {
		return StatusActive, nil
	}
	return StatusInactive, nil
}

// Address returns the machine's first IPv4 address from the
// hypervisor's DHCP lease table, or "" while no lease exists yet.
// Static addresses never show up here; callers read those from the
// cluster record instead.
func (b *Backend) Address(ctx context.Context, machine string) (string, error) {
	dom, err := b.lv.DomainLookupByName(machine)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, machine)
	}

	ifaces, err := b.lv.DomainInterfaceAddresses(dom, uint32(libvirt.DomainInterfaceAddressesSrcLease), 0)
	if err != nil {
		return "", fmt.Errorf("failed to query interface addresses: %w", err)
	}

	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if addr.Type == ipAddrTypeIPv4 && addr.Addr != "" {
				return addr.Addr, nil
			}
		}
	}
	return "", nil
}
