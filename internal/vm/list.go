package vm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"spinup/internal/metadata"
)

// Info describes one cluster-owned domain as the hypervisor sees it.
type Info struct {
	Name    string
	Variant string
	State   string
}

// List returns the domains owned by this cluster, active and inactive.
// Domains without our ownership tag, or tagged for another cluster,
// are skipped.
func (b *Backend) List(ctx context.Context) ([]Info, error) {
	// NeedResults: 1 means populate the domains slice
	// Flags: 0 means all domains (active and inactive)
	domains, _, err := b.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	infos := make([]Info, 0, len(domains))
	for _, dom := range domains {
		tag, err := metadata.Load(b.lv, dom)
		if err != nil || tag.ClusterID != b.cluster {
			continue
		}

		state, _, err := b.lv.DomainGetState(dom, 0)
		if err != nil {
			b.log.Warn("failed to get domain state",
				zap.String("domain", dom.Name), zap.Error(err))
			continue
		}

		infos = append(infos, Info{
			Name:    dom.Name,
			Variant: tag.Variant,
			State:   stateToString(state),
		})
	}

	return infos, nil
}

// stateToString converts libvirt domain state to human-readable string.
func stateToString(state int32) string {
	switch state {
	case 0:
		return "no state"
	case 1:
		return "running"
	case 2:
		return "blocked"
	case 3:
		return "paused"
	case 4:
		return "shutdown"
	case 5:
		return "shutoff"
	case 6:
		return "crashed"
	case 7:
		return "pmsuspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}
