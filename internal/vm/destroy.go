package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"go.uber.org/zap"

	"spinup/internal/metadata"
)

// shutdownPollInterval is how often the graceful shutdown wait checks
// the domain state.
const shutdownPollInterval = 500 * time.Millisecond

// Destroy removes a machine from the hypervisor:
//  1. Look up the domain and verify this cluster owns it
//  2. Graceful shutdown if running, bounded by the destroy grace period
//  3. Force destroy if still running
//  4. Undefine the domain (with NVRAM cleanup for EFI firmware)
//  5. Delete the machine's volumes from the disk pool
//
// Volume cleanup is best-effort: failures are logged and the operation
// continues. Returns ErrNotFound if no such domain exists and
// ErrForeign if the domain is not tagged with this cluster's ID.
func (b *Backend) Destroy(ctx context.Context, machine string) error {
	log := b.log.With(zap.String("machine", machine))

	// Step 1: lookup and ownership.
	dom, err := b.lv.DomainLookupByName(machine)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, machine)
	}
	if !metadata.Owned(b.lv, dom, b.cluster) {
		return fmt.Errorf("%w: %s", ErrForeign, machine)
	}

	state, _, err := b.lv.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("failed to get domain state: %w", err)
	}

	// Step 2: graceful shutdown if running.
	needsForceDestroy := false
	if state == domainStateRunning {
		log.Info("requesting graceful shutdown", zap.Duration("grace", b.cfg.DestroyGrace))
		if err := b.lv.DomainShutdown(dom); err != nil {
			log.Warn("graceful shutdown request failed", zap.Error(err))
			needsForceDestroy = true
		} else {
			needsForceDestroy = !b.waitForShutoff(ctx, dom)
		}
	}

	// Step 3: force destroy if still running.
	if needsForceDestroy {
		currentState, _, err := b.lv.DomainGetState(dom, 0)
		if err != nil {
			log.Warn("failed to check state before force destroy", zap.Error(err))
		}
		if err == nil && currentState == domainStateRunning {
			log.Info("force destroying domain")
			if err := b.lv.DomainDestroy(dom); err != nil {
				log.Warn("force destroy failed", zap.Error(err))
			}
		}
	}

	// Step 4: undefine with NVRAM cleanup.
	if err := b.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
		return fmt.Errorf("failed to undefine domain: %w", err)
	}

	// Step 5: volumes.
	deleted := b.deleteMachineVolumes(ctx, machine)
	log.Info("machine destroyed", zap.Int("volumes_deleted", deleted))
	return nil
}

// waitForShutoff polls the domain state until it reaches shutoff or
// the destroy grace period runs out. Reports whether the domain shut
// down in time.
func (b *Backend) waitForShutoff(ctx context.Context, dom libvirt.Domain) bool {
	graceCtx, cancel := context.WithTimeout(ctx, b.cfg.DestroyGrace)
	defer cancel()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-graceCtx.Done():
			b.log.Info("graceful shutdown timed out", zap.String("domain", dom.Name))
			return false
		case <-ticker.C:
			state, _, err := b.lv.DomainGetState(dom, 0)
			if err != nil {
				b.log.Warn("failed to check shutdown state", zap.Error(err))
				return false
			}
			if state == domainStateShutoff {
				b.log.Info("domain shut down gracefully", zap.String("domain", dom.Name))
				return true
			}
		}
	}
}
