package vm

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"spinup/internal/config"
	"spinup/internal/logging"
	"spinup/internal/naming"
)

var (
	// ErrNotFound reports that no domain with the requested name exists.
	ErrNotFound = errors.New("domain not found")

	// ErrForeign reports that a domain with the requested name exists
	// but is not managed by this cluster.
	ErrForeign = errors.New("domain not managed by this cluster")
)

// Domain states (from libvirt VIR_DOMAIN_* constants)
const (
	domainStateRunning = 1
	domainStateShutoff = 5
)

// Backend executes machine operations against one libvirt connection.
// All domains it creates are tagged with the owning cluster's ID, and
// destructive operations verify the tag first.
type Backend struct {
	lv      libvirtClient
	sm      storageManager
	cfg     *config.Config
	cluster string
	sshKeys []string
	log     *zap.Logger
}

// NewBackend creates a backend for the given cluster. sshKeys are the
// authorized keys injected into every machine's cloud-init seed.
func NewBackend(client libvirtClient, mgr storageManager, cfg *config.Config, clusterID string, sshKeys []string) *Backend {
	return &Backend{
		lv:      client,
		sm:      mgr,
		cfg:     cfg,
		cluster: clusterID,
		sshKeys: sshKeys,
		log:     logging.Logger().Named("vm"),
	}
}

// deleteMachineVolumes removes every volume in the machine disk pool
// whose name carries the machine's prefix. Best-effort: failures are
// logged and skipped. Returns the number of volumes deleted.
func (b *Backend) deleteMachineVolumes(ctx context.Context, machine string) int {
	pool := b.sm.VMsPool()
	volumes, err := b.sm.ListVolumes(ctx, pool)
	if err != nil {
		b.log.Warn("failed to list volumes for cleanup",
			zap.String("pool", pool), zap.Error(err))
		return 0
	}

	prefix := naming.VolumePrefix(machine)
	deleted := 0
	for _, vol := range volumes {
		if !strings.HasPrefix(vol.Name, prefix) {
			continue
		}
		if err := b.sm.DeleteVolume(ctx, pool, vol.Name); err != nil {
			b.log.Warn("failed to delete volume",
				zap.String("volume", vol.Name), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted
}
