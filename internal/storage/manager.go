package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
)

// LibvirtClient is the set of libvirt calls the manager makes. It
// allows for dependency injection and testing.
type LibvirtClient interface {
	StoragePoolLookupByName(Name string) (libvirt.StoragePool, error)
	StoragePoolDefineXML(XML string, Flags uint32) (libvirt.StoragePool, error)
	StoragePoolCreate(Pool libvirt.StoragePool, Flags libvirt.StoragePoolCreateFlags) error
	StoragePoolBuild(Pool libvirt.StoragePool, Flags libvirt.StoragePoolBuildFlags) error
	StoragePoolSetAutostart(Pool libvirt.StoragePool, Autostart int32) error
	StoragePoolUndefine(Pool libvirt.StoragePool) error
	StoragePoolListAllVolumes(Pool libvirt.StoragePool, NeedResults int32, Flags uint32) ([]libvirt.StorageVol, uint32, error)
	StorageVolLookupByName(Pool libvirt.StoragePool, Name string) (libvirt.StorageVol, error)
	StorageVolCreateXML(Pool libvirt.StoragePool, XML string, Flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolDelete(Vol libvirt.StorageVol, Flags libvirt.StorageVolDeleteFlags) error
	StorageVolGetPath(Vol libvirt.StorageVol) (string, error)
	StorageVolGetInfo(Vol libvirt.StorageVol) (rType int8, rCapacity uint64, rAllocation uint64, err error)
	StorageVolUpload(Vol libvirt.StorageVol, outStream io.Reader, Offset uint64, Length uint64, Flags libvirt.StorageVolUploadFlags) error
}

// Manager coordinates storage operations for pools, volumes and base
// images.
type Manager struct {
	client LibvirtClient
	cfg    PoolConfig
}

// NewManager creates a storage manager. Zero-valued PoolConfig fields
// fall back to the package defaults.
func NewManager(client LibvirtClient, cfg PoolConfig) *Manager {
	cfg.applyDefaults()
	return &Manager{
		client: client,
		cfg:    cfg,
	}
}

// ImagesPool returns the name of the base image pool.
func (m *Manager) ImagesPool() string {
	return m.cfg.ImagesPool
}

// VMsPool returns the name of the machine disk pool.
func (m *Manager) VMsPool() string {
	return m.cfg.VMsPool
}

// EnsurePools makes sure the images and vms pools both exist, creating
// them on first use.
func (m *Manager) EnsurePools(ctx context.Context) error {
	if err := m.EnsurePool(ctx, m.cfg.ImagesPool, PoolTypeDir, m.cfg.ImagesPath); err != nil {
		return fmt.Errorf("failed to ensure images pool: %w", err)
	}

	if err := m.EnsurePool(ctx, m.cfg.VMsPool, PoolTypeDir, m.cfg.VMsPath); err != nil {
		return fmt.Errorf("failed to ensure vms pool: %w", err)
	}

	return nil
}
