package storage

import (
	"context"
	"fmt"
	"strings"

	libvirtxml "libvirt.org/go/libvirtxml"
)

// EnsurePool ensures a storage pool exists, creating it if necessary.
// If the pool already exists this is a no-op.
func (m *Manager) EnsurePool(ctx context.Context, name string, poolType PoolType, path string) error {
	_, err := m.client.StoragePoolLookupByName(name)
	if err == nil {
		return nil
	}

	return m.CreatePool(ctx, name, poolType, path)
}

// CreatePool defines, builds, starts and autostarts a new storage pool.
// Fails if the pool already exists.
func (m *Manager) CreatePool(ctx context.Context, name string, poolType PoolType, path string) error {
	var poolXML string
	var err error

	switch poolType {
	case PoolTypeDir:
		poolXML, err = generateDirPoolXML(name, path)
	default:
		return fmt.Errorf("unsupported pool type: %s", poolType)
	}

	if err != nil {
		return fmt.Errorf("failed to generate pool XML: %w", err)
	}

	pool, err := m.client.StoragePoolDefineXML(poolXML, 0)
	if err != nil {
		return fmt.Errorf("failed to define pool: %w", err)
	}

	// Build creates the backing directory.
	if err := m.client.StoragePoolBuild(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to build pool: %w", err)
	}

	if err := m.client.StoragePoolCreate(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to start pool: %w", err)
	}

	if err := m.client.StoragePoolSetAutostart(pool, 1); err != nil {
		// Pool is up and usable at this point, autostart just means
		// it won't survive a host reboot.
		return fmt.Errorf("pool created but failed to set autostart: %w", err)
	}

	return nil
}

// generateDirPoolXML generates XML for a directory-based storage pool.
func generateDirPoolXML(name, path string) (string, error) {
	uid, gid, _ := GetQEMUUserGroup()

	pool := &libvirtxml.StoragePool{
		Type: "dir",
		Name: name,
		Target: &libvirtxml.StoragePoolTarget{
			Path: path,
			Permissions: &libvirtxml.StoragePoolTargetPermissions{
				Owner: uid,
				Group: gid,
				Mode:  "0755",
			},
		},
	}

	xmlBytes, err := pool.Marshal()
	if err != nil {
		return "", err
	}

	xml := string(xmlBytes)
	xml = strings.TrimPrefix(xml, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>")
	xml = strings.TrimSpace(xml)

	return xml, nil
}
