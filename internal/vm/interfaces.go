package vm

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"spinup/internal/storage"
)

// libvirtClient defines the libvirt operations needed for machine
// management. This wraps operations from *libvirt.Libvirt to allow for
// testing.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	// DomainLookupByName looks up a domain by name
	DomainLookupByName(name string) (libvirt.Domain, error)

	// DomainDefineXML defines a domain from XML
	DomainDefineXML(xml string) (libvirt.Domain, error)

	// DomainSetAutostart sets autostart for a domain
	DomainSetAutostart(dom libvirt.Domain, autostart int32) error

	// DomainCreate starts a domain
	DomainCreate(dom libvirt.Domain) error

	// DomainGetState gets the state of a domain
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)

	// DomainShutdown gracefully shuts down a domain
	DomainShutdown(dom libvirt.Domain) error

	// DomainDestroy force-stops a domain
	DomainDestroy(dom libvirt.Domain) error

	// DomainUndefineFlags undefines a domain with flags (e.g., NVRAM cleanup)
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error

	// DomainSetMetadata writes a domain's custom metadata element
	DomainSetMetadata(dom libvirt.Domain, typ int32, metadata, key, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error

	// DomainGetMetadata reads a domain's custom metadata element
	DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error)

	// ConnectListAllDomains lists all domains, active and inactive
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// DomainInterfaceAddresses queries a running domain's addresses
	DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error)
}

// storageManager defines the storage operations needed for machine
// management. This allows for dependency injection and testing.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by mock implementations.
type storageManager interface {
	// EnsurePools ensures the image and machine disk pools exist
	EnsurePools(ctx context.Context) error

	// EnsureImage ensures a base image volume is present in the image
	// pool, importing it from the host image directory if needed
	EnsureImage(ctx context.Context, imageName string) error

	// VMsPool returns the name of the machine disk pool
	VMsPool() string

	// VolumeExists checks if a volume exists in a pool
	VolumeExists(ctx context.Context, poolName, volumeName string) (bool, error)

	// CreateVolume creates a new volume in a pool
	CreateVolume(ctx context.Context, poolName string, spec storage.VolumeSpec) error

	// DeleteVolume deletes a volume from a pool
	DeleteVolume(ctx context.Context, poolName, volumeName string) error

	// WriteVolumeData writes data to a volume (for cloud-init ISOs)
	WriteVolumeData(ctx context.Context, poolName, volumeName string, data []byte) error

	// ListVolumes lists all volumes in a pool
	ListVolumes(ctx context.Context, poolName string) ([]storage.VolumeInfo, error)
}
