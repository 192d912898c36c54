package storage

import "fmt"

// PoolType represents the storage pool backend. Only directory pools
// are used; the constant exists so pool XML generation stays explicit
// about what it builds.
type PoolType string

const (
	PoolTypeDir PoolType = "dir"
)

// VolumeType represents the purpose of a storage volume.
type VolumeType string

const (
	VolumeTypeBoot      VolumeType = "boot"       // per-machine boot disk
	VolumeTypeSeed      VolumeType = "seed"       // cloud-init seed ISO
	VolumeTypeBaseImage VolumeType = "base-image" // shared base OS image
)

// VolumeFormat represents the on-disk format.
type VolumeFormat string

const (
	VolumeFormatQCOW2 VolumeFormat = "qcow2"
	VolumeFormatRaw   VolumeFormat = "raw"
)

// VolumeSpec specifies how to create a storage volume.
type VolumeSpec struct {
	Name          string
	Type          VolumeType
	Format        VolumeFormat
	CapacityBytes uint64
	// BackingVolume names a volume in the images pool to use as a
	// qcow2 backing file. Only valid for qcow2 volumes.
	BackingVolume string
}

// Validate checks the volume spec before any XML is generated.
func (v *VolumeSpec) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("volume name is required")
	}
	if v.Type == "" {
		return fmt.Errorf("volume type is required")
	}
	if v.Format != VolumeFormatQCOW2 && v.Format != VolumeFormatRaw {
		return fmt.Errorf("invalid volume format: %q (must be qcow2 or raw)", v.Format)
	}
	// Seed ISOs get their capacity from the uploaded data.
	if v.CapacityBytes == 0 && v.Type != VolumeTypeSeed {
		return fmt.Errorf("volume capacity must be greater than 0")
	}
	if v.BackingVolume != "" && v.Format != VolumeFormatQCOW2 {
		return fmt.Errorf("backing volumes are only supported for qcow2 format")
	}
	return nil
}

// VolumeInfo describes an existing volume.
type VolumeInfo struct {
	Name       string
	Path       string
	Pool       string
	Capacity   uint64
	Allocation uint64
}

// PoolConfig names the pools the manager works with. Zero values fall
// back to the defaults below.
type PoolConfig struct {
	ImagesPool string
	ImagesPath string
	VMsPool    string
	VMsPath    string
	// HostImageDir is searched for base images missing from the
	// images pool, so images dropped in the conventional libvirt
	// directory get picked up without a manual import step.
	HostImageDir string
}

func (c *PoolConfig) applyDefaults() {
	if c.ImagesPool == "" {
		c.ImagesPool = DefaultImagesPool
	}
	if c.ImagesPath == "" {
		c.ImagesPath = DefaultImagesPath
	}
	if c.VMsPool == "" {
		c.VMsPool = DefaultVMsPool
	}
	if c.VMsPath == "" {
		c.VMsPath = DefaultVMsPath
	}
	if c.HostImageDir == "" {
		c.HostImageDir = DefaultHostImageDir
	}
}

// Default pool configuration.
const (
	// DefaultImagesPool is the pool name for base OS images.
	DefaultImagesPool = "spinup-images"
	// DefaultVMsPool is the pool name for machine disks.
	DefaultVMsPool = "spinup-vms"
	// DefaultImagesPath is the default path for base images.
	DefaultImagesPath = "/var/lib/libvirt/images/spinup/images"
	// DefaultVMsPath is the default path for machine disks.
	DefaultVMsPath = "/var/lib/libvirt/images/spinup/vms"
	// DefaultHostImageDir is where stock libvirt installs keep
	// images, and where users typically download cloud images to.
	DefaultHostImageDir = "/var/lib/libvirt/images"
)
