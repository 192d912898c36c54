package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// DomainParams is everything GenerateDomainXML needs to render one
// machine's domain definition. Disks are referenced as pool volumes;
// the storage layer must have created them before the domain is
// defined.
type DomainParams struct {
	Name        string
	UUID        string
	MemoryBytes uint64
	CPUCount    int

	// Pool holds both the boot volume and the cloud-init seed ISO.
	Pool       string
	BootVolume string
	SeedVolume string

	// Bridge is the host bridge every interface attaches to. MACs
	// lists one address per interface in attachment order, so the
	// guest-side netplan config can match them back up.
	Bridge string
	MACs   []string
}

func (p *DomainParams) validate() error {
	if p == nil {
		return fmt.Errorf("domain params cannot be nil")
	}
	if p.Name == "" {
		return fmt.Errorf("domain name cannot be empty")
	}
	if p.MemoryBytes == 0 {
		return fmt.Errorf("domain memory cannot be zero")
	}
	if p.CPUCount <= 0 {
		return fmt.Errorf("domain needs at least one vcpu")
	}
	if p.Pool == "" || p.BootVolume == "" || p.SeedVolume == "" {
		return fmt.Errorf("domain storage volumes are not fully specified")
	}
	if p.Bridge == "" {
		return fmt.Errorf("domain bridge cannot be empty")
	}
	if len(p.MACs) == 0 {
		return fmt.Errorf("domain needs at least one interface")
	}
	return nil
}

// GenerateDomainXML renders the libvirt domain XML for one machine:
// kvm, x86_64 hvm with EFI firmware, host-model CPU, a virtio boot
// disk at vda, the seed ISO as a read-only SATA cdrom, and one
// virtio bridge interface per MAC.
func GenerateDomainXML(params *DomainParams) (string, error) {
	if err := params.validate(); err != nil {
		return "", err
	}

	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: params.Name,
		UUID: params.UUID,
		Memory: &libvirtxml.DomainMemory{
			Value: uint(params.MemoryBytes / 1024),
			Unit:  "KiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     uint(params.CPUCount),
		},
		OS: &libvirtxml.DomainOS{
			Firmware: "efi",
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
			BIOS: &libvirtxml.DomainBIOS{
				UseSerial: "yes",
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
			PAE:  &libvirtxml.DomainFeature{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-model",
			Model: &libvirtxml.DomainCPUModel{
				Fallback: "allow",
			},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
				{Name: "hpet", Present: "no"},
			},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "restart",
		Devices: &libvirtxml.DomainDeviceList{
			Controllers: []libvirtxml.DomainController{
				{
					Type:  "pci",
					Index: func() *uint { i := uint(0); return &i }(),
					Model: "pci-root",
				},
			},
			MemBalloon: &libvirtxml.DomainMemBalloon{
				Model: "virtio",
			},
			RNGs: []libvirtxml.DomainRNG{
				{
					Model: "virtio",
					Backend: &libvirtxml.DomainRNGBackend{
						Random: &libvirtxml.DomainRNGBackendRandom{
							Device: "/dev/urandom",
						},
					},
				},
			},
		},
	}

	// Boot disk, volume-backed.
	bootDisk := libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{
			Name:  "qemu",
			Type:  "qcow2",
			Cache: "none",
		},
		Source: &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   params.Pool,
				Volume: params.BootVolume,
			},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: "vda",
			Bus: "virtio",
		},
		Boot: &libvirtxml.DomainDeviceBoot{
			Order: 1,
		},
	}
	domain.Devices.Disks = append(domain.Devices.Disks, bootDisk)

	// Cloud-init seed ISO. Every machine gets one.
	seed := libvirtxml.DomainDisk{
		Device: "cdrom",
		Driver: &libvirtxml.DomainDiskDriver{
			Name: "qemu",
			Type: "raw",
		},
		Source: &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   params.Pool,
				Volume: params.SeedVolume,
			},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: "sda",
			Bus: "sata",
		},
		ReadOnly: &libvirtxml.DomainDiskReadOnly{},
	}
	domain.Devices.Disks = append(domain.Devices.Disks, seed)

	for _, mac := range params.MACs {
		netIface := libvirtxml.DomainInterface{
			MAC: &libvirtxml.DomainInterfaceMAC{
				Address: mac,
			},
			Source: &libvirtxml.DomainInterfaceSource{
				Bridge: &libvirtxml.DomainInterfaceSourceBridge{
					Bridge: params.Bridge,
				},
			},
			Model: &libvirtxml.DomainInterfaceModel{
				Type: "virtio",
			},
		}
		domain.Devices.Interfaces = append(domain.Devices.Interfaces, netIface)
	}

	domain.Devices.Serials = []libvirtxml.DomainSerial{
		{
			Source: &libvirtxml.DomainChardevSource{
				Pty: &libvirtxml.DomainChardevSourcePty{},
			},
			Target: &libvirtxml.DomainSerialTarget{
				Port: func() *uint { p := uint(0); return &p }(),
			},
		},
	}
	domain.Devices.Consoles = []libvirtxml.DomainConsole{
		{
			Source: &libvirtxml.DomainChardevSource{
				Pty: &libvirtxml.DomainChardevSourcePty{},
			},
			Target: &libvirtxml.DomainConsoleTarget{
				Type: "serial",
				Port: func() *uint { p := uint(0); return &p }(),
			},
		},
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML: %w", err)
	}

	return xml, nil
}
