package vm

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"spinup/internal/cloudinit"
	spinuplibvirt "spinup/internal/libvirt"
	"spinup/internal/metadata"
	"spinup/internal/naming"
	"spinup/internal/spec"
	"spinup/internal/storage"
)

// CreateResult reports the backend handles assigned during create.
type CreateResult struct {
	// UUID is the libvirt domain UUID.
	UUID string
	// MACs are the interface MAC addresses, in attachment order.
	MACs []string
}

// Create builds a machine on the hypervisor:
//  1. Check the name is free (and not held by a foreign domain)
//  2. Ensure storage pools and the variant's base image exist
//  3. Create the boot volume as an overlay on the base image
//  4. Generate the cloud-init seed ISO and upload it as a volume
//  5. Define the domain, tag it with the cluster ID, start it
//
// On any failure, attempts to clean up partially created resources.
func (b *Backend) Create(ctx context.Context, machine spec.MachineSpec) (*CreateResult, error) {
	log := b.log.With(zap.String("machine", machine.Name))

	// Step 1: the machine name must not collide with an existing domain.
	// Lookup succeeding means the name is taken; whose it is decides the
	// error message.
	if dom, err := b.lv.DomainLookupByName(machine.Name); err == nil {
		if metadata.Owned(b.lv, dom, b.cluster) {
			return nil, fmt.Errorf("machine %q already exists", machine.Name)
		}
		return nil, fmt.Errorf("name %q is taken by a domain this cluster does not manage", machine.Name)
	}

	// Step 2: pools and base image.
	if err := b.sm.EnsurePools(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage pools: %w", err)
	}

	imageName, err := b.cfg.ImageForVariant(machine.Variant)
	if err != nil {
		return nil, err
	}
	if err := b.sm.EnsureImage(ctx, imageName); err != nil {
		return nil, fmt.Errorf("failed to ensure base image: %w", err)
	}

	domainUUID := uuid.NewString()
	instanceID := fmt.Sprintf("i-%s", domainUUID[:8])

	// A machine with no interface tokens still gets network access.
	nics := machine.Interfaces
	if len(nics) == 0 {
		nics = []spec.NetworkInterfaceSpec{{Mode: spec.ModeDHCP}}
	}

	macs := make([]string, 0, len(nics))
	seedNICs := make([]cloudinit.Interface, 0, len(nics))
	for i, nic := range nics {
		if nic.Mode == spec.ModeStatic {
			mac, err := naming.MACFromIP(nic.Address)
			if err != nil {
				return nil, fmt.Errorf("machine %q interface %d: %w", machine.Name, i, err)
			}
			macs = append(macs, mac)
			seedNICs = append(seedNICs, cloudinit.Interface{MAC: mac, CIDR: nic.CIDR()})
			continue
		}
		mac := naming.MACFromSeed(fmt.Sprintf("%s-%d", instanceID, i))
		macs = append(macs, mac)
		seedNICs = append(seedNICs, cloudinit.Interface{MAC: mac, DHCP: true})
	}

	// State tracking for cleanup
	var (
		domainDefined  bool
		volumesCreated bool
	)

	var createErr error
	defer func() {
		if createErr != nil {
			b.cleanup(ctx, machine.Name, domainDefined, volumesCreated)
		}
	}()

	// Step 3: boot volume, an overlay backed by the base image.
	bootVolume := naming.VolumeNameBoot(machine.Name)
	log.Info("creating boot volume", zap.String("volume", bootVolume))
	createErr = b.replaceVolume(ctx, storage.VolumeSpec{
		Name:          bootVolume,
		Type:          storage.VolumeTypeBoot,
		Format:        storage.VolumeFormatQCOW2,
		CapacityBytes: machine.DiskBytes,
		BackingVolume: imageName,
	})
	if createErr != nil {
		return nil, fmt.Errorf("failed to create boot volume: %w", createErr)
	}
	volumesCreated = true

	// Step 4: cloud-init seed ISO.
	log.Info("generating cloud-init seed")
	seed := &cloudinit.Seed{
		InstanceID:        instanceID,
		Hostname:          machine.Name,
		SSHAuthorizedKeys: b.sshKeys,
		Interfaces:        seedNICs,
		Gateway:           b.cfg.Gateway,
		Nameservers:       b.cfg.Nameservers,
	}
	var isoData []byte
	isoData, createErr = cloudinit.GenerateISO(seed)
	if createErr != nil {
		return nil, fmt.Errorf("failed to generate cloud-init ISO: %w", createErr)
	}

	seedVolume := naming.VolumeNameSeed(machine.Name)
	createErr = b.replaceVolume(ctx, storage.VolumeSpec{
		Name:          seedVolume,
		Type:          storage.VolumeTypeSeed,
		Format:        storage.VolumeFormatRaw,
		CapacityBytes: uint64(len(isoData)),
	})
	if createErr != nil {
		return nil, fmt.Errorf("failed to create seed volume: %w", createErr)
	}
	createErr = b.sm.WriteVolumeData(ctx, b.sm.VMsPool(), seedVolume, isoData)
	if createErr != nil {
		return nil, fmt.Errorf("failed to write seed volume: %w", createErr)
	}

	// Step 5: define, tag, start.
	var domainXML string
	domainXML, createErr = spinuplibvirt.GenerateDomainXML(&spinuplibvirt.DomainParams{
		Name:        machine.Name,
		UUID:        domainUUID,
		MemoryBytes: machine.MemoryBytes,
		CPUCount:    machine.CPUCount,
		Pool:        b.sm.VMsPool(),
		BootVolume:  bootVolume,
		SeedVolume:  seedVolume,
		Bridge:      b.cfg.Bridge,
		MACs:        macs,
	})
	if createErr != nil {
		return nil, fmt.Errorf("failed to generate domain XML: %w", createErr)
	}

	log.Info("defining domain", zap.String("uuid", domainUUID))
	var dom libvirt.Domain
	dom, createErr = b.lv.DomainDefineXML(domainXML)
	if createErr != nil {
		return nil, fmt.Errorf("failed to define domain: %w", createErr)
	}
	domainDefined = true

	createErr = metadata.Store(b.lv, dom, &metadata.Tag{
		ClusterID: b.cluster,
		Machine:   machine.Name,
		Variant:   machine.Variant,
	})
	if createErr != nil {
		return nil, fmt.Errorf("failed to tag domain: %w", createErr)
	}

	if createErr = b.lv.DomainSetAutostart(dom, 1); createErr != nil {
		return nil, fmt.Errorf("failed to set autostart: %w", createErr)
	}

	log.Info("starting domain")
	if createErr = b.lv.DomainCreate(dom); createErr != nil {
		return nil, fmt.Errorf("failed to start domain: %w", createErr)
	}

	log.Info("machine created")
	return &CreateResult{UUID: domainUUID, MACs: macs}, nil
}

// replaceVolume creates a volume, first deleting any stale volume with
// the same name. Create already verified no domain holds the name, so
// a leftover volume can only be debris from an interrupted create.
func (b *Backend) replaceVolume(ctx context.Context, volSpec storage.VolumeSpec) error {
	pool := b.sm.VMsPool()

	exists, err := b.sm.VolumeExists(ctx, pool, volSpec.Name)
	if err != nil {
		return err
	}
	if exists {
		b.log.Info("replacing stale volume", zap.String("volume", volSpec.Name))
		if err := b.sm.DeleteVolume(ctx, pool, volSpec.Name); err != nil {
			return fmt.Errorf("failed to delete stale volume %q: %w", volSpec.Name, err)
		}
	}

	return b.sm.CreateVolume(ctx, pool, volSpec)
}

// cleanup attempts to remove everything a failed create left behind.
//
// This is best-effort: it logs errors but continues trying to clean up
// as much as possible. It never returns an error.
func (b *Backend) cleanup(ctx context.Context, machine string, domainDefined, volumesCreated bool) {
	b.log.Info("cleaning up after failed create", zap.String("machine", machine))

	if domainDefined {
		dom, err := b.lv.DomainLookupByName(machine)
		if err != nil {
			b.log.Warn("cleanup: domain lookup failed", zap.Error(err))
		} else {
			// Stop first if it got as far as running. A domain that never
			// started just errors here, which is fine.
			if err := b.lv.DomainDestroy(dom); err != nil {
				b.log.Debug("cleanup: domain was not running", zap.Error(err))
			}
			if err := b.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
				b.log.Warn("cleanup: failed to undefine domain", zap.Error(err))
			}
		}
	}

	if volumesCreated {
		deleted := b.deleteMachineVolumes(ctx, machine)
		b.log.Info("cleanup: volumes removed", zap.Int("count", deleted))
	}
}
