package vm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"go.uber.org/zap"

	"spinup/internal/config"
	"spinup/internal/storage"
)

const (
	testClusterID = "24f5c372-0e99-4336-9685-7e1c64b0a3be"
	testSSHKey    = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIGQ0NEJqTV9PUkhOVGYzNHFtS1BoSkxmd2NhVFlNQVhN test@example.com"
	testImage     = "noble-server-cloudimg-amd64.img"
)

// ownedTagXML is the metadata a domain owned by the test cluster returns.
func ownedTagXML(machine string) string {
	return fmt.Sprintf(`<machine xmlns="http://spinup.dev/machine"><cluster>%s</cluster><name>%s</name><variant>ubuntu</variant></machine>`,
		testClusterID, machine)
}

// newTestBackend wires a backend to mocks with config defaults suited
// for tests.
func newTestBackend(lv libvirtClient, sm storageManager) *Backend {
	cfg := &config.Config{
		DestroyGrace: 2 * time.Second,
		Bridge:       "virbr0",
		Gateway:      "10.20.30.1",
		Nameservers:  []string{"8.8.8.8"},
		Images:       map[string]string{"ubuntu": testImage},
	}
	return &Backend{
		lv:      lv,
		sm:      sm,
		cfg:     cfg,
		cluster: testClusterID,
		sshKeys: []string{testSSHKey},
		log:     zap.NewNop(),
	}
}

// mockLibvirtClient is a mock implementation of the libvirtClient
// interface for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	domainLookupByNameFunc       func(name string) (libvirt.Domain, error)
	domainDefineXMLFunc          func(xml string) (libvirt.Domain, error)
	domainSetAutostartFunc       func(dom libvirt.Domain, autostart int32) error
	domainCreateFunc             func(dom libvirt.Domain) error
	domainGetStateFunc           func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainShutdownFunc           func(dom libvirt.Domain) error
	domainDestroyFunc            func(dom libvirt.Domain) error
	domainUndefineFlagsFunc      func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	domainSetMetadataFunc        func(dom libvirt.Domain, metadata string) error
	domainGetMetadataFunc        func(dom libvirt.Domain) (string, error)
	connectListAllDomainsFunc    func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainInterfaceAddressesFunc func(dom libvirt.Domain) ([]libvirt.DomainInterface, error)

	// Call tracking
	domainLookupByNameCalls       []string
	domainDefineXMLCalls          []string
	domainSetAutostartCalls       []libvirt.Domain
	domainCreateCalls             []libvirt.Domain
	domainGetStateCalls           []libvirt.Domain
	domainShutdownCalls           []libvirt.Domain
	domainDestroyCalls            []libvirt.Domain
	domainUndefineFlagsCalls      []libvirt.Domain
	domainSetMetadataCalls        []string
	domainGetMetadataCalls        []libvirt.Domain
	connectListAllDomainsCalls    int
	domainInterfaceAddressesCalls []libvirt.Domain
}

// newMockLibvirtClient creates a new mock libvirt client with default behavior.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{}

	// Default: domain does not exist on first call, but exists after define.
	// This simulates the real behavior where lookup fails initially, then
	// succeeds after define.
	m.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		if len(m.domainDefineXMLCalls) > 0 {
			return libvirt.Domain{Name: name}, nil
		}
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}

	// Default: define succeeds
	m.domainDefineXMLFunc = func(xml string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: "foovm0"}, nil
	}

	// Default: set autostart succeeds
	m.domainSetAutostartFunc = func(dom libvirt.Domain, autostart int32) error {
		return nil
	}

	// Default: create succeeds
	m.domainCreateFunc = func(dom libvirt.Domain) error {
		return nil
	}

	// Default: domain state is running
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return domainStateRunning, 0, nil
	}

	// Default: shutdown succeeds
	m.domainShutdownFunc = func(dom libvirt.Domain) error {
		return nil
	}

	// Default: destroy succeeds
	m.domainDestroyFunc = func(dom libvirt.Domain) error {
		return nil
	}

	// Default: undefine with flags succeeds
	m.domainUndefineFlagsFunc = func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
		return nil
	}

	// Default: set metadata succeeds
	m.domainSetMetadataFunc = func(dom libvirt.Domain, metadata string) error {
		return nil
	}

	// Default: domain carries the test cluster's ownership tag
	m.domainGetMetadataFunc = func(dom libvirt.Domain) (string, error) {
		return ownedTagXML(dom.Name), nil
	}

	// Default: no domains
	m.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return []libvirt.Domain{}, 0, nil
	}

	// Default: no lease yet
	m.domainInterfaceAddressesFunc = func(dom libvirt.Domain) ([]libvirt.DomainInterface, error) {
		return []libvirt.DomainInterface{}, nil
	}

	return m
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByNameCalls = append(m.domainLookupByNameCalls, name)
	return m.domainLookupByNameFunc(name)
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDefineXMLCalls = append(m.domainDefineXMLCalls, xml)
	return m.domainDefineXMLFunc(xml)
}

func (m *mockLibvirtClient) DomainSetAutostart(dom libvirt.Domain, autostart int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSetAutostartCalls = append(m.domainSetAutostartCalls, dom)
	return m.domainSetAutostartFunc(dom, autostart)
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCreateCalls = append(m.domainCreateCalls, dom)
	return m.domainCreateFunc(dom)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetStateCalls = append(m.domainGetStateCalls, dom)
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainShutdown(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainShutdownCalls = append(m.domainShutdownCalls, dom)
	return m.domainShutdownFunc(dom)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDestroyCalls = append(m.domainDestroyCalls, dom)
	return m.domainDestroyFunc(dom)
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineFlagsCalls = append(m.domainUndefineFlagsCalls, dom)
	return m.domainUndefineFlagsFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainSetMetadata(dom libvirt.Domain, typ int32, metadata, key, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var value string
	if len(metadata) > 0 {
		value = metadata[0]
	}
	m.domainSetMetadataCalls = append(m.domainSetMetadataCalls, value)
	return m.domainSetMetadataFunc(dom, value)
}

func (m *mockLibvirtClient) DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetMetadataCalls = append(m.domainGetMetadataCalls, dom)
	return m.domainGetMetadataFunc(dom)
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectListAllDomainsCalls++
	return m.connectListAllDomainsFunc(needResults, flags)
}

func (m *mockLibvirtClient) DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainInterfaceAddressesCalls = append(m.domainInterfaceAddressesCalls, dom)
	return m.domainInterfaceAddressesFunc(dom)
}

// mockStorageManager is a mock implementation of the storageManager
// interface for testing.
type mockStorageManager struct {
	mu sync.Mutex

	// Configurable behavior
	ensurePoolsFunc     func(ctx context.Context) error
	ensureImageFunc     func(ctx context.Context, imageName string) error
	volumeExistsFunc    func(ctx context.Context, poolName, volumeName string) (bool, error)
	createVolumeFunc    func(ctx context.Context, poolName string, spec storage.VolumeSpec) error
	deleteVolumeFunc    func(ctx context.Context, poolName, volumeName string) error
	writeVolumeDataFunc func(ctx context.Context, poolName, volumeName string, data []byte) error
	listVolumesFunc     func(ctx context.Context, poolName string) ([]storage.VolumeInfo, error)

	// Call tracking
	ensurePoolsCalls     int
	ensureImageCalls     []string
	volumeExistsCalls    []string // format: "pool/volume"
	createVolumeCalls    []storage.VolumeSpec
	deleteVolumeCalls    []string // format: "pool/volume"
	writeVolumeDataCalls []string // format: "pool/volume"
	listVolumesCalls     []string // pool names
}

// newMockStorageManager creates a new mock storage manager with default behavior.
func newMockStorageManager() *mockStorageManager {
	return &mockStorageManager{
		// Default: pools exist
		ensurePoolsFunc: func(ctx context.Context) error {
			return nil
		},
		// Default: image is present
		ensureImageFunc: func(ctx context.Context, imageName string) error {
			return nil
		},
		// Default: volumes don't exist
		volumeExistsFunc: func(ctx context.Context, poolName, volumeName string) (bool, error) {
			return false, nil
		},
		// Default: create succeeds
		createVolumeFunc: func(ctx context.Context, poolName string, spec storage.VolumeSpec) error {
			return nil
		},
		// Default: delete succeeds
		deleteVolumeFunc: func(ctx context.Context, poolName, volumeName string) error {
			return nil
		},
		// Default: write succeeds
		writeVolumeDataFunc: func(ctx context.Context, poolName, volumeName string, data []byte) error {
			return nil
		},
		// Default: no volumes
		listVolumesFunc: func(ctx context.Context, poolName string) ([]storage.VolumeInfo, error) {
			return []storage.VolumeInfo{}, nil
		},
	}
}

func (m *mockStorageManager) EnsurePools(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensurePoolsCalls++
	return m.ensurePoolsFunc(ctx)
}

func (m *mockStorageManager) EnsureImage(ctx context.Context, imageName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureImageCalls = append(m.ensureImageCalls, imageName)
	return m.ensureImageFunc(ctx, imageName)
}

func (m *mockStorageManager) VMsPool() string {
	return storage.DefaultVMsPool
}

func (m *mockStorageManager) VolumeExists(ctx context.Context, poolName, volumeName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumeExistsCalls = append(m.volumeExistsCalls, poolName+"/"+volumeName)
	return m.volumeExistsFunc(ctx, poolName, volumeName)
}

func (m *mockStorageManager) CreateVolume(ctx context.Context, poolName string, spec storage.VolumeSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createVolumeCalls = append(m.createVolumeCalls, spec)
	return m.createVolumeFunc(ctx, poolName, spec)
}

func (m *mockStorageManager) DeleteVolume(ctx context.Context, poolName, volumeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteVolumeCalls = append(m.deleteVolumeCalls, poolName+"/"+volumeName)
	return m.deleteVolumeFunc(ctx, poolName, volumeName)
}

func (m *mockStorageManager) WriteVolumeData(ctx context.Context, poolName, volumeName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeVolumeDataCalls = append(m.writeVolumeDataCalls, poolName+"/"+volumeName)
	return m.writeVolumeDataFunc(ctx, poolName, volumeName, data)
}

func (m *mockStorageManager) ListVolumes(ctx context.Context, poolName string) ([]storage.VolumeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listVolumesCalls = append(m.listVolumesCalls, poolName)
	return m.listVolumesFunc(ctx, poolName)
}
