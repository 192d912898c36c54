package spec

import "fmt"

// Policy defaults applied to fields the user left unset.
const (
	DefaultMemoryBytes = 1 * sizeGiB
	DefaultCPUCount    = 2
	DefaultDiskBytes   = 10 * sizeGiB
	DefaultVariant     = VariantUbuntu

	// AutoNamePrefix seeds generated machine names: foovm0, foovm1, ...
	AutoNamePrefix = "foovm"
)

// Known image variants.
const (
	VariantUbuntu = "ubuntu"
	VariantCoreOS = "coreos"
)

// KnownVariant reports whether keyword names an image variant.
func KnownVariant(keyword string) bool {
	switch keyword {
	case VariantUbuntu, VariantCoreOS:
		return true
	}
	return false
}

// InterfaceMode is how a network interface gets its address.
type InterfaceMode string

const (
	// ModeStatic assigns the address parsed from a CIDR token.
	ModeStatic InterfaceMode = "static"
	// ModeDHCP leaves addressing to the network's DHCP server.
	ModeDHCP InterfaceMode = "dhcp"
)

// NetworkInterfaceSpec is one NIC. Static interfaces carry the address
// and prefix length from a single CIDR token; DHCP interfaces carry
// nothing else.
type NetworkInterfaceSpec struct {
	Mode      InterfaceMode `json:"mode" yaml:"mode"`
	Address   string        `json:"address,omitempty" yaml:"address,omitempty"`
	PrefixLen int           `json:"prefixLen,omitempty" yaml:"prefixLen,omitempty"`
}

// CIDR renders a static interface back to its token form.
func (n NetworkInterfaceSpec) CIDR() string {
	if n.Mode != ModeStatic {
		return ""
	}
	return fmt.Sprintf("%s/%d", n.Address, n.PrefixLen)
}

// MachineSpec is one machine's desired configuration. Every scalar
// field holds exactly one resolved value once the spec is built; an
// empty Interfaces list means the backend attaches a single DHCP
// interface.
type MachineSpec struct {
	Name        string                 `json:"name" yaml:"name"`
	MemoryBytes uint64                 `json:"memoryBytes" yaml:"memoryBytes"`
	CPUCount    int                    `json:"cpuCount" yaml:"cpuCount"`
	DiskBytes   uint64                 `json:"diskBytes" yaml:"diskBytes"`
	Variant     string                 `json:"variant" yaml:"variant"`
	Interfaces  []NetworkInterfaceSpec `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
}

// positioned pairs a classified token with its 1-based position in the
// original argument list, for diagnostics.
type positioned struct {
	tok Token
	pos int
}

// buildMachine folds one run of classified tokens into a MachineSpec.
// name is the run's explicit name ("" for unnamed runs) and index the
// machine's position in the cluster, used for the generated name.
//
// Scalar fields are set-once: a second memory, cpu, disk or variant
// token in the same run is ambiguous intent and fails rather than
// last-write-wins. Interface tokens are additive in order.
func buildMachine(name string, index int, run []positioned) (MachineSpec, error) {
	m := MachineSpec{Name: name}
	if m.Name == "" {
		m.Name = fmt.Sprintf("%s%d", AutoNamePrefix, index)
	}

	var memSet, cpuSet, diskSet, variantSet bool
	for _, p := range run {
		switch p.tok.Kind {
		case KindMemorySize:
			if memSet {
				return m, newDuplicateField("memory", p.tok, p.pos)
			}
			m.MemoryBytes = p.tok.Bytes
			memSet = true
		case KindCPUCount:
			if cpuSet {
				return m, newDuplicateField("cpu count", p.tok, p.pos)
			}
			m.CPUCount = p.tok.CPUs
			cpuSet = true
		case KindDiskSize:
			if diskSet {
				return m, newDuplicateField("disk size", p.tok, p.pos)
			}
			m.DiskBytes = p.tok.Bytes
			diskSet = true
		case KindVariant:
			if variantSet {
				return m, newDuplicateField("variant", p.tok, p.pos)
			}
			m.Variant = p.tok.Variant
			variantSet = true
		case KindDHCPInterface:
			m.Interfaces = append(m.Interfaces, NetworkInterfaceSpec{Mode: ModeDHCP})
		case KindStaticInterface:
			m.Interfaces = append(m.Interfaces, NetworkInterfaceSpec{
				Mode:      ModeStatic,
				Address:   p.tok.Address,
				PrefixLen: p.tok.Prefix,
			})
		case KindInvalid:
			return m, newInvalidToken(p.tok, p.pos)
		default:
			return m, newInvalidArgument(p.tok, p.pos)
		}
	}

	if !memSet {
		m.MemoryBytes = DefaultMemoryBytes
	}
	if !cpuSet {
		m.CPUCount = DefaultCPUCount
	}
	if !diskSet {
		m.DiskBytes = DefaultDiskBytes
	}
	if !variantSet {
		m.Variant = DefaultVariant
	}
	return m, nil
}
