// Package cloudinit generates the NoCloud seed for a machine: the
// user-data, meta-data and network-config documents and the ISO image
// carrying them.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Interface pairs one NIC's addressing with the MAC used to match it
// inside the guest.
type Interface struct {
	MAC  string
	DHCP bool
	// CIDR is the static address in address/prefix form when DHCP is
	// false.
	CIDR string
}

// Seed describes one machine's cloud-init data.
type Seed struct {
	// InstanceID tells cloud-init whether this is a first boot. A
	// fresh ID per create means a re-created machine re-runs
	// provisioning.
	InstanceID string
	Hostname   string
	// SSHAuthorizedKeys are installed for the image's default user.
	SSHAuthorizedKeys []string
	// Interfaces, in attachment order. At least one.
	Interfaces []Interface
	// Gateway is the default route for static interfaces; optional.
	Gateway string
	// Nameservers for static interfaces; optional.
	Nameservers []string
}

// UserData is the cloud-config document.
type UserData struct {
	Hostname          string   `yaml:"hostname"`
	FQDN              string   `yaml:"fqdn"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
	SSHPasswordAuth   bool     `yaml:"ssh_pwauth"`
}

// MetaData is the NoCloud instance metadata document.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// NetworkConfig is a netplan v2 document.
type NetworkConfig struct {
	Version   int                       `yaml:"version"`
	Ethernets map[string]EthernetConfig `yaml:"ethernets"`
}

// EthernetConfig configures one interface, matched by MAC address.
type EthernetConfig struct {
	Match       MatchConfig   `yaml:"match"`
	DHCP4       bool          `yaml:"dhcp4,omitempty"`
	Addresses   []string      `yaml:"addresses,omitempty"`
	Routes      []RouteConfig `yaml:"routes,omitempty"`
	Nameservers *Nameservers  `yaml:"nameservers,omitempty"`
}

// MatchConfig matches an interface by MAC address.
type MatchConfig struct {
	MACAddress string `yaml:"macaddress"`
}

// RouteConfig is a static route.
type RouteConfig struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

// Nameservers lists DNS servers.
type Nameservers struct {
	Addresses []string `yaml:"addresses"`
}

func (s *Seed) validate() error {
	if s == nil {
		return fmt.Errorf("seed cannot be nil")
	}
	if s.InstanceID == "" {
		return fmt.Errorf("seed instance ID cannot be empty")
	}
	if s.Hostname == "" {
		return fmt.Errorf("seed hostname cannot be empty")
	}
	if len(s.Interfaces) == 0 {
		return fmt.Errorf("seed needs at least one interface")
	}
	for i, nic := range s.Interfaces {
		if nic.MAC == "" {
			return fmt.Errorf("interface %d has no MAC", i)
		}
		if !nic.DHCP && nic.CIDR == "" {
			return fmt.Errorf("static interface %d has no address", i)
		}
	}
	return nil
}

// GenerateUserData renders the user-data document, including the
// "#cloud-config" header cloud-init requires.
func GenerateUserData(seed *Seed) (string, error) {
	if err := seed.validate(); err != nil {
		return "", err
	}

	userData := UserData{
		Hostname:          seed.Hostname,
		FQDN:              seed.Hostname,
		SSHAuthorizedKeys: seed.SSHAuthorizedKeys,
		SSHPasswordAuth:   false,
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}
	return "#cloud-config\n" + string(yamlBytes), nil
}

// GenerateMetaData renders the meta-data document.
func GenerateMetaData(seed *Seed) (string, error) {
	if err := seed.validate(); err != nil {
		return "", err
	}

	metaData := MetaData{
		InstanceID:    seed.InstanceID,
		LocalHostname: seed.Hostname,
	}

	yamlBytes, err := yaml.Marshal(&metaData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}
	return string(yamlBytes), nil
}

// GenerateNetworkConfig renders the netplan v2 document. Interfaces
// are named eth0, eth1, ... in attachment order and matched by MAC.
// The first static interface carries the default route when a gateway
// is configured; DHCP interfaces bring their own.
func GenerateNetworkConfig(seed *Seed) (string, error) {
	if err := seed.validate(); err != nil {
		return "", err
	}

	networkConfig := NetworkConfig{
		Version:   2,
		Ethernets: make(map[string]EthernetConfig, len(seed.Interfaces)),
	}

	defaultRouteSet := false
	for i, nic := range seed.Interfaces {
		ethName := fmt.Sprintf("eth%d", i)

		ethConfig := EthernetConfig{
			Match: MatchConfig{MACAddress: nic.MAC},
		}
		if nic.DHCP {
			ethConfig.DHCP4 = true
		} else {
			ethConfig.Addresses = []string{nic.CIDR}
			if seed.Gateway != "" && !defaultRouteSet {
				ethConfig.Routes = []RouteConfig{{To: "0.0.0.0/0", Via: seed.Gateway}}
				defaultRouteSet = true
			}
			if len(seed.Nameservers) > 0 {
				ethConfig.Nameservers = &Nameservers{Addresses: seed.Nameservers}
			}
		}

		networkConfig.Ethernets[ethName] = ethConfig
	}

	yamlBytes, err := yaml.Marshal(&networkConfig)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config to YAML: %w", err)
	}
	return string(yamlBytes), nil
}
