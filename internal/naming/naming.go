// Package naming holds the deterministic naming rules for libvirt
// resources: MAC addresses, volume names and guest interface names.
// Deterministic names let create, reconcile and destroy agree on what
// belongs to a machine without extra bookkeeping.
package naming

import (
	"crypto/sha256"
	"fmt"
	"net"
	"strings"
)

// MACFromIP calculates a deterministic MAC address from an IPv4
// address, using the locally administered be:ef: prefix.
//
// Example: IP 10.55.22.22 → MAC be:ef:0a:37:16:16
func MACFromIP(ip string) (string, error) {
	ipStr := ip
	if strings.Contains(ip, "/") {
		ipAddr, _, err := net.ParseCIDR(ip)
		if err != nil {
			return "", fmt.Errorf("invalid IP/CIDR: %w", err)
		}
		ipStr = ipAddr.String()
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return "", fmt.Errorf("invalid IP address: %s", ipStr)
	}
	ipv4 := parsedIP.To4()
	if ipv4 == nil {
		return "", fmt.Errorf("not an IPv4 address: %s", ipStr)
	}

	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x",
		ipv4[0], ipv4[1], ipv4[2], ipv4[3]), nil
}

// MACFromSeed calculates a deterministic MAC address for interfaces
// with no fixed IP (DHCP), hashing the seed into the same be:ef:
// locally administered space. The seed is the machine's instance ID
// plus the interface index, so an interface keeps its MAC for the
// machine's whole life.
func MACFromSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x",
		sum[0], sum[1], sum[2], sum[3])
}

// InterfaceName returns the guest-side name for the NIC at index:
// eth0, eth1, ... Cloud-init matches interfaces by MAC, so these only
// have to be stable, not meaningful.
func InterfaceName(index int) string {
	return fmt.Sprintf("eth%d", index)
}

// VolumeNameBoot returns the volume name for a machine's boot disk.
// Format: {machine}_boot.qcow2
func VolumeNameBoot(machine string) string {
	return fmt.Sprintf("%s_boot.qcow2", machine)
}

// VolumeNameSeed returns the volume name for a machine's cloud-init
// seed ISO. Format: {machine}_cloudinit.iso
func VolumeNameSeed(machine string) string {
	return fmt.Sprintf("%s_cloudinit.iso", machine)
}

// VolumePrefix returns the prefix shared by all of a machine's
// volumes, used to find them during cleanup.
func VolumePrefix(machine string) string {
	return machine + "_"
}
